package commands

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/mirrorget/mirrorget/pkg/config"
)

// batchManifest is the YAML document accepted by the batch command.
type batchManifest struct {
	Downloads []batchEntry `yaml:"downloads"`
}

// batchEntry describes one download in a manifest.
type batchEntry struct {
	// URLs are the mirror candidates; one URL means a simple GET.
	URLs []string `yaml:"urls"`
	// Output is the destination file.
	Output string `yaml:"output"`
	// Size is the declared file size; required for multi-mirror entries.
	Size string `yaml:"size,omitempty"`
	// ChunkSize overrides the configured chunk size for this entry.
	ChunkSize string `yaml:"chunk_size,omitempty"`
	// Digest verifies the result when set.
	Digest string `yaml:"digest,omitempty"`
}

func newBatchCmd() *cobra.Command {
	var concurrency int
	c := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Run the downloads listed in a YAML manifest",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("'mirrorget batch' requires 1 manifest file.\n\n" +
					"Usage:  mirrorget batch MANIFEST\n\n" +
					"See 'mirrorget batch --help' for more information")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = cfg.Concurrency
			}
			return runBatch(args[0], cfg, concurrency)
		},
	}
	c.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "simultaneous downloads (default: from config)")
	return c
}

func runBatch(manifestPath string, cfg *config.Config, concurrency int) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var manifest batchManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}
	if len(manifest.Downloads) == 0 {
		return fmt.Errorf("manifest %s lists no downloads", manifestPath)
	}

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return err
	}
	defaultChunk, err := cfg.ChunkSizeBytes()
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, entry := range manifest.Downloads {
		if len(entry.URLs) == 0 {
			return fmt.Errorf("manifest entry %d has no urls", i)
		}
		spec := downloadSpec{
			urls:      entry.URLs,
			output:    entry.Output,
			digest:    entry.Digest,
			userAgent: cfg.UserAgent,
			timeout:   timeout,
			chunkSize: defaultChunk,
			// Interleaved progress bars are unreadable; batch runs quiet.
			quiet: true,
		}
		if entry.Size != "" {
			if spec.size, err = units.RAMInBytes(entry.Size); err != nil {
				return fmt.Errorf("manifest entry %d: invalid size %q: %w", i, entry.Size, err)
			}
		}
		if entry.ChunkSize != "" {
			if spec.chunkSize, err = units.RAMInBytes(entry.ChunkSize); err != nil {
				return fmt.Errorf("manifest entry %d: invalid chunk_size %q: %w", i, entry.ChunkSize, err)
			}
		}
		g.Go(func() error {
			return runDownload(spec)
		})
	}
	return g.Wait()
}
