package commands

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/opencontainers/go-digest"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mirrorget/mirrorget/pkg/config"
	"github.com/mirrorget/mirrorget/pkg/download"
	"github.com/mirrorget/mirrorget/pkg/writer"
)

func newGetCmd() *cobra.Command {
	var (
		output    string
		sizeArg   string
		chunkArg  string
		digestArg string
		postData  string
		quiet     bool
	)
	c := &cobra.Command{
		Use:   "get URL [MIRROR_URL...]",
		Short: "Download a file, optionally from multiple mirrors in parallel chunks",
		Long: "Download a file over HTTP. With --size, the file is fetched in byte-range\n" +
			"chunks dispatched across all given mirror URLs in parallel; a failing mirror\n" +
			"is dropped and its ranges are retried on the remaining ones.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("'mirrorget get' requires at least 1 URL.\n\n" +
					"Usage:  mirrorget get URL [MIRROR_URL...]\n\n" +
					"See 'mirrorget get --help' for more information")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			spec := downloadSpec{
				urls:     args,
				output:   output,
				digest:   digestArg,
				postData: postData,
				quiet:    quiet,
			}
			if sizeArg != "" {
				if spec.size, err = units.RAMInBytes(sizeArg); err != nil {
					return fmt.Errorf("invalid --size %q: %w", sizeArg, err)
				}
			}
			if chunkArg != "" {
				if spec.chunkSize, err = units.RAMInBytes(chunkArg); err != nil {
					return fmt.Errorf("invalid --chunk-size %q: %w", chunkArg, err)
				}
			} else if spec.chunkSize, err = cfg.ChunkSizeBytes(); err != nil {
				return err
			}
			spec.userAgent = cfg.UserAgent
			if spec.timeout, err = cfg.TimeoutDuration(); err != nil {
				return err
			}
			return runDownload(spec)
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "output file (default: last path segment of the URL)")
	c.Flags().StringVar(&sizeArg, "size", "", "declared file size; enables chunked multi-mirror mode")
	c.Flags().StringVar(&chunkArg, "chunk-size", "", "chunk size for multi-mirror mode (e.g. 2MiB)")
	c.Flags().StringVar(&digestArg, "digest", "", "verify the result against a digest (e.g. sha256:...)")
	c.Flags().StringVar(&postData, "post-data", "", "send a POST with this body instead of a GET")
	c.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress bar")
	return c
}

// downloadSpec is one fully resolved download: flags and config merged.
type downloadSpec struct {
	urls      []string
	output    string
	size      int64
	chunkSize int64
	digest    string
	postData  string
	userAgent string
	timeout   time.Duration
	quiet     bool
}

// runDownload executes one download to completion and reports the outcome.
// It is shared by the get and batch commands.
func runDownload(spec downloadSpec) error {
	out := spec.output
	if out == "" {
		out = outputName(spec.urls[0])
	}
	w, err := writer.CreateFile(out, spec.size)
	if err != nil {
		return err
	}
	defer w.Close()

	client := &http.Client{Timeout: spec.timeout}
	opts := []download.Option{
		download.WithClient(client),
		download.WithLogger(log),
		download.WithUserAgent(spec.userAgent),
	}
	if spec.chunkSize > 0 {
		opts = append(opts, download.WithChunkSize(spec.chunkSize))
	}

	var bar *progressbar.ProgressBar
	if !spec.quiet && isatty.IsTerminal(os.Stderr.Fd()) {
		total := spec.size
		if total <= 0 {
			total = -1
		}
		bar = progressbar.DefaultBytes(total, out)
	}
	onProgress := func(r *download.Request) {
		if bar != nil {
			_ = bar.Set64(r.Received())
		}
	}
	onFinish := func(*download.Request) {}

	var req *download.Request
	switch {
	case spec.size > 0:
		req, err = download.GetChunks(spec.urls, w, spec.size, onFinish, onProgress, opts...)
		if err != nil {
			return err
		}
	case len(spec.urls) > 1:
		return fmt.Errorf("multiple mirrors require --size (the declared file size)")
	case spec.postData != "":
		req = download.Post(spec.urls[0], w, []byte(spec.postData), onFinish, onProgress, opts...)
	default:
		req = download.Get(spec.urls[0], w, onFinish, onProgress, opts...)
	}

	status := req.Wait()
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if status != download.StatusCompleted {
		color.Red("download failed: %s", out)
		return fmt.Errorf("download of %s failed", out)
	}
	if err := w.Sync(); err != nil {
		return err
	}
	if spec.digest != "" {
		if err := verifyDigest(out, spec.digest); err != nil {
			color.Red("digest mismatch: %s", out)
			return err
		}
	}
	color.Green("saved %s (%s)", out, units.HumanSize(float64(req.Received())))
	return nil
}

// outputName derives a local filename from the URL's last path segment.
func outputName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "download.out"
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return "download.out"
	}
	return base
}

// verifyDigest checks the downloaded file against an expected digest string
// such as "sha256:...".
func verifyDigest(path, expected string) error {
	dgst, err := digest.Parse(expected)
	if err != nil {
		return fmt.Errorf("invalid digest %q: %w", expected, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	verifier := dgst.Verifier()
	if _, err := io.Copy(verifier, f); err != nil {
		return err
	}
	if !verifier.Verified() {
		return fmt.Errorf("digest mismatch for %s: want %s", path, dgst)
	}
	return nil
}
