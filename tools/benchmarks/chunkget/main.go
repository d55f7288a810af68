// chunkget is a benchmarking tool that compares a plain single-stream HTTP
// download against a chunked multi-mirror download of the same URL using the
// download package, then verifies both transfers produced identical bytes.
package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/mirrorget/mirrorget/pkg/download"
	"github.com/mirrorget/mirrorget/pkg/writer"
)

var (
	chunkSize int64
	mirrors   int
)

var rootCmd = &cobra.Command{
	Use:   "chunkget <url>",
	Short: "Benchmark chunked vs single-stream HTTP downloads",
	Long: `chunkget downloads the same URL twice - once as a plain single-stream GET and
once in parallel byte-range chunks - then compares the results and reports
throughput for both.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runBenchmark,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().Int64Var(&chunkSize, "chunk-size", download.DefaultChunkSize, "Chunk size in bytes for the chunked download")
	rootCmd.Flags().IntVar(&mirrors, "streams", 4, "Number of parallel streams (the URL is used as that many mirrors)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	url := args[0]

	fmt.Printf("Benchmarking download performance for: %s\n", url)
	fmt.Printf("Configuration: chunk-size=%d bytes, streams=%d\n\n", chunkSize, mirrors)

	size, err := resourceSize(url)
	if err != nil {
		return fmt.Errorf("failed to determine resource size: %w", err)
	}
	fmt.Printf("Resource size: %s\n\n", units.HumanSize(float64(size)))

	fmt.Println("Running single-stream download...")
	singleBuf := writer.NewMemWriter()
	singleDuration, err := run(func(onFinish, onProgress download.Callback) (*download.Request, error) {
		return download.Get(url, singleBuf, onFinish, onProgress), nil
	})
	if err != nil {
		return fmt.Errorf("single-stream download failed: %w", err)
	}
	report("single-stream", size, singleDuration)

	fmt.Println("Running chunked download...")
	urls := make([]string, mirrors)
	for i := range urls {
		urls[i] = url
	}
	chunkedBuf := writer.NewMemWriter()
	chunkedDuration, err := run(func(onFinish, onProgress download.Callback) (*download.Request, error) {
		return download.GetChunks(urls, chunkedBuf, size, onFinish, onProgress,
			download.WithChunkSize(chunkSize))
	})
	if err != nil {
		return fmt.Errorf("chunked download failed: %w", err)
	}
	report("chunked", size, chunkedDuration)

	if !bytes.Equal(sum(singleBuf), sum(chunkedBuf)) {
		return fmt.Errorf("downloads differ: sha256 mismatch between single-stream and chunked results")
	}
	fmt.Println("\n✓ Both downloads produced identical content")
	if chunkedDuration < singleDuration {
		fmt.Printf("Chunked download was %.2fx faster\n", float64(singleDuration)/float64(chunkedDuration))
	} else {
		fmt.Printf("Single-stream download was %.2fx faster\n", float64(chunkedDuration)/float64(singleDuration))
	}
	return nil
}

// run executes one download to completion and times it.
func run(start func(onFinish, onProgress download.Callback) (*download.Request, error)) (time.Duration, error) {
	began := time.Now()
	req, err := start(func(*download.Request) {}, func(*download.Request) {})
	if err != nil {
		return 0, err
	}
	if status := req.Wait(); status != download.StatusCompleted {
		return 0, fmt.Errorf("download finished with status %s", status)
	}
	return time.Since(began), nil
}

// resourceSize asks the server for the resource's total size.
func resourceSize(url string) (int64, error) {
	resp, err := http.Head(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HEAD returned status %d", resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		return 0, fmt.Errorf("server did not report a content length")
	}
	return resp.ContentLength, nil
}

func report(name string, size int64, d time.Duration) {
	mbps := float64(size) / (1024 * 1024) / d.Seconds()
	fmt.Printf("✓ %s: %d bytes in %v (%.2f MB/s)\n\n", name, size, d, mbps)
}

func sum(w *writer.MemWriter) []byte {
	h := sha256.Sum256(w.Bytes())
	return h[:]
}
