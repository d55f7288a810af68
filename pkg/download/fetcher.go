package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mirrorget/mirrorget/pkg/download/internal/httpmeta"
)

var (
	errHTTPStatus   = errors.New("unexpected http status")
	errSizeMismatch = errors.New("size mismatch")
	errRangeIgnored = errors.New("server ignored range request")
)

// fetcher performs one HTTP transfer into a positioned writer. Fetch errors
// are local: the orchestrator retires the failing mirror and retries the
// range elsewhere, so a fetcher never aborts the download on its own.
type fetcher struct {
	client    *http.Client
	userAgent string
	writer    io.WriterAt
}

const copyBufferSize = 32 * 1024

// fetchRange downloads the inclusive byte range [begin, end] of a
// total-byte resource from url, writing at absolute offsets begin..end and
// reporting incremental byte counts. Redirects are followed by the client,
// so a relocated mirror does not count as a failure.
//
// The transfer fails on transport errors, non-2xx final statuses, a 206
// whose Content-Range disagrees with the request or whose declared complete
// length disagrees with total, short bodies, and bodies longer than the
// requested range (a server that ignores the Range header and streams the
// whole resource).
func (f *fetcher) fetchRange(ctx context.Context, url string, begin, end, total int64, report func(n int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Range", httpmeta.FormatRange(begin, end))
	// Compression is incompatible with byte offsets.
	req.Header.Set("Accept-Encoding", "identity")
	httpmeta.ScrubConditionalHeaders(req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if start, stop, complete, ok := httpmeta.ParseContentRange(resp.Header.Get("Content-Range")); ok {
			if start != begin || stop != end {
				return fmt.Errorf("%w: got %d-%d, requested %d-%d", errRangeIgnored, start, stop, begin, end)
			}
			// The mirror must be serving the same resource the caller
			// declared; a different complete length means it is not.
			if complete >= 0 && complete != total {
				return fmt.Errorf("%w: mirror reports %d bytes total, expected %d", errSizeMismatch, complete, total)
			}
		}
	case http.StatusOK:
		// A 200 body starts at offset zero. That only lines up with the
		// request when the range does too; otherwise the server ignored
		// the Range header.
		if begin != 0 {
			return fmt.Errorf("%w: got 200 for range %d-%d", errRangeIgnored, begin, end)
		}
	default:
		return fmt.Errorf("%w %d", errHTTPStatus, resp.StatusCode)
	}

	expected := end - begin + 1
	return f.copyAt(resp.Body, begin, expected, report)
}

// fetchAll downloads the entire resource at url with no Range header. A
// non-nil body turns the request into a POST. setTotal is invoked with the
// Content-Length when the server declares one.
func (f *fetcher) fetchAll(ctx context.Context, url string, body []byte, setTotal func(int64), report func(n int64)) error {
	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d", errHTTPStatus, resp.StatusCode)
	}
	if resp.ContentLength > 0 && setTotal != nil {
		setTotal(resp.ContentLength)
	}
	return f.copyAt(resp.Body, 0, -1, report)
}

// copyAt streams src into the writer starting at offset. When expected is
// non-negative the copy must deliver exactly that many bytes: fewer is a
// short read, more means the server served something other than the
// requested range. Excess bytes are detected before they are written.
func (f *fetcher) copyAt(src io.Reader, offset, expected int64, report func(n int64)) error {
	buf := make([]byte, copyBufferSize)
	var copied int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if expected >= 0 && copied+int64(n) > expected {
				return fmt.Errorf("%w: more than %d bytes received", errSizeMismatch, expected)
			}
			if _, werr := f.writer.WriteAt(buf[:n], offset+copied); werr != nil {
				return fmt.Errorf("write at %d: %w", offset+copied, werr)
			}
			copied += int64(n)
			if report != nil {
				report(int64(n))
			}
		}
		if err == io.EOF {
			if expected >= 0 && copied != expected {
				return fmt.Errorf("%w: got %d bytes, want %d", errSizeMismatch, copied, expected)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
