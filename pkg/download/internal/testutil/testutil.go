// Package testutil provides a range-aware fake http.RoundTripper for
// downloader tests, so transport behavior can be exercised without sockets.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/mirrorget/mirrorget/pkg/download/internal/httpmeta"
)

// Resource describes one URL served by FakeTransport.
type Resource struct {
	// Data is the full resource content.
	Data []byte
	// IgnoreRange makes the server answer range requests with a 200 and
	// the entire content, like servers without range support do.
	IgnoreRange bool
	// Status forces a fixed response status with no body when non-zero.
	Status int
	// RedirectTo issues a 301 to the given URL.
	RedirectTo string
	// FailAfter truncates each response body after this many bytes when
	// positive, simulating a dropped connection.
	FailAfter int
}

// FakeTransport is a test http.RoundTripper serving in-memory resources.
type FakeTransport struct {
	mu        sync.Mutex
	resources map[string]*Resource
	requests  []*http.Request
}

// NewFakeTransport returns an empty FakeTransport. Unknown URLs get a 404.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{resources: make(map[string]*Resource)}
}

// Add registers a resource under the given URL.
func (ft *FakeTransport) Add(url string, res *Resource) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.resources[url] = res
}

// Requests returns all requests seen so far.
func (ft *FakeTransport) Requests() []*http.Request {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	out := make([]*http.Request, len(ft.requests))
	copy(out, ft.requests)
	return out
}

// RangeRequests returns the Range header values of all requests that
// carried one, in arrival order.
func (ft *FakeTransport) RangeRequests() []string {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	var out []string
	for _, req := range ft.requests {
		if h := req.Header.Get("Range"); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// RoundTrip implements http.RoundTripper.
func (ft *FakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ft.mu.Lock()
	clone := req.Clone(req.Context())
	ft.requests = append(ft.requests, clone)
	res := ft.resources[req.URL.String()]
	ft.mu.Unlock()

	if res == nil {
		return response(req, http.StatusNotFound, nil, nil), nil
	}
	if res.Status != 0 {
		return response(req, res.Status, nil, nil), nil
	}
	if res.RedirectTo != "" {
		h := make(http.Header)
		h.Set("Location", res.RedirectTo)
		return response(req, http.StatusMovedPermanently, nil, h), nil
	}

	body := res.Data
	status := http.StatusOK
	header := make(http.Header)
	header.Set("Accept-Ranges", "bytes")

	if rh := req.Header.Get("Range"); rh != "" && !res.IgnoreRange {
		start, end, ok := httpmeta.ParseSingleRange(rh)
		if !ok {
			return response(req, http.StatusBadRequest, nil, nil), nil
		}
		if end < 0 || end >= int64(len(res.Data)) {
			end = int64(len(res.Data)) - 1
		}
		if start > end {
			return response(req, http.StatusRequestedRangeNotSatisfiable, nil, nil), nil
		}
		body = res.Data[start : end+1]
		status = http.StatusPartialContent
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(res.Data)))
	}

	if res.FailAfter > 0 && res.FailAfter < len(body) {
		body = body[:res.FailAfter]
		// The body ends early with a plain EOF and no Content-Length is
		// promised, so the truncation shows only as a short byte count.
	}

	resp := response(req, status, body, header)
	if res.FailAfter > 0 {
		resp.ContentLength = -1
	}
	return resp, nil
}

func response(req *http.Request, status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", fmt.Sprint(len(body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// GenerateData returns n bytes of a deterministic, position-dependent
// pattern, so misplaced chunk writes corrupt the result visibly.
func GenerateData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i*7 + i/251) % 256)
	}
	return data
}
