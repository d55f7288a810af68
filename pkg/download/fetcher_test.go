package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mirrorget/mirrorget/pkg/download/internal/testutil"
	"github.com/mirrorget/mirrorget/pkg/writer"
)

func newTestFetcher(ft *testutil.FakeTransport) (*fetcher, *writer.MemWriter) {
	w := writer.NewMemWriter()
	return &fetcher{
		client: &http.Client{Transport: ft},
		writer: w,
	}, w
}

func TestFetchRangeSuccess(t *testing.T) {
	data := testutil.GenerateData(1000)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/file", &testutil.Resource{Data: data})
	f, w := newTestFetcher(ft)

	var reported int64
	err := f.fetchRange(context.Background(), "https://example.com/file", 100, 199, 1000, func(n int64) {
		reported += n
	})
	if err != nil {
		t.Fatalf("fetchRange: %v", err)
	}
	if reported != 100 {
		t.Errorf("reported %d bytes, want 100", reported)
	}
	got := w.Bytes()
	if int64(len(got)) != 200 {
		t.Fatalf("writer holds %d bytes, want 200 (offset 100 + 100 bytes)", len(got))
	}
	if !bytes.Equal(got[100:200], data[100:200]) {
		t.Error("range content landed wrong")
	}
	ranges := ft.RangeRequests()
	if len(ranges) != 1 || ranges[0] != "bytes=100-199" {
		t.Errorf("range headers = %v, want [bytes=100-199]", ranges)
	}
}

func TestFetchRangeFollowsRedirect(t *testing.T) {
	data := testutil.GenerateData(500)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/old", &testutil.Resource{RedirectTo: "https://example.com/new"})
	ft.Add("https://example.com/new", &testutil.Resource{Data: data})
	f, w := newTestFetcher(ft)

	err := f.fetchRange(context.Background(), "https://example.com/old", 0, 499, 500, nil)
	if err != nil {
		t.Fatalf("fetchRange through redirect: %v", err)
	}
	if !bytes.Equal(w.Bytes(), data) {
		t.Error("content mismatch after redirect")
	}
}

func TestFetchRangeHTTPStatus(t *testing.T) {
	ft := testutil.NewFakeTransport()
	f, _ := newTestFetcher(ft)

	// Unknown URL yields a 404.
	err := f.fetchRange(context.Background(), "https://example.com/missing", 0, 99, 100, nil)
	if !errors.Is(err, errHTTPStatus) {
		t.Errorf("err = %v, want errHTTPStatus", err)
	}

	ft.Add("https://example.com/broken", &testutil.Resource{Status: http.StatusInternalServerError})
	err = f.fetchRange(context.Background(), "https://example.com/broken", 0, 99, 100, nil)
	if !errors.Is(err, errHTTPStatus) {
		t.Errorf("err = %v, want errHTTPStatus", err)
	}
}

func TestFetchRangeShortRead(t *testing.T) {
	data := testutil.GenerateData(1000)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/flaky", &testutil.Resource{Data: data, FailAfter: 40})
	f, _ := newTestFetcher(ft)

	err := f.fetchRange(context.Background(), "https://example.com/flaky", 0, 99, 1000, nil)
	if !errors.Is(err, errSizeMismatch) {
		t.Errorf("err = %v, want errSizeMismatch", err)
	}
}

func TestFetchRangeIgnoredBySubrangeRequest(t *testing.T) {
	data := testutil.GenerateData(1000)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/noranges", &testutil.Resource{Data: data, IgnoreRange: true})
	f, _ := newTestFetcher(ft)

	// A 200 answer to a proper subrange request means the server ignored
	// the Range header.
	err := f.fetchRange(context.Background(), "https://example.com/noranges", 100, 199, 1000, nil)
	if !errors.Is(err, errRangeIgnored) {
		t.Errorf("err = %v, want errRangeIgnored", err)
	}
}

func TestFetchRangeWholeFileWithoutRangeSupport(t *testing.T) {
	// A single-chunk download works even against a server that ignores
	// Range, because the full body is exactly the requested range.
	data := testutil.GenerateData(300)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/noranges", &testutil.Resource{Data: data, IgnoreRange: true})
	f, w := newTestFetcher(ft)

	err := f.fetchRange(context.Background(), "https://example.com/noranges", 0, 299, 300, nil)
	if err != nil {
		t.Fatalf("fetchRange: %v", err)
	}
	if !bytes.Equal(w.Bytes(), data) {
		t.Error("content mismatch")
	}
}

func TestFetchRangeOverlongBody(t *testing.T) {
	data := testutil.GenerateData(1000)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/noranges", &testutil.Resource{Data: data, IgnoreRange: true})
	f, _ := newTestFetcher(ft)

	err := f.fetchRange(context.Background(), "https://example.com/noranges", 0, 99, 1000, nil)
	if !errors.Is(err, errSizeMismatch) {
		t.Errorf("err = %v, want errSizeMismatch", err)
	}
}

func TestFetchRangeTotalMismatch(t *testing.T) {
	// The mirror serves ranges correctly, but of a resource with a
	// different complete length than the caller declared.
	data := testutil.GenerateData(47684)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/other", &testutil.Resource{Data: data})
	f, _ := newTestFetcher(ft)

	err := f.fetchRange(context.Background(), "https://example.com/other", 0, 99, 12345, nil)
	if !errors.Is(err, errSizeMismatch) {
		t.Errorf("err = %v, want errSizeMismatch", err)
	}
}

func TestFetchAllGet(t *testing.T) {
	data := testutil.GenerateData(700)
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/file", &testutil.Resource{Data: data})
	f, w := newTestFetcher(ft)

	var total int64
	err := f.fetchAll(context.Background(), "https://example.com/file", nil,
		func(n int64) { total = n }, nil)
	if err != nil {
		t.Fatalf("fetchAll: %v", err)
	}
	if total != 700 {
		t.Errorf("total = %d, want 700", total)
	}
	if !bytes.Equal(w.Bytes(), data) {
		t.Error("content mismatch")
	}
	reqs := ft.Requests()
	if len(reqs) != 1 || reqs[0].Method != http.MethodGet {
		t.Errorf("expected a single GET, got %v", reqs)
	}
}

func TestFetchAllPost(t *testing.T) {
	data := []byte("response-payload")
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/submit", &testutil.Resource{Data: data})
	f, w := newTestFetcher(ft)

	err := f.fetchAll(context.Background(), "https://example.com/submit", []byte(`{"k":"v"}`), nil, nil)
	if err != nil {
		t.Fatalf("fetchAll: %v", err)
	}
	if !bytes.Equal(w.Bytes(), data) {
		t.Error("content mismatch")
	}
	reqs := ft.Requests()
	if len(reqs) != 1 || reqs[0].Method != http.MethodPost {
		t.Errorf("expected a single POST, got %d requests", len(reqs))
	}
}

func TestFetchAllStatusError(t *testing.T) {
	ft := testutil.NewFakeTransport()
	ft.Add("https://example.com/teapot", &testutil.Resource{Status: http.StatusTeapot})
	f, _ := newTestFetcher(ft)

	err := f.fetchAll(context.Background(), "https://example.com/teapot", nil, nil, nil)
	if !errors.Is(err, errHTTPStatus) {
		t.Errorf("err = %v, want errHTTPStatus", err)
	}
}
