// Package download implements a multi-source chunked HTTP downloader.
//
// A resource known to be byte-identical across several mirror URLs is split
// into fixed-size byte ranges which are fetched concurrently, one in-flight
// range per mirror. A mirror whose fetch fails is retired for the rest of
// the session and its range is retried on a surviving mirror. The download
// completes once every range has landed in the caller's writer, and fails
// only when ranges remain but no mirror is left to serve them.
//
// Single-URL GET and POST downloads share the same progress/finish contract
// through the same Request handle.
package download

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mirrorget/mirrorget/pkg/logging"
)

// DefaultChunkSize is the range size used by GetChunks when the caller does
// not override it.
const DefaultChunkSize int64 = 512 * 1024

// Status is the externally observable state of a Request. It starts at
// StatusInProgress and transitions at most once, to StatusCompleted or
// StatusFailed; a cancelled request stays at StatusInProgress.
type Status int

const (
	// StatusInProgress indicates the download is still running.
	StatusInProgress Status = iota
	// StatusCompleted indicates every byte landed in the writer.
	StatusCompleted
	// StatusFailed indicates the download terminated without the full
	// content.
	StatusFailed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in-progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Callback observes a Request from its dispatcher goroutine. Progress
// callbacks always observe StatusInProgress; the finish callback observes
// the terminal status and fires exactly once, or never if the request is
// cancelled first. Calling Cancel from inside a callback is allowed.
type Callback func(*Request)

// event is a message from a fetcher goroutine to the request dispatcher.
type event struct {
	// kind discriminates the payload.
	kind eventKind
	// key identifies the chunk (its begin offset) for progress rollback.
	key int64
	// n is the incremental byte count for progress events.
	n int64
	// begin/end identify the finished range for chunk-done events.
	begin, end int64
	// err is the fetch outcome for done events; nil means success.
	err error
}

type eventKind int

const (
	eventProgress eventKind = iota
	eventChunkDone
	eventSimpleDone
)

// Request is a handle to one in-flight or finished download.
type Request struct {
	// id labels the request in logs.
	id string
	// writer receives positioned writes. For chunked downloads it must
	// tolerate concurrent WriteAt calls at disjoint offsets.
	writer io.WriterAt
	// onFinish and onProgress are the caller's callback slots.
	onFinish   Callback
	onProgress Callback
	// log is the request-scoped logger.
	log logging.Logger
	// client issues every HTTP request.
	client *http.Client
	// userAgent is sent with every request when non-empty.
	userAgent string
	// chunkSize is the range size for chunked downloads.
	chunkSize int64
	// body is the POST payload; nil means GET.
	body []byte

	// ctx is cancelled by Cancel and stops fetchers and the dispatcher.
	ctx    context.Context
	cancel context.CancelFunc
	// cancelled suppresses user callbacks once set.
	cancelled atomic.Bool

	// status holds the sticky tri-state, stored atomically so Status may
	// be queried from any goroutine.
	status atomic.Int32
	// received and total track progress in bytes.
	received atomic.Int64
	total    atomic.Int64

	// events funnels fetcher completions and progress into the dispatcher.
	events chan event
	// done is closed when the dispatcher exits.
	done chan struct{}
}

// Option configures a Request before it starts.
type Option func(*Request)

// WithChunkSize overrides DefaultChunkSize for chunked downloads.
func WithChunkSize(n int64) Option {
	return func(r *Request) { r.chunkSize = n }
}

// WithClient sets the HTTP client used for all fetches. The default client
// follows redirects, which is required: a mirror answering 301 is not a
// mirror failure.
func WithClient(c *http.Client) Option {
	return func(r *Request) { r.client = c }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log logging.Logger) Option {
	return func(r *Request) { r.log = log }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(r *Request) { r.userAgent = ua }
}

func newRequest(w io.WriterAt, onFinish, onProgress Callback, opts ...Option) *Request {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Request{
		id:         uuid.NewString(),
		writer:     w,
		onFinish:   onFinish,
		onProgress: onProgress,
		log:        logging.Discard(),
		client:     http.DefaultClient,
		chunkSize:  DefaultChunkSize,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.WithField("request", r.id)
	return r
}

// Get starts a single-URL GET download into w.
func Get(url string, w io.WriterAt, onFinish, onProgress Callback, opts ...Option) *Request {
	r := newRequest(w, onFinish, onProgress, opts...)
	r.events = make(chan event, 16)
	go r.runSimple(url)
	return r
}

// Post starts a single-URL POST download into w, sending body as the
// request payload.
func Post(url string, w io.WriterAt, body []byte, onFinish, onProgress Callback, opts ...Option) *Request {
	r := newRequest(w, onFinish, onProgress, opts...)
	r.body = body
	r.events = make(chan event, 16)
	go r.runSimple(url)
	return r
}

// GetChunks starts a chunked download of a fileSize-byte resource served
// identically by every URL in urls. It returns an error for an empty
// mirror list or non-positive sizes.
func GetChunks(urls []string, w io.WriterAt, fileSize int64, onFinish, onProgress Callback, opts ...Option) (*Request, error) {
	r := newRequest(w, onFinish, onProgress, opts...)
	strategy, err := NewChunksDownloadStrategy(urls, fileSize, r.chunkSize)
	if err != nil {
		r.cancel()
		return nil, err
	}
	r.total.Store(fileSize)
	// Buffer enough for every mirror to report a final event plus a burst
	// of progress without blocking.
	r.events = make(chan event, 4*len(urls)+16)
	go r.runMulti(strategy)
	return r, nil
}

// ID returns the request's unique identifier.
func (r *Request) ID() string {
	return r.id
}

// Status returns the current download status. It is safe to call from any
// goroutine and is sticky once terminal.
func (r *Request) Status() Status {
	return Status(r.status.Load())
}

// Received returns the number of bytes currently committed to the writer.
// Bytes from a range whose fetch later failed are not counted.
func (r *Request) Received() int64 {
	return r.received.Load()
}

// Total returns the expected size in bytes, or 0 when unknown (a simple
// download without a Content-Length).
func (r *Request) Total() int64 {
	return r.total.Load()
}

// Wait blocks until the download reaches a terminal status or is
// cancelled, and returns the final status.
func (r *Request) Wait() Status {
	<-r.done
	return r.Status()
}

// Cancel aborts the download. In-flight fetches are interrupted and their
// completions are ignored for both bookkeeping and user callbacks.
//
// Callbacks are serialized on the request's dispatcher goroutine, so
// cancelling from inside a progress or finish callback guarantees that no
// further callback fires. A Cancel from a different goroutine takes effect
// at the next event boundary.
func (r *Request) Cancel() {
	r.cancelled.Store(true)
	r.cancel()
}

// finish records the terminal status and fires the finish callback unless
// the request was cancelled. Runs on the dispatcher goroutine.
func (r *Request) finish(st Status) {
	if r.cancelled.Load() {
		return
	}
	r.status.Store(int32(st))
	r.log.WithField("status", st.String()).Debug("download finished")
	if r.onFinish != nil {
		r.onFinish(r)
	}
}

// progress fires the progress callback unless the request was cancelled.
// Runs on the dispatcher goroutine.
func (r *Request) progress() {
	if r.cancelled.Load() {
		return
	}
	if r.onProgress != nil {
		r.onProgress(r)
	}
}

// send delivers an event to the dispatcher, giving up when the request is
// cancelled so fetcher goroutines never leak on a blocked channel.
func (r *Request) send(ev event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}
