package download

// runSimple is the dispatcher goroutine for a single-URL GET or POST. It is
// the degenerate case of the chunked machinery: one fetch of the whole
// resource, no ranging, same progress/finish contract.
func (r *Request) runSimple(url string) {
	defer close(r.done)

	f := &fetcher{client: r.client, userAgent: r.userAgent, writer: r.writer}
	go func() {
		err := f.fetchAll(r.ctx, url, r.body,
			func(total int64) { r.total.Store(total) },
			func(n int64) { r.send(event{kind: eventProgress, n: n}) })
		r.send(event{kind: eventSimpleDone, err: err})
	}()

	for {
		if r.cancelled.Load() {
			return
		}
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.events:
			switch ev.kind {
			case eventProgress:
				r.received.Add(ev.n)
				r.progress()
			case eventSimpleDone:
				if ev.err != nil {
					r.log.WithError(ev.err).Warn("download failed")
					r.finish(StatusFailed)
				} else {
					r.finish(StatusCompleted)
				}
				return
			}
		}
	}
}
