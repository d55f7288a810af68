package download

// runMulti is the dispatcher goroutine for a chunked download. It owns the
// strategy outright: every NextChunk and ChunkFinished call happens here,
// which serializes the bookkeeping without a lock, and every user callback
// fires here, which is what makes cancelling from inside a callback safe.
func (r *Request) runMulti(strategy *ChunksDownloadStrategy) {
	defer close(r.done)

	f := &fetcher{client: r.client, userAgent: r.userAgent, writer: r.writer}
	inFlight := 0
	// partial tracks bytes written so far per in-flight chunk, keyed by the
	// chunk's begin offset, so a failed fetch can be rolled back from the
	// received counter before the range is re-downloaded.
	partial := make(map[int64]int64)

	launch := func(url string, begin, end int64) {
		inFlight++
		r.log.WithField("url", url).Debugf("fetching range %d-%d", begin, end)
		go func() {
			err := f.fetchRange(r.ctx, url, begin, end, r.total.Load(), func(n int64) {
				r.send(event{kind: eventProgress, key: begin, n: n})
			})
			r.send(event{kind: eventChunkDone, key: begin, begin: begin, end: end, err: err})
		}()
	}

	// assign drains NextChunk until the strategy runs out of idle servers
	// or reaches a terminal verdict.
	assign := func() ChunkVerdict {
		for {
			url, begin, end, verdict := strategy.NextChunk()
			if verdict != VerdictNextChunk {
				return verdict
			}
			launch(url, begin, end)
		}
	}

	verdict := assign()
	for {
		if r.cancelled.Load() {
			return
		}
		if inFlight == 0 {
			switch verdict {
			case VerdictDownloadSucceeded:
				r.finish(StatusCompleted)
				return
			case VerdictDownloadFailed:
				r.finish(StatusFailed)
				return
			}
		}

		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.events:
			switch ev.kind {
			case eventProgress:
				partial[ev.key] += ev.n
				r.received.Add(ev.n)
				r.progress()
			case eventChunkDone:
				inFlight--
				success := ev.err == nil
				if !success {
					// The range will be re-fetched from scratch, so its
					// partial bytes no longer count.
					if p := partial[ev.key]; p > 0 {
						r.received.Add(-p)
					}
					r.log.WithError(ev.err).Warnf("range %d-%d failed, retiring mirror", ev.begin, ev.end)
				}
				delete(partial, ev.key)
				if err := strategy.ChunkFinished(success, ev.begin, ev.end); err != nil {
					r.log.WithError(err).Error("inconsistent chunk bookkeeping")
				}
				r.progress()
				verdict = assign()
			}
		}
	}
}
