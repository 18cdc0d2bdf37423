// Package writer is the single consumer of the ingestion channel: it
// batches records and commits them to the store, one transaction per
// batch, flushing at a size threshold or as soon as the channel has
// nothing immediately ready.
package writer

import (
	"log/slog"
	"time"

	"gomodel/internal/logrecord"
	"gomodel/internal/metrics"
	"gomodel/internal/storage"
)

// batchSize is the number of records accumulated before a flush is
// forced even while more records are still waiting on the channel.
const batchSize = 1000

// Writer drains records from a channel and commits them to the store
// in batches. Producers (ingest connection handlers) send on the same
// channel this Writer reads from; a full channel blocks the sender —
// deliberately, since admission has already counted the record and a
// silent drop here would desynchronize the admission cache from the
// store.
type Writer struct {
	store *storage.Store
	in    <-chan logrecord.Record
}

// New constructs a Writer reading from in and committing to store. Run
// must be called to start consuming.
func New(store *storage.Store, in <-chan logrecord.Record) *Writer {
	return &Writer{
		store: store,
		in:    in,
	}
}

// Run consumes from the channel until it is closed, then flushes any
// remaining partial batch and returns. It is meant to be run in its
// own goroutine; the caller (app.App) closes the channel once every
// ingest handler has drained, and waits on its own done channel for
// Run to return.
func (w *Writer) Run() {
	batch := make([]logrecord.Record, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		err := w.store.InsertBatch(batch)
		metrics.BatchFlushDuration.Observe(time.Since(start).Seconds())
		metrics.BatchSize.Observe(float64(len(batch)))
		if err != nil {
			slog.Error("writer: failed to commit batch", "error", err, "count", len(batch))
		}
		batch = batch[:0]
	}

	for rec := range w.in {
		batch = append(batch, rec)

		if len(batch) >= batchSize {
			flush()
			continue
		}

		// Opportunistic flush: keep taking whatever is immediately
		// available on the channel, and commit what we have as soon as
		// nothing else is ready instead of waiting for the batch to
		// fill or for a periodic tick.
		for len(batch) > 0 {
			select {
			case rec2, ok := <-w.in:
				if !ok {
					flush()
					return
				}
				batch = append(batch, rec2)
				if len(batch) >= batchSize {
					flush()
				}
			default:
				flush()
			}
		}
	}

	flush()
}
