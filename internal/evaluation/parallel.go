package evaluation

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
)

// feedBuffer is the per-tree channel capacity of RunPatterns.
const feedBuffer = 64

// RunPatterns evaluates every job over the same stream, one goroutine per
// tree. A reader goroutine broadcasts each event to all trees, so every
// tree sees the full stream in order.
//
// The first stream or sink error cancels the remaining work. Per-job
// stats are returned in job order either way. sink must be safe for
// concurrent use.
func RunPatterns(ctx context.Context, jobs []Job, s event.Stream, sink Sink) ([]Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	stats := make([]Stats, len(jobs))
	feeds := make([]chan *event.Event, len(jobs))
	for i, job := range jobs {
		feeds[i] = make(chan *event.Event, feedBuffer)
		stats[i] = Stats{Pattern: job.Tree.Pattern().Name, RunID: job.RunID}
	}

	g.Go(func() error {
		defer func() {
			for _, f := range feeds {
				close(f)
			}
		}()
		for {
			e, err := s.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return streamError(err)
			}
			for _, f := range feeds {
				select {
				case f <- e:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	for i, job := range jobs {
		g.Go(func() (err error) {
			defer func() { RecordRun(err) }()
			st := &stats[i]
			for e := range feeds[i] {
				if err := process(gctx, job, e, sink, st); err != nil {
					return err
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			return emitAll(gctx, job, job.Tree.Flush(), sink, st)
		})
	}

	err := g.Wait()
	if err != nil {
		slog.Error("parallel evaluation failed", "error", err, "patterns", len(jobs))
	}
	return stats, err
}
