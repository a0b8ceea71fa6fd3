// Package parallel splits per-entity stage work into contiguous chunks and
// runs them on a bounded set of goroutines. Returning from ForEach is the
// stage barrier: every chunk has finished.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest chunk worth handing to its own goroutine.
const minChunk = 64

// Workers resolves a configured worker count; zero or negative means one per CPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Chunks returns how many chunks ForEach will split n items into.
func Chunks(n, workers int) int {
	if n == 0 {
		return 0
	}
	workers = Workers(workers)
	if workers == 1 || n <= minChunk {
		return 1
	}
	chunks := (n + minChunk - 1) / minChunk
	if chunks > workers {
		chunks = workers
	}
	return chunks
}

// ForEach calls fn for each chunk [lo, hi) of [0, n). Chunk indexes are
// dense in [0, Chunks(n, workers)) so callers can give each chunk its own
// scratch buffer. The first error cancels ctx and is returned.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, chunk, lo, hi int) error) error {
	chunks := Chunks(n, workers)
	if chunks == 0 {
		return nil
	}
	if chunks == 1 {
		return fn(ctx, 0, 0, n)
	}

	size := (n + chunks - 1) / chunks
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			return fn(gctx, c, lo, hi)
		})
	}
	return g.Wait()
}
