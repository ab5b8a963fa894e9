// Package performance provides chunked, bounded-parallel processing of large
// row ranges.
package performance

import (
	"context"
	"runtime"

	"github.com/YuminosukeSato/incomeml/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of rows handed to one call of the chunk function.
const DefaultChunkSize = 4096

// ChunkedProcessor splits [0, n) into contiguous chunks and processes them
// with at most Workers goroutines.
type ChunkedProcessor struct {
	ChunkSize int
	Workers   int // 0 以下は CPU 数
}

// NewChunkedProcessor creates a processor. Non-positive arguments select defaults.
func NewChunkedProcessor(chunkSize, workers int) *ChunkedProcessor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &ChunkedProcessor{ChunkSize: chunkSize, Workers: workers}
}

// Chunks returns the number of chunks needed for n rows.
func (c *ChunkedProcessor) Chunks(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + c.ChunkSize - 1) / c.ChunkSize
}

// Process calls fn(ctx, chunk, start, end) for every chunk. The first error
// cancels ctx for the remaining chunks and is returned.
func (c *ChunkedProcessor) Process(ctx context.Context, n int, fn func(ctx context.Context, chunk, start, end int) error) error {
	if c.ChunkSize <= 0 {
		return errors.NewValidationError("chunk_size", "must be positive", c.ChunkSize)
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.Workers > 0 {
		g.SetLimit(c.Workers)
	}
	for chunk := 0; chunk < c.Chunks(n); chunk++ {
		start := chunk * c.ChunkSize
		end := min(start+c.ChunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, chunk, start, end)
		})
	}
	return g.Wait()
}
