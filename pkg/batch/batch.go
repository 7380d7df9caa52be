// Package batch applies an operation over a collection with a fixed
// concurrency ceiling. Fanning out one Graph call per group or app without a
// limit gets the portal throttled; sequential batches of bounded size are
// simple and effective enough that no token-bucket limiter is needed.
package batch

import (
	"context"
	"sync"
)

// Chunk splits items into consecutive slices of at most size elements
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// Op maps one input element to one result
type Op[T, R any] func(ctx context.Context, item T) (R, error)

// MapWithConcurrency applies op to every item with at most limit invocations
// in flight. Items are processed in sequential batches of limit; batch N+1
// does not start until batch N has fully settled. The result slice preserves
// input order: result[i] corresponds to items[i] regardless of completion
// order inside a batch.
//
// If op returns an error the whole mapping fails with that error once the
// current batch settles. Callers that want per-element degradation must
// swallow the error inside op and return a sentinel result instead.
func MapWithConcurrency[T, R any](ctx context.Context, items []T, limit int, op Op[T, R]) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	offset := 0
	for _, b := range Chunk(items, limit) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr error
		)
		for i, item := range b {
			wg.Add(1)
			go func(idx int, it T) {
				defer wg.Done()
				r, err := op(ctx, it)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
				results[idx] = r
			}(offset+i, item)
		}
		wg.Wait()
		if firstErr != nil {
			return nil, firstErr
		}
		offset += len(b)
	}
	return results, nil
}
