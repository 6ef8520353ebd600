package processor

import "context"

// ItemResult is the outcome of one batch item: a value or the error that replaced it
type ItemResult[T any] struct {
	Index int
	Value T
	Err   error
}

// runBatch applies fn to indices 0..n-1 sequentially. A failing item never
// stops the batch; its error is returned in place of the value. done is
// called after every item with the number of items finished.
func runBatch[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error), done func(finished int)) []ItemResult[T] {
	results := make([]ItemResult[T], 0, n)
	for i := 0; i < n; i++ {
		v, err := fn(ctx, i)
		results = append(results, ItemResult[T]{Index: i, Value: v, Err: err})
		if done != nil {
			done(i + 1)
		}
	}
	return results
}
