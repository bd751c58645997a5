package repository

import (
	"context"
	"fmt"
)

// Snapshot is one emission of a live query: the full collection or the error
// that prevented loading it.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Loader reads the full current state of a collection.
type Loader[T any] func(ctx context.Context) (T, error)

// Watch emits a snapshot immediately and again after every change published on
// topic. The channel closes when ctx is cancelled. Load failures are emitted as
// error snapshots and the watch keeps running.
func Watch[T any](ctx context.Context, feed ChangeFeed, topic string, load Loader[T]) <-chan Snapshot[T] {
	out := make(chan Snapshot[T], 1)

	changes, err := feed.Subscribe(ctx, topic)
	if err != nil {
		out <- Snapshot[T]{Err: fmt.Errorf("subscribe %s: %w", topic, err)}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		for {
			value, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot[T]{Value: value, Err: err}:
			case <-ctx.Done():
				return
			}
			select {
			case _, ok := <-changes:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func publish(ctx context.Context, feed ChangeFeed, topic string) error {
	if feed == nil {
		return nil
	}
	return feed.Publish(context.WithoutCancel(ctx), topic)
}
