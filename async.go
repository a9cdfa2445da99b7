package ore

import (
	"context"
	"sync"
)

// AsyncState identifies which variant of an AsyncResult is active.
type AsyncState int

const (
	// AsyncLoading means the fetch is in flight and no value is available.
	AsyncLoading AsyncState = iota
	// AsyncOk means the fetch resolved with a value.
	AsyncOk
	// AsyncError means the fetch failed.
	AsyncError
)

func (s AsyncState) String() string {
	switch s {
	case AsyncLoading:
		return "loading"
	case AsyncOk:
		return "ok"
	case AsyncError:
		return "error"
	default:
		return "unknown"
	}
}

// AsyncResult is the lifecycle wrapper for one asynchronous fetch.
// Exactly one variant is active at a time: it is created Loading,
// resolves to Ok or Error exactly once per run, and a restart takes it
// back to Loading. Consumers must check State (or the Value/Err
// two-value forms) before reading the payload.
type AsyncResult[T any] struct {
	state AsyncState
	value T
	err   error
}

// Loading returns a Loading-variant result.
func Loading[T any]() AsyncResult[T] {
	return AsyncResult[T]{state: AsyncLoading}
}

// Ok returns an Ok-variant result carrying v.
func Ok[T any](v T) AsyncResult[T] {
	return AsyncResult[T]{state: AsyncOk, value: v}
}

// Errored returns an Error-variant result carrying err.
func Errored[T any](err error) AsyncResult[T] {
	return AsyncResult[T]{state: AsyncError, err: err}
}

// State returns the active variant.
func (r AsyncResult[T]) State() AsyncState { return r.state }

// Value returns the payload and true when the result is Ok.
func (r AsyncResult[T]) Value() (T, bool) {
	return r.value, r.state == AsyncOk
}

// Err returns the failure and true when the result is Error.
func (r AsyncResult[T]) Err() (error, bool) {
	return r.err, r.state == AsyncError
}

// FetchFunc produces the value for one run of a Query.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Query drives repeated runs of an asynchronous fetch and exposes the
// current AsyncResult to observers. Each Restart synchronously flips
// the result to Loading, launches the fetch, and commits Ok or Error
// when it resolves. A fetch that resolves after a newer Restart (or
// after Close) is dropped, so each run resolves the observable result
// at most once and a torn-down owner never sees a late callback.
type Query[T any] struct {
	mu        sync.Mutex
	fetch     FetchFunc[T]
	result    AsyncResult[T]
	observers []func(AsyncResult[T])
	run       uint64
	closed    bool
}

// NewQuery creates a Query in the Loading state. It does not start a
// fetch; call Restart for the initial run.
func NewQuery[T any](fetch FetchFunc[T]) *Query[T] {
	return &Query[T]{
		fetch:  fetch,
		result: Loading[T](),
	}
}

// Result returns the current result value.
func (q *Query[T]) Result() AsyncResult[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result
}

// Subscribe registers an observer invoked on every result change,
// including the Loading flip at the start of each run.
func (q *Query[T]) Subscribe(fn func(AsyncResult[T])) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, fn)
}

// Restart begins a new run: the result transitions to Loading before
// Restart returns, and the fetch proceeds in the background.
func (q *Query[T]) Restart(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.run++
	run := q.run
	q.result = Loading[T]()
	observers := q.snapshotObservers()
	result := q.result
	q.mu.Unlock()

	for _, fn := range observers {
		fn(result)
	}

	go func() {
		v, err := q.fetch(ctx)
		q.mu.Lock()
		if q.closed || q.run != run {
			q.mu.Unlock()
			return
		}
		if err != nil {
			q.result = Errored[T](err)
		} else {
			q.result = Ok(v)
		}
		observers := q.snapshotObservers()
		result := q.result
		q.mu.Unlock()

		for _, fn := range observers {
			fn(result)
		}
	}()
}

// Close tears the query down. In-flight fetches become no-ops and
// further Restart calls do nothing.
func (q *Query[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *Query[T]) snapshotObservers() []func(AsyncResult[T]) {
	out := make([]func(AsyncResult[T]), len(q.observers))
	copy(out, q.observers)
	return out
}
