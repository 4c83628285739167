package worker

import "sync/atomic"

// Task is a one-shot computation polled from the render loop.
type Task[T any] struct {
	fn   func() (T, error)
	pool *Pool

	submitted atomic.Bool
	done      atomic.Bool
	result    T
	err       error
}

// Spawn prepares fn to run on pool. The work is queued on the first Poll;
// with a nil pool it runs inline during that Poll.
func Spawn[T any](pool *Pool, fn func() (T, error)) *Task[T] {
	return &Task[T]{fn: fn, pool: pool}
}

// Poll makes progress on the task and reports whether it has completed.
// It never blocks. Poll must be called from a single goroutine.
func (t *Task[T]) Poll() bool {
	if t.done.Load() {
		return true
	}
	if t.submitted.Load() {
		return false
	}
	if t.pool == nil || !t.pool.IsRunning() {
		t.run()
		return true
	}
	// A full pool is retried on the next Poll.
	if t.pool.TrySubmit(t.run) {
		t.submitted.Store(true)
	}
	return false
}

func (t *Task[T]) run() {
	t.result, t.err = t.fn()
	t.done.Store(true)
}

// Running reports whether the task is queued or running on the pool. A
// task not submitted yet is not running. It is safe to call from any
// goroutine.
func (t *Task[T]) Running() bool {
	return t.submitted.Load() && !t.done.Load()
}

// Result returns the result of a completed task. It must only be called
// after Poll returned true.
func (t *Task[T]) Result() (T, error) {
	return t.result, t.err
}
