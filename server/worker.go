package server

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/chazu/nupython/compiler"
	"github.com/chazu/nupython/vm"
)

// ErrWorkerStopped is returned by Do after Stop.
var ErrWorkerStopped = errors.New("run worker stopped")

// runRequest is a unit of work for a worker goroutine.
type runRequest struct {
	fn   func() (any, error)
	done chan runResult
}

// runResult holds the return value from a run.
type runResult struct {
	value any
	err   error
}

// RunWorker executes runs on a fixed pool of goroutines. The pool size
// bounds how many programs execute at once; each run builds its own VM, so
// runs never share state.
type RunWorker struct {
	size     int
	requests chan runRequest
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRunWorker starts a worker pool with n goroutines (at least one).
func NewRunWorker(n int) *RunWorker {
	if n < 1 {
		n = 1
	}
	w := &RunWorker{
		size:     n,
		requests: make(chan runRequest),
		quit:     make(chan struct{}),
	}
	w.wg.Add(n)
	for i := 0; i < n; i++ {
		go w.loop()
	}
	return w
}

// loop processes requests until Stop.
func (w *RunWorker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *RunWorker) execute(fn func() (any, error)) (result runResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("run panicked: %v\n%s", r, debug.Stack())
			result = runResult{err: fmt.Errorf("run panicked: %v", r)}
		}
	}()
	value, err := fn()
	return runResult{value: value, err: err}
}

// Do submits fn to the pool and blocks until it completes or ctx is done.
// A panic inside fn is returned as an error.
func (w *RunWorker) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	req := runRequest{
		fn:   fn,
		done: make(chan runResult, 1),
	}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, ErrWorkerStopped
	}

	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Exec runs prog on a fresh VM inside the pool.
func (w *RunWorker) Exec(ctx context.Context, prog *compiler.Program, opts vm.Options) (*vm.Result, error) {
	value, err := w.Do(ctx, func() (any, error) {
		return vm.Run(ctx, prog, opts)
	})
	result, _ := value.(*vm.Result)
	return result, err
}

// Size returns the number of worker goroutines.
func (w *RunWorker) Size() int {
	return w.size
}

// Stop shuts down the worker goroutines and waits for in-flight runs.
func (w *RunWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
	})
	w.wg.Wait()
}
