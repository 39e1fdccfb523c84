package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/quill/vm"
)

// ErrWorkerStopped is returned for work submitted after the session ended.
var ErrWorkerStopped = errors.New("session worker stopped")

// sessionRequest represents a unit of work to be executed on a session's
// goroutine.
type sessionRequest struct {
	fn   func(*vm.Session) (any, error)
	done chan sessionResult
}

// sessionResult holds the return value from a session operation.
type sessionResult struct {
	value any
	err   error
}

// SessionWorker serializes all access to one story session through a
// single goroutine. A vm.Session is not safe for concurrent use; every
// handler touching it goes through its worker.
type SessionWorker struct {
	session  *vm.Session
	requests chan sessionRequest
	quit     chan struct{}
}

// NewSessionWorker creates a SessionWorker and starts the processing
// goroutine.
func NewSessionWorker(s *vm.Session) *SessionWorker {
	w := &SessionWorker{
		session:  s,
		requests: make(chan sessionRequest, 8),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *SessionWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the session, recovering from panics.
func (w *SessionWorker) execute(fn func(*vm.Session) (any, error)) (result sessionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("session worker panic: %v", r)
			result.err = fmt.Errorf("panic: %v", r)
		}
	}()
	result.value, result.err = fn(w.session)
	return result
}

// Do submits a function for execution on the session goroutine and blocks
// until it completes or ctx is done.
func (w *SessionWorker) Do(ctx context.Context, fn func(*vm.Session) (any, error)) (any, error) {
	select {
	case <-w.quit:
		return nil, ErrWorkerStopped
	default:
	}
	req := sessionRequest{
		fn:   fn,
		done: make(chan sessionResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the worker goroutine.
func (w *SessionWorker) Stop() {
	close(w.quit)
}
