package jsonrpc2

import (
	"context"
	"encoding/json"
	"sync"
)

// Future is the eventual outcome of an outbound call. It is resolved with a
// result or rejected with an *ErrResponse, exactly once. If no response ever
// arrives it stays unresolved.
type Future struct {
	id   ID
	once sync.Once
	done chan struct{}

	result json.RawMessage
	err    *ErrResponse
}

func newFuture(id ID) *Future {
	return &Future{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the ID of the call.
func (f *Future) ID() ID {
	return f.id
}

// Done returns a channel that is closed once the future is resolved or
// rejected.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) resolve(result json.RawMessage) bool {
	ok := false
	f.once.Do(func() {
		f.result = result
		close(f.done)
		ok = true
	})
	return ok
}

func (f *Future) reject(err *ErrResponse) bool {
	ok := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		ok = true
	})
	return ok
}

// Wait blocks until the future settles or ctx is done. A rejected future
// returns its *ErrResponse; a done context returns ctx.Err().
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.outcome()
}

// outcome returns the settled result or error. It must only be called after
// done is closed.
func (f *Future) outcome() (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// Result waits like Wait and decodes the result into v. A null result leaves
// v as is.
func (f *Future) Result(ctx context.Context, v interface{}) error {
	raw, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	return unmarshalResult(raw, v)
}
