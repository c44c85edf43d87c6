package jsonrpc2

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Listener is called once per inbound message.
type Listener func(msg *Message)

// Transport moves messages between two endpoints. Send transmits one
// message, AddListener registers a callback for every inbound message and
// returns a func that deregisters it.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
	AddListener(l Listener) (remove func())
}

// Listeners is a set of listeners that transports can embed to implement
// AddListener. The zero value is ready to use.
type Listeners struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

// AddListener registers l and returns a func that removes it. Calling the
// returned func more than once is a no-op.
func (ls *Listeners) AddListener(l Listener) (remove func()) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.listeners == nil {
		ls.listeners = map[int]Listener{}
	}
	key := ls.next
	ls.next++
	ls.listeners[key] = l
	return func() {
		ls.mu.Lock()
		delete(ls.listeners, key)
		ls.mu.Unlock()
	}
}

// Len returns the number of registered listeners.
func (ls *Listeners) Len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.listeners)
}

// Dispatch calls every registered listener with msg, in registration order.
func (ls *Listeners) Dispatch(msg *Message) {
	ls.mu.RLock()
	keys := make([]int, 0, len(ls.listeners))
	for k := range ls.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	listeners := make([]Listener, 0, len(keys))
	for _, k := range keys {
		listeners = append(listeners, ls.listeners[k])
	}
	ls.mu.RUnlock()

	for _, l := range listeners {
		l(msg)
	}
}

var _ Transport = &PipeTransport{}

// Pipe returns two connected in-process transports. A message sent on one is
// delivered to the listeners of the other before Send returns. Messages are
// copied through their JSON encoding, so neither side shares memory with the
// other.
func Pipe() (*PipeTransport, *PipeTransport) {
	closed := make(chan struct{})
	once := &sync.Once{}
	a := &PipeTransport{closed: closed, closeOnce: once}
	b := &PipeTransport{closed: closed, closeOnce: once}
	a.peer, b.peer = b, a
	return a, b
}

// PipeTransport is one end of a Pipe.
type PipeTransport struct {
	Listeners

	peer      *PipeTransport
	closed    chan struct{}
	closeOnce *sync.Once
}

func (t *PipeTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var copied Message
	if err := json.Unmarshal(raw, &copied); err != nil {
		return err
	}
	t.peer.Dispatch(&copied)
	return nil
}

// Close closes both ends of the pipe.
func (t *PipeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}
