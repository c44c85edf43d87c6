package jsonrpc2

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ServePipe sets up symmetric server/clients over an in-process Pipe().
// Useful for testing. Services still need to be registered.
func ServePipe() (*Remote, *Remote) {
	t1, t2 := Pipe()
	client := NewRemote(t1, &Server{})
	server := NewRemote(t2, &Server{})
	return server, client
}

type serviceContext string

var ctxService serviceContext = "service"

// CtxService returns a Service associated with this request from a context
// used within a call. This is useful for initiating bidirectional calls.
func CtxService(ctx context.Context) (Service, error) {
	s, ok := ctx.Value(ctxService).(Service)
	if !ok {
		return nil, ErrContextMissingValue{ctxService}
	}
	return s, nil
}

// Service represents a remote service that can be called.
type Service interface {
	Call(ctx context.Context, result interface{}, method string, params ...interface{}) error
}

var _ Service = &Remote{}

// Remote is one endpoint of a bidirectional connection. It is both a client
// and a server: it correlates outbound calls with their responses and
// dispatches inbound requests to its Server.
type Remote struct {
	Transport Transport
	// Client generates request IDs for Call and Notify. Defaults to a
	// counting Client.
	Client Requester
	// Server holds the methods exposed to the peer. A nil Server answers
	// every call with method not found.
	Server *Server

	// PendingLimit is the number of pending calls to hold before the oldest get discarded.
	PendingLimit int
	// PendingDiscard is the number of oldest pending calls that get discarded when PendingLimit is reached.
	PendingDiscard int
	// CallTimeout bounds how long Call waits for a response. Zero waits
	// until the context passed to Call is done. It does not apply to Go.
	CallTimeout time.Duration
	// MaxInflight limits how many inbound requests are invoked at once.
	// Zero is unlimited.
	MaxInflight int64

	pending pendingTable

	mu       sync.Mutex
	closed   bool
	remove   func()
	inflight sync.WaitGroup
	semOnce  sync.Once
	sem      *semaphore.Weighted
}

// NewRemote returns a Remote that sends through t and handles every message
// received by t.
func NewRemote(t Transport, server *Server) *Remote {
	r := &Remote{
		Transport: t,
		Server:    server,
		Client:    &Client{},
	}
	r.Listen()
	return r
}

// Listen subscribes the Remote to its Transport. NewRemote calls it; a
// Remote built as a struct literal must call it once before use.
func (r *Remote) Listen() {
	remove := r.Transport.AddListener(r.HandleMessage)
	r.mu.Lock()
	r.remove = remove
	r.mu.Unlock()
}

// Close unsubscribes from the Transport and waits for inbound requests that
// are being handled to finish. Pending outbound calls are left as they are.
// It does not close the Transport.
func (r *Remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	remove := r.remove
	r.mu.Unlock()

	if remove != nil {
		remove()
	}
	r.inflight.Wait()
	return nil
}

// Pending returns the number of outbound calls waiting for a response.
func (r *Remote) Pending() int {
	return r.pending.len()
}

func (r *Remote) client() Requester {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Client == nil {
		r.Client = &Client{}
	}
	return r.Client
}

func (r *Remote) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Go sends req and returns a Future for its response. A notification (null
// ID) is sent and Go returns a nil Future. The pending entry is registered
// before the request is sent, so a fast response cannot miss it. If sending
// fails the entry is removed and the transport error is returned.
func (r *Remote) Go(ctx context.Context, req *Request) (*Future, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	msg := req.Message()
	if req.IsNotification() {
		return nil, r.Transport.Send(ctx, msg)
	}
	if !req.ID.IsValid() {
		return nil, MalformedMessageError{msg}
	}

	key := req.ID.Key()
	f := newFuture(req.ID)
	if err := r.pending.insert(key, f, r.PendingLimit, r.PendingDiscard); err != nil {
		return nil, err
	}
	if err := r.Transport.Send(ctx, msg); err != nil {
		r.pending.forget(key, f)
		return nil, err
	}
	return f, nil
}

// Call handles sending an RPC and receiving the corresponding response
// synchronously. If ctx is done first, the pending call is forgotten and
// ctx.Err() is returned. RPC errors are returned as *ErrResponse.
func (r *Remote) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if r.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.CallTimeout)
		defer cancel()
	}
	req, err := r.client().Request(method, params...)
	if err != nil {
		return err
	}
	f, err := r.Go(ctx, req)
	if err != nil {
		return err
	}
	select {
	case <-f.Done():
	case <-ctx.Done():
		select {
		case <-f.Done():
			// Settled while ctx was being cancelled.
		default:
			r.pending.forget(req.ID.Key(), f)
			return ctx.Err()
		}
	}
	raw, err := f.outcome()
	if err != nil {
		return err
	}
	return unmarshalResult(raw, result)
}

// Notify sends a notification. No response will arrive, so there is no way
// of knowing whether the peer handled it; only transport errors are
// returned.
func (r *Remote) Notify(ctx context.Context, method string, params ...interface{}) error {
	req, err := newNotification(method, params...)
	if err != nil {
		return err
	}
	_, err = r.Go(ctx, req)
	return err
}

// Forward returns a Forwarder that sends its calls through this Remote.
func (r *Remote) Forward() *Forwarder {
	return NewForwarder(r, r.client())
}

// HandleMessage routes one inbound message. Responses settle the matching
// pending call; responses for unknown IDs are ignored. Requests are invoked
// on the Server in their own goroutine and answered unless they are
// notifications. Malformed messages are dropped.
func (r *Remote) HandleMessage(msg *Message) {
	switch Classify(msg) {
	case KindResult, KindError:
		r.handleResponse(msg)
	case KindRequest:
		r.handleRequest(msg)
	default:
		logger.Printf("Remote.HandleMessage(): Dropping invalid message: %s", msg)
	}
}

func (r *Remote) handleResponse(msg *Message) {
	resp, err := msg.Response()
	if err != nil {
		logger.Printf("Remote.HandleMessage(): Dropping undecodable response: %s", err)
		return
	}
	f, ok := r.pending.take(resp.ResponseID().Key())
	if !ok {
		logger.Printf("Remote.HandleMessage(): Ignoring response for unknown id: %s", resp.ResponseID())
		return
	}
	switch resp := resp.(type) {
	case *ResultResponse:
		f.resolve(resp.Result)
	case *ErrorResponse:
		f.reject(resp.Error)
	}
}

func (r *Remote) handleRequest(msg *Message) {
	req, err := msg.Request()
	if err != nil {
		logger.Printf("Remote.HandleMessage(): Dropping undecodable request: %s", err)
		return
	}
	if !req.ID.IsNull() && !req.ID.IsValid() {
		// No response could carry this id.
		logger.Printf("Remote.HandleMessage(): Dropping request with invalid id: %s", msg)
		return
	}
	if len(req.Params) == 0 {
		req.Params = Params("[]")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		logger.Printf("Remote.HandleMessage(): Dropping request after close: %s", req.Method)
		return
	}
	r.inflight.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.inflight.Done()
		ctx := context.WithValue(context.Background(), ctxService, r)
		if sem := r.semaphore(); sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
		}
		resp := r.Server.Handle(ctx, req)
		if req.IsNotification() {
			if errResp, ok := resp.(*ErrorResponse); ok {
				logger.Printf("Remote.HandleMessage(): Notification %q failed: %s", req.Method, errResp.Error)
			}
			return
		}
		if err := r.Transport.Send(ctx, resp.Message()); err != nil {
			logger.Printf("Remote.HandleMessage(): Failed to send response for %q: %s", req.Method, err)
		}
	}()
}

func (r *Remote) semaphore() *semaphore.Weighted {
	r.semOnce.Do(func() {
		if r.MaxInflight > 0 {
			r.sem = semaphore.NewWeighted(r.MaxInflight)
		}
	})
	return r.sem
}

// unmarshalResult decodes a raw result into v, ignoring null.
func unmarshalResult(raw json.RawMessage, v interface{}) error {
	if v == nil || isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}
