package jsonrpc2

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestRemoteManual(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	codec1, codec2 := IOCodec(c1), IOCodec(c2)

	s2 := Server{}
	if err := s2.Register("", &Ponger{}); err != nil {
		t.Fatal(err)
	}

	req, err := (&Client{}).Request("pong")
	if err != nil {
		t.Fatal(err)
	}
	var g errgroup.Group
	g.Go(func() error {
		return codec1.WriteMessage(req.Message())
	})

	msg, err := codec2.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	assertEqualJSON(t, msg, req.Message(), "message does not match")
	if err := g.Wait(); err != nil {
		t.Error(err)
	}

	req2, err := msg.Request()
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := s2.Handle(context.Background(), req2).(*ResultResponse)
	if !ok {
		t.Fatal("expected a result response")
	}
	var got string
	if err := resp.UnmarshalResult(&got); err != nil {
		t.Error(err)
	}
	if want := "pong"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
}

func TestRemoteBidirectional(t *testing.T) {
	pingerClient, pongerClient := ServePipe()
	defer pingerClient.Close()
	defer pongerClient.Close()

	ponger := &Ponger{}
	pingerClient.Server.Register("", ponger)

	pinger := &Pinger{
		PongService: pongerClient,
	}
	pongerClient.Server.Register("", pinger)

	var got string
	if err := pongerClient.Call(context.Background(), &got, "pong"); err != nil {
		t.Error(err)
	}
	if want := "pong"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}

	if got, want := pinger.PingPong(), "pingpong"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}

	if err := pingerClient.Call(context.Background(), &got, "pingPong"); err != nil {
		t.Error(err)
	}
	if want := "pingpong"; got != want {
		t.Errorf("got: %q; want %q", got, want)
	}
}

func TestRemoteContextService(t *testing.T) {
	conn1, conn2 := net.Pipe()
	t1, t2 := CodecTransport(IOCodec(conn1)), CodecTransport(IOCodec(conn2))
	defer t1.Close()
	defer t2.Close()

	s1, s2 := &Server{}, &Server{}
	client1 := NewRemote(t1, s1)
	client2 := NewRemote(t2, s2)
	defer client1.Close()
	defer client2.Close()

	fib := &Fib{}
	s1.Register("", fib)
	s2.Register("", fib)

	// These should serve until the connection is closed
	go t1.Serve()
	go t2.Serve()

	// 0, 1, 1, 2, 3, 5, 8, 13, 21
	var got int
	if err := client1.Call(context.Background(), &got, "fibonacci", 0, 1, 6); err != nil {
		t.Error(err)
	}
	if want := 21; got != want {
		t.Errorf("got: %d; want %d", got, want)
	}
}

func TestRemoteCorrelation(t *testing.T) {
	transport := &recordingTransport{}
	remote := NewRemote(transport, nil)
	defer remote.Close()

	ctx := context.Background()
	abc, err := remote.Go(ctx, NewRequest(StringID("abc"), "a", nil))
	if err != nil {
		t.Fatal(err)
	}
	other, err := remote.Go(ctx, NewRequest(StringID("other"), "b", nil))
	if err != nil {
		t.Fatal(err)
	}
	if n := remote.Pending(); n != 2 {
		t.Errorf("got %d pending; want 2", n)
	}

	// Responses for unknown ids are ignored.
	transport.deliver(`{"jsonrpc":"2.0","id":"unknown","result":1}`)
	// A numeric id never matches a string id.
	transport.deliver(`{"jsonrpc":"2.0","id":1,"result":1}`)
	if n := remote.Pending(); n != 2 {
		t.Errorf("got %d pending; want 2", n)
	}

	transport.deliver(`{"jsonrpc":"2.0","id":"abc","result":42}`)
	waitDone(t, abc)
	var got int
	if err := abc.Result(ctx, &got); err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("got: %d; want: 42", got)
	}

	// A duplicate delivery is a no-op.
	transport.deliver(`{"jsonrpc":"2.0","id":"abc","error":{"code":1,"message":"late"}}`)
	if err := abc.Result(ctx, &got); err != nil || got != 42 {
		t.Errorf("future changed after settling: %d, %v", got, err)
	}

	select {
	case <-other.Done():
		t.Error("unrelated future settled")
	default:
	}
	if n := remote.Pending(); n != 1 {
		t.Errorf("got %d pending; want 1", n)
	}

	transport.deliver(`{"jsonrpc":"2.0","id":"other","error":{"code":-32000,"message":"boom","data":{"why":"because"}}}`)
	waitDone(t, other)
	_, err = other.Wait(ctx)
	errResp, ok := err.(*ErrResponse)
	if !ok {
		t.Fatalf("unexpected error type: %T", err)
	}
	if errResp.Code != ErrCodeServer || errResp.Message != "boom" || string(errResp.Data) != `{"why":"because"}` {
		t.Errorf("unexpected error: %+v", errResp)
	}

	if _, err := remote.Go(ctx, NewRequest(StringID("dup"), "c", nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := remote.Go(ctx, NewRequest(StringID("dup"), "c", nil)); err == nil {
		t.Error("expected a duplicate id error")
	}
}

func TestRemoteUnknownMethod(t *testing.T) {
	transport := &recordingTransport{}
	remote := NewRemote(transport, &Server{})

	transport.deliver(`{"jsonrpc":"2.0","id":5,"method":"nope"}`)
	remote.Close()

	sent := transport.Sent()
	if len(sent) != 1 {
		t.Fatalf("got %d messages; want exactly 1", len(sent))
	}
	resp, err := sent[0].Response()
	if err != nil {
		t.Fatal(err)
	}
	errResp, ok := resp.(*ErrorResponse)
	if !ok {
		t.Fatalf("unexpected response: %s", sent[0])
	}
	if string(errResp.ID) != "5" {
		t.Errorf("got id: %s; want: 5", errResp.ID)
	}
	if errResp.Error.Code != ErrCodeMethodNotFound {
		t.Errorf("got code: %d; want: %d", errResp.Error.Code, ErrCodeMethodNotFound)
	}
	if !strings.Contains(errResp.Error.Message, "nope") {
		t.Errorf("message does not name the method: %q", errResp.Error.Message)
	}
}

func TestRemoteNotificationsAreNotAnswered(t *testing.T) {
	transport := &recordingTransport{}
	server := &Server{}
	if err := server.Register("", &FruitService{}); err != nil {
		t.Fatal(err)
	}
	remote := NewRemote(transport, server)

	transport.deliver(`{"jsonrpc":"2.0","method":"durian"}`)
	transport.deliver(`{"jsonrpc":"2.0","method":"apple"}`)
	transport.deliver(`{"jsonrpc":"2.0","method":"nope","params":[1]}`)
	transport.deliver(`{"jsonrpc":"2.0","id":null,"method":"apple"}`)
	// Malformed messages are dropped without a reply.
	transport.deliver(`{"jsonrpc":"2.0","id":1,"method":"apple","result":1}`)
	transport.deliver(`{"id":2,"method":"apple"}`)
	// Ids that are neither strings nor numbers can't be answered.
	transport.deliver(`{"jsonrpc":"2.0","id":true,"method":"nope"}`)
	transport.deliver(`{"jsonrpc":"2.0","id":{"x":1},"method":"apple"}`)
	transport.deliver(`{"jsonrpc":"2.0","id":[3],"method":"apple"}`)
	remote.Close()

	if sent := transport.Sent(); len(sent) != 0 {
		t.Errorf("got %d messages; want none: %v", len(sent), sent)
	}
}

func TestRemoteParams(t *testing.T) {
	server, client := ServePipe()
	defer server.Close()
	defer client.Close()
	if err := server.Server.Register("", Calculator{}); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var got int
	if err := client.Call(ctx, &got, "add", 2, 3); err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("add: got: %d; want: 5", got)
	}

	norm, err := client.Forward().Method("norm")
	if err != nil {
		t.Fatal(err)
	}
	f, err := norm.Named(ctx, Point{X: 3, Y: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Result(ctx, &got); err != nil {
		t.Fatal(err)
	}
	if got != 25 {
		t.Errorf("norm: got: %d; want: 25", got)
	}

	err = client.Call(ctx, &got, "panic")
	if errResp, ok := err.(*ErrResponse); !ok || errResp.Code != ErrCodeInternal {
		t.Errorf("panic: unexpected error: %v", err)
	}
}

func TestRemoteLostResponse(t *testing.T) {
	transport := &recordingTransport{}
	remote := NewRemote(transport, nil)
	defer remote.Close()

	ctx := context.Background()
	lost, err := remote.Go(ctx, NewRequest(NumberID(1), "lost", nil))
	if err != nil {
		t.Fatal(err)
	}
	next, err := remote.Go(ctx, NewRequest(NumberID(2), "next", nil))
	if err != nil {
		t.Fatal(err)
	}
	transport.deliver(`{"jsonrpc":"2.0","id":2,"result":"ok"}`)
	waitDone(t, next)

	select {
	case <-lost.Done():
		t.Error("lost call settled")
	default:
	}

	// Waiting on the lost call can only be bounded from the outside.
	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := lost.Wait(timeout); err != context.DeadlineExceeded {
		t.Errorf("got: %v; want: %v", err, context.DeadlineExceeded)
	}
}

func TestRemoteCallTimeout(t *testing.T) {
	transport := &recordingTransport{}
	remote := NewRemote(transport, nil)
	defer remote.Close()
	remote.CallTimeout = 10 * time.Millisecond

	err := remote.Call(context.Background(), nil, "slow")
	if err != context.DeadlineExceeded {
		t.Errorf("got: %v; want: %v", err, context.DeadlineExceeded)
	}
	if n := remote.Pending(); n != 0 {
		t.Errorf("got %d pending after timeout; want 0", n)
	}
}

// answeringTransport answers every request from within Send, and cancels
// the caller's context just before doing so.
type answeringTransport struct {
	Listeners
	cancel context.CancelFunc
}

func (t *answeringTransport) Send(ctx context.Context, msg *Message) error {
	resp, err := NewResultResponse(msg.ID, "done")
	if err != nil {
		return err
	}
	t.cancel()
	t.Dispatch(resp.Message())
	return nil
}

func TestRemoteCallSettledBeforeCancel(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		transport := &answeringTransport{cancel: cancel}
		remote := NewRemote(transport, nil)

		var got string
		if err := remote.Call(ctx, &got, "finish"); err != nil {
			t.Fatalf("attempt %d: got error: %v; want the settled result", i, err)
		}
		if got != "done" {
			t.Errorf("attempt %d: got: %q; want: done", i, got)
		}
		remote.Close()
	}
}

func TestRemoteSendFailure(t *testing.T) {
	wantErr := errors.New("wire cut")
	transport := &recordingTransport{fail: wantErr}
	remote := NewRemote(transport, nil)
	defer remote.Close()

	if err := remote.Call(context.Background(), nil, "apple"); err != wantErr {
		t.Errorf("got: %v; want: %v", err, wantErr)
	}
	if n := remote.Pending(); n != 0 {
		t.Errorf("got %d pending after failed send; want 0", n)
	}
	if err := remote.Notify(context.Background(), "apple"); err != wantErr {
		t.Errorf("got: %v; want: %v", err, wantErr)
	}
}

func TestRemoteClosed(t *testing.T) {
	server, client := ServePipe()
	server.Close()
	client.Close()

	if err := client.Call(context.Background(), nil, "apple"); err != ErrClosed {
		t.Errorf("got: %v; want: %v", err, ErrClosed)
	}
}

func TestRemoteConcurrentCalls(t *testing.T) {
	server, client := ServePipe()
	defer server.Close()
	defer client.Close()
	server.MaxInflight = 4
	if err := server.Server.Register("", Calculator{}); err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		i := i
		g.Go(func() error {
			var got int
			if err := client.Call(context.Background(), &got, "add", i, i); err != nil {
				return err
			}
			if got != i+i {
				return fmt.Errorf("add(%d, %d): got %d", i, i, got)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Error(err)
	}
	if n := client.Pending(); n != 0 {
		t.Errorf("got %d pending; want 0", n)
	}
}

func TestRemotePendingLimit(t *testing.T) {
	transport := &recordingTransport{}
	remote := NewRemote(transport, nil)
	defer remote.Close()
	remote.PendingLimit = 5
	remote.PendingDiscard = 3

	for i := 1; i <= 6; i++ {
		if _, err := remote.Go(context.Background(), NewRequest(NumberID(int64(i)), "x", nil)); err != nil {
			t.Fatal(err)
		}
		// Timestamps must differ for the oldest to be well defined.
		time.Sleep(time.Millisecond)
	}
	if n := remote.Pending(); n != 3 {
		t.Errorf("got %d pending; want 3", n)
	}
}
