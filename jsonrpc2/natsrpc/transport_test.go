package natsrpc

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/vipnode/birpc/jsonrpc2"
)

// fakeBus delivers published messages to the handlers subscribed to the
// subject, in the publishing goroutine.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string][]nats.MsgHandler
	fail     error
}

func (bus *fakeBus) Publish(subj string, data []byte) error {
	bus.mu.Lock()
	if bus.fail != nil {
		bus.mu.Unlock()
		return bus.fail
	}
	handlers := append([]nats.MsgHandler(nil), bus.handlers[subj]...)
	bus.mu.Unlock()

	for _, h := range handlers {
		h(&nats.Msg{Subject: subj, Data: append([]byte(nil), data...)})
	}
	return nil
}

func (bus *fakeBus) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.handlers == nil {
		bus.handlers = map[string][]nats.MsgHandler{}
	}
	bus.handlers[subj] = append(bus.handlers[subj], cb)
	return nil, nil
}

type Adder struct{}

func (Adder) Add(a, b int) int {
	return a + b
}

func (Adder) Twice(ctx context.Context, n int) (int, error) {
	service, err := jsonrpc2.CtxService(ctx)
	if err != nil {
		return 0, err
	}
	var got int
	if err := service.Call(ctx, &got, "double", n); err != nil {
		return 0, err
	}
	return got, nil
}

func TestTransportRoundtrip(t *testing.T) {
	bus := &fakeBus{}
	serverTransport, err := New(bus, "svc.server", "svc.client")
	if err != nil {
		t.Fatal(err)
	}
	clientTransport, err := New(bus, "svc.client", "svc.server")
	if err != nil {
		t.Fatal(err)
	}

	server := &jsonrpc2.Server{}
	if err := server.Register("", Adder{}); err != nil {
		t.Fatal(err)
	}
	serverRemote := jsonrpc2.NewRemote(serverTransport, server)
	defer serverRemote.Close()

	clientServer := &jsonrpc2.Server{}
	if err := clientServer.RegisterFunc("double", func(n int) int { return n * 2 }); err != nil {
		t.Fatal(err)
	}
	clientRemote := jsonrpc2.NewRemote(clientTransport, clientServer)
	defer clientRemote.Close()

	var got int
	if err := clientRemote.Call(context.Background(), &got, "add", 2, 3); err != nil {
		t.Fatal(err)
	}
	if want := 5; got != want {
		t.Errorf("add: got: %d; want: %d", got, want)
	}

	if err := clientRemote.Call(context.Background(), &got, "twice", 21); err != nil {
		t.Fatal(err)
	}
	if want := 42; got != want {
		t.Errorf("twice: got: %d; want: %d", got, want)
	}
}

func TestTransportDropsUndecodable(t *testing.T) {
	bus := &fakeBus{}
	transport, err := New(bus, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	received := 0
	transport.AddListener(func(msg *jsonrpc2.Message) { received++ })

	if err := bus.Publish("a", []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish("a", []byte(`{"jsonrpc":"2.0","method":"x"}`)); err != nil {
		t.Fatal(err)
	}
	if received != 1 {
		t.Errorf("got %d messages; want 1", received)
	}
}

func TestTransportSendErrors(t *testing.T) {
	bus := &fakeBus{}
	transport, err := New(bus, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	remote := jsonrpc2.NewRemote(transport, nil)
	defer remote.Close()

	wantErr := errors.New("bus is down")
	bus.fail = wantErr
	if err := remote.Call(context.Background(), nil, "x"); err != wantErr {
		t.Errorf("got: %v; want: %v", err, wantErr)
	}
	if n := remote.Pending(); n != 0 {
		t.Errorf("got %d pending calls after failed send; want 0", n)
	}

	bus.fail = nil
	if err := transport.Close(); err != nil {
		t.Fatal(err)
	}
	if err := transport.Send(context.Background(), &jsonrpc2.Message{}); err != jsonrpc2.ErrClosed {
		t.Errorf("got: %v; want: %v", err, jsonrpc2.ErrClosed)
	}
}

func TestNewValidatesSubjects(t *testing.T) {
	for _, subjects := range [][2]string{{"", "b"}, {"a", ""}, {"a", "a"}} {
		if _, err := New(&fakeBus{}, subjects[0], subjects[1]); err == nil {
			t.Errorf("New(%q, %q): expected an error", subjects[0], subjects[1])
		}
	}
}
