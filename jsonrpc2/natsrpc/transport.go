// Package natsrpc carries jsonrpc2 messages over a pair of NATS subjects.
//
// Each endpoint subscribes to its own subject and publishes to the subject
// of its peer, so two Remotes on the same NATS cluster can call each other
// in both directions:
//
//	server, _ := natsrpc.New(nc, "svc.server", "svc.client")
//	client, _ := natsrpc.New(nc, "svc.client", "svc.server")
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/vipnode/birpc/jsonrpc2"
)

var logger *log.Logger

// SetLogger overrides the logger output for this package.
func SetLogger(w io.Writer) {
	logger = log.New(w, "[natsrpc] ", log.Flags())
}

func init() {
	SetLogger(io.Discard)
}

// Conn is the part of *nats.Conn that a Transport uses.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

var _ Conn = &nats.Conn{}

var _ jsonrpc2.Transport = &Transport{}

// Transport is a jsonrpc2.Transport that receives on one subject and sends
// to another. Every NATS message holds exactly one jsonrpc2 message.
type Transport struct {
	jsonrpc2.Listeners

	conn  Conn
	inbox string
	peer  string

	mu     sync.Mutex
	sub    *nats.Subscription
	owned  *nats.Conn
	closed bool
}

// New subscribes to inbox and returns a Transport that publishes to peer.
func New(conn Conn, inbox, peer string) (*Transport, error) {
	if inbox == "" || peer == "" {
		return nil, errors.New("natsrpc: inbox and peer subjects are required")
	}
	if inbox == peer {
		return nil, errors.New("natsrpc: inbox and peer subjects must differ")
	}
	t := &Transport{
		conn:  conn,
		inbox: inbox,
		peer:  peer,
	}
	sub, err := conn.Subscribe(inbox, t.receive)
	if err != nil {
		return nil, err
	}
	t.sub = sub
	return t, nil
}

// Dial connects to the NATS server at url and returns a Transport that owns
// the connection. Closing the Transport closes the connection.
func Dial(url, inbox, peer string, opts ...nats.Option) (*Transport, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	t, err := New(nc, inbox, peer)
	if err != nil {
		nc.Close()
		return nil, err
	}
	t.owned = nc
	return t, nil
}

func (t *Transport) receive(msg *nats.Msg) {
	var m jsonrpc2.Message
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		logger.Printf("Transport.receive(): Dropping undecodable message on %s: %s", msg.Subject, err)
		return
	}
	t.Dispatch(&m)
}

// Send publishes msg to the peer subject.
func (t *Transport) Send(ctx context.Context, msg *jsonrpc2.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return jsonrpc2.ErrClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return t.conn.Publish(t.peer, data)
}

// Close unsubscribes from the inbox subject, and closes the connection if the
// Transport was created with Dial.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var err error
	if t.sub != nil {
		err = t.sub.Unsubscribe()
	}
	if t.owned != nil {
		t.owned.Close()
	}
	return err
}
