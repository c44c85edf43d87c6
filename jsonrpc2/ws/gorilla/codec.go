// Websocket implementation using Gorilla's Websocket library
package gorilla

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vipnode/birpc/jsonrpc2"
	rpcws "github.com/vipnode/birpc/jsonrpc2/ws"
)

var logger *log.Logger

// SetLogger overrides the logger output for this package.
func SetLogger(w io.Writer) {
	logger = log.New(w, "[gorilla] ", log.Flags())
}

func init() {
	SetLogger(io.Discard)
}

var _ rpcws.Dialer = WebSocketDial

// WebSocketDial returns a Codec that wraps a client-side connection with JSON
// encoding and decoding.
func WebSocketDial(ctx context.Context, url string) (jsonrpc2.Codec, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewCodec(conn), nil
}

// NewCodec returns a Codec over an established websocket connection. Each
// message is one text frame.
func NewCodec(conn *websocket.Conn) jsonrpc2.Codec {
	return &wsCodec{conn: conn}
}

var _ jsonrpc2.Codec = &wsCodec{}

type wsCodec struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    *websocket.Conn
}

func (codec *wsCodec) ReadMessage() (*jsonrpc2.Message, error) {
	codec.muRead.Lock()
	defer codec.muRead.Unlock()
	_, data, err := codec.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg jsonrpc2.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, jsonrpc2.DecodeError{Err: err}
	}
	return &msg, nil
}

func (codec *wsCodec) WriteMessage(msg *jsonrpc2.Message) error {
	codec.muWrite.Lock()
	defer codec.muWrite.Unlock()
	return codec.conn.WriteJSON(msg)
}

func (codec *wsCodec) Close() error {
	return codec.conn.Close()
}

var _ rpcws.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a WebSocket request and returns the
// appropriate jsonrpc2 codec.
type Upgrader struct {
	Upgrader websocket.Upgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (jsonrpc2.Codec, error) {
	conn, err := u.Upgrader.Upgrade(w, r, h)
	if err != nil {
		return nil, err
	}
	return NewCodec(conn), nil
}

var _ http.Handler = &Handler{}

// Handler serves a Server over websocket connections. Every connection gets
// its own Remote, so the methods of Server can call back the peer that
// called them through jsonrpc2.CtxService.
type Handler struct {
	Server   *jsonrpc2.Server
	Upgrader websocket.Upgrader

	// OnConnect is called with the Remote of each new connection, before
	// any message is read. It runs in the connection's goroutine.
	OnConnect func(r *http.Request, remote *jsonrpc2.Remote)

	PendingLimit   int
	PendingDiscard int
	// Debug logs every message through jsonrpc2.DebugCodec.
	Debug bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
		return
	}
	codec := NewCodec(conn)
	if h.Debug {
		codec = jsonrpc2.DebugCodec(r.RemoteAddr, codec)
	}
	transport := jsonrpc2.CodecTransport(codec)
	defer transport.Close()

	remote := jsonrpc2.NewRemote(transport, h.Server)
	remote.PendingLimit = h.PendingLimit
	remote.PendingDiscard = h.PendingDiscard
	defer remote.Close()

	if h.OnConnect != nil {
		h.OnConnect(r, remote)
	}
	if err := transport.Serve(); err != nil && err != io.EOF && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Printf("jsonrpc2.StreamTransport.Serve() error from %s: %s", r.RemoteAddr, err)
	}
}

// WebsocketHandler returns a Handler for srv with the default pending limits.
func WebsocketHandler(srv *jsonrpc2.Server) *Handler {
	return &Handler{
		Server:         srv,
		PendingLimit:   50,
		PendingDiscard: 10,
	}
}
