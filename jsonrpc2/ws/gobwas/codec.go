// Package gobwas implements websocket codecs using gobwas/ws.
package gobwas

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/vipnode/birpc/jsonrpc2"
	rpcws "github.com/vipnode/birpc/jsonrpc2/ws"
)

var _ rpcws.Dialer = WebSocketDial

// WebSocketDial returns a Codec that wraps a client-side connection with JSON
// encoding and decoding.
func WebSocketDial(ctx context.Context, url string) (jsonrpc2.Codec, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return newCodec(conn, br, ws.StateClientSide), nil
}

func clientWebSocketCodec(conn net.Conn) jsonrpc2.Codec {
	return newCodec(conn, nil, ws.StateClientSide)
}

// serverWebSocketCodec returns a server-side Codec that wraps JSON encoding and
// decoding over a websocket connection.
func serverWebSocketCodec(conn net.Conn) jsonrpc2.Codec {
	return newCodec(conn, nil, ws.StateServerSide)
}

func newCodec(conn net.Conn, br *bufio.Reader, state ws.State) *wsCodec {
	codec := &wsCodec{
		conn:  conn,
		r:     conn,
		state: state,
	}
	if br != nil {
		// The handshake may have buffered the first frames.
		codec.r = io.MultiReader(br, conn)
	}
	return codec
}

var _ jsonrpc2.Codec = &wsCodec{}

type wsCodec struct {
	muRead  sync.Mutex
	muWrite sync.Mutex
	conn    net.Conn
	r       io.Reader
	state   ws.State
}

// lockedWriter serializes control frame replies with message writes.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func (codec *wsCodec) ReadMessage() (*jsonrpc2.Message, error) {
	codec.muRead.Lock()
	defer codec.muRead.Unlock()

	rw := struct {
		io.Reader
		io.Writer
	}{codec.r, lockedWriter{&codec.muWrite, codec.conn}}

	var data []byte
	var err error
	if codec.state == ws.StateServerSide {
		data, _, err = wsutil.ReadClientData(rw)
	} else {
		data, _, err = wsutil.ReadServerData(rw)
	}
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
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	codec.muWrite.Lock()
	defer codec.muWrite.Unlock()
	if codec.state == ws.StateServerSide {
		return wsutil.WriteServerMessage(codec.conn, ws.OpText, data)
	}
	return wsutil.WriteClientMessage(codec.conn, ws.OpText, data)
}

func (codec *wsCodec) Close() error {
	return codec.conn.Close()
}

var _ rpcws.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a WebSocket request and returns the
// appropriate jsonrpc2 codec. Response headers are not supported.
type Upgrader struct {
	Upgrader ws.HTTPUpgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, h http.Header) (jsonrpc2.Codec, error) {
	conn, _, _, err := u.Upgrader.Upgrade(r, w)
	if err != nil {
		return nil, err
	}
	return serverWebSocketCodec(conn), nil
}
