package main

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/vipnode/birpc/jsonrpc2"
	"github.com/vipnode/birpc/jsonrpc2/ws"
)

// server exposes one jsonrpc2.Server over plain HTTP and over websockets.
// HTTP is one call per request. Every websocket connection gets its own
// Remote, so methods can call back the connected peer.
type server struct {
	jsonrpc2.HTTPServer
	ws       ws.Upgrader
	debugLog bool
	header   http.Header

	pendingLimit   int
	pendingDiscard int
	maxInflight    int64
	callTimeout    time.Duration
}

// Handler routes POST / to RPC over HTTP and GET /ws to websocket upgrades.
func (s *server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", s.serveHTTP).Methods(http.MethodPost)
	router.HandleFunc("/ws", s.serveWebSocket).Methods(http.MethodGet)
	return router
}

func (s *server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	for k, values := range s.header {
		for _, v := range values {
			w.Header().Set(k, v)
		}
	}
	s.HTTPServer.ServeHTTP(w, r)
}

func (s *server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	codec, err := s.ws.Upgrade(r, w, s.header)
	if err != nil {
		logger.Debugf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
		return
	}
	if s.debugLog {
		codec = jsonrpc2.DebugCodec(r.RemoteAddr, codec)
	}
	transport := jsonrpc2.CodecTransport(codec)
	defer transport.Close()

	remote := jsonrpc2.NewRemote(transport, &s.HTTPServer.Server)
	remote.Client = jsonrpc2.UUIDClient{}
	remote.PendingLimit = s.pendingLimit
	remote.PendingDiscard = s.pendingDiscard
	remote.MaxInflight = s.maxInflight
	// Callbacks to a peer that went away must not block Close forever.
	remote.CallTimeout = s.callTimeout
	defer remote.Close()

	logger.Infof("Websocket peer connected: %s", r.RemoteAddr)
	if err := transport.Serve(); err != nil && err != io.EOF {
		logger.Debugf("jsonrpc2.StreamTransport.Serve() error from %s: %s", r.RemoteAddr, err)
	}
	logger.Infof("Websocket peer disconnected: %s", r.RemoteAddr)
}
