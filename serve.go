package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vipnode/birpc/jsonrpc2"
	"github.com/vipnode/birpc/jsonrpc2/natsrpc"
	"github.com/vipnode/birpc/jsonrpc2/ws"
	"github.com/vipnode/birpc/jsonrpc2/ws/gobwas"
	"github.com/vipnode/birpc/jsonrpc2/ws/gorilla"
)

func wsUpgrader(name string) ws.Upgrader {
	if name == "gobwas" {
		return &gobwas.Upgrader{}
	}
	return &gorilla.Upgrader{}
}

func wsDialer(name string) ws.Dialer {
	if name == "gobwas" {
		return gobwas.WebSocketDial
	}
	return gorilla.WebSocketDial
}

func runServe(options Options) error {
	opts := options.Serve
	s := &server{
		ws:             wsUpgrader(opts.WebSocket),
		debugLog:       opts.DebugRPC,
		pendingLimit:   opts.PendingLimit,
		pendingDiscard: opts.PendingDiscard,
		maxInflight:    opts.MaxInflight,
		callTimeout:    opts.CallTimeout,
		header: http.Header{
			"Server": []string{"birpc/" + Version},
		},
	}
	service := &DemoService{Started: time.Now()}
	if err := registerDemo(&s.HTTPServer.Server, service); err != nil {
		return err
	}

	if opts.NATS != "" {
		// The server end listens on <subject>.server and answers on <subject>.client.
		transport, err := natsrpc.Dial(opts.NATS, opts.Subject+".server", opts.Subject+".client", nats.Name("birpc serve"))
		if err != nil {
			return ErrExplain{err, "Failed to connect to the NATS server given with --nats."}
		}
		defer transport.Close()
		remote := jsonrpc2.NewRemote(transport, &s.HTTPServer.Server)
		remote.Client = jsonrpc2.UUIDClient{}
		remote.PendingLimit = opts.PendingLimit
		remote.PendingDiscard = opts.PendingDiscard
		remote.MaxInflight = opts.MaxInflight
		remote.CallTimeout = opts.CallTimeout
		defer remote.Close()
		logger.Infof("Serving on NATS subject %s.server at %s", opts.Subject, opts.NATS)
	}

	httpServer := &http.Server{
		Addr:    opts.Bind,
		Handler: s.Handler(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("Starting birpc (version %s), listening on: http://%s and ws://%s/ws", Version, opts.Bind, opts.Bind)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return ErrExplain{err, "Failed to listen. Is --bind already in use?"}
	case <-shutdown:
		logger.Info("Shutting down...")
		return httpServer.Close()
	}
}
