package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/nats-io/nats.go"
	"github.com/vipnode/birpc/internal/pretty"
	"github.com/vipnode/birpc/jsonrpc2"
	"github.com/vipnode/birpc/jsonrpc2/natsrpc"
	"golang.org/x/sync/errgroup"
)

// session is what a command does with a connected Remote.
type session func(ctx context.Context, remote *jsonrpc2.Remote) error

func isHTTP(rawurl string) bool {
	u, err := url.Parse(rawurl)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// withRemote connects to the endpoint and runs fn with a Remote for it. The
// Remote exposes pong so that the server can call back.
func withRemote(ctx context.Context, e Endpoint, fn session) error {
	u, err := url.Parse(e.URL)
	if err != nil {
		return ErrExplain{err, "Invalid --url."}
	}

	local := &jsonrpc2.Server{}
	if err := local.Register("", Ponger{}); err != nil {
		return err
	}

	switch u.Scheme {
	case "ws", "wss":
		codec, err := wsDialer(e.WebSocket)(ctx, e.URL)
		if err != nil {
			return ErrExplain{err, "Failed to connect to the websocket server. Is `birpc serve` running?"}
		}
		transport := jsonrpc2.CodecTransport(codec)
		remote := jsonrpc2.NewRemote(transport, local)
		remote.Client = jsonrpc2.UUIDClient{}
		return serveWhile(ctx, transport, remote, fn)
	case "nats":
		// The client end listens on <subject>.client and sends to <subject>.server.
		transport, err := natsrpc.Dial(e.URL, e.Subject+".client", e.Subject+".server", nats.Name("birpc"), nats.Timeout(e.Timeout))
		if err != nil {
			return ErrExplain{err, "Failed to connect to the NATS server."}
		}
		defer transport.Close()
		remote := jsonrpc2.NewRemote(transport, local)
		remote.Client = jsonrpc2.UUIDClient{}
		defer remote.Close()
		return fn(ctx, remote)
	}
	return ErrExplain{
		fmt.Errorf("unsupported url scheme: %q", u.Scheme),
		"Use a ws://, wss://, http://, https:// or nats:// URL.",
	}
}

// serveWhile reads from transport until fn returns. If the connection drops
// first, the read error is returned.
func serveWhile(ctx context.Context, transport *jsonrpc2.StreamTransport, remote *jsonrpc2.Remote, fn session) error {
	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		err := transport.Serve()
		select {
		case <-done:
			return nil
		default:
		}
		return err
	})
	g.Go(func() error {
		defer transport.Close()
		defer remote.Close()
		defer close(done)
		return fn(ctx, remote)
	})
	return g.Wait()
}

func callRemote(ctx context.Context, remote *jsonrpc2.Remote, method string, args []string, named bool) (json.RawMessage, error) {
	callable, err := remote.Forward().Method(method)
	if err != nil {
		return nil, err
	}
	var f *jsonrpc2.Future
	if named {
		obj, err := namedArg(args)
		if err != nil {
			return nil, err
		}
		f, err = callable.Named(ctx, obj)
		if err != nil {
			return nil, err
		}
	} else {
		f, err = callable.Call(ctx, parseArgs(args)...)
		if err != nil {
			return nil, err
		}
	}
	var result json.RawMessage
	err = f.Result(ctx, &result)
	return result, err
}

func runCall(options Options) error {
	opts := options.Call
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	var result json.RawMessage
	var err error
	if isHTTP(opts.URL) {
		if opts.Named {
			return ErrExplain{errors.New("--named is not supported over http"), "Use a ws:// or nats:// URL to send named params."}
		}
		service := &jsonrpc2.HTTPService{Endpoint: opts.URL}
		err = service.Call(ctx, &result, opts.Args.Method, parseArgs(opts.Args.Params)...)
	} else {
		err = withRemote(ctx, opts.Endpoint, func(ctx context.Context, remote *jsonrpc2.Remote) error {
			var err error
			result, err = callRemote(ctx, remote, opts.Args.Method, opts.Args.Params, opts.Named)
			return err
		})
	}
	if err != nil {
		return err
	}
	fmt.Println(pretty.JSON(result))
	return nil
}

func runNotify(options Options) error {
	opts := options.Notify
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	params := parseArgs(opts.Args.Params)
	if isHTTP(opts.URL) {
		service := &jsonrpc2.HTTPService{Endpoint: opts.URL}
		return service.Notify(ctx, opts.Args.Method, params...)
	}
	return withRemote(ctx, opts.Endpoint, func(ctx context.Context, remote *jsonrpc2.Remote) error {
		return remote.Notify(ctx, opts.Args.Method, params...)
	})
}
