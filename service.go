package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vipnode/birpc/jsonrpc2"
)

// maxSleep bounds the sleep method so a peer can't pin a goroutine forever.
const maxSleep = time.Minute

// DemoService is the capability set exposed by `birpc serve`.
type DemoService struct {
	Started time.Time
}

// Echo returns its arguments.
func (s *DemoService) Echo(args ...json.RawMessage) []json.RawMessage {
	if args == nil {
		return []json.RawMessage{}
	}
	return args
}

func (s *DemoService) Add(a, b float64) float64 {
	return a + b
}

func (s *DemoService) Sum(nums ...float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}

// Sleep waits for ms milliseconds, and returns how long it slept.
func (s *DemoService) Sleep(ctx context.Context, ms int) (string, error) {
	d := time.Duration(ms) * time.Millisecond
	if d < 0 || d > maxSleep {
		return "", &jsonrpc2.ErrResponse{
			Code:    jsonrpc2.ErrCodeInvalidParams,
			Message: fmt.Sprintf("sleep must be between 0 and %d ms", maxSleep.Milliseconds()),
		}
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return d.String(), nil
}

// Fail always fails with the given code and message, which is useful to
// check how a client handles errors.
func (s *DemoService) Fail(message string, code int) error {
	if code == 0 {
		code = jsonrpc2.ErrCodeServer
	}
	return &jsonrpc2.ErrResponse{Code: code, Message: message}
}

// Ping calls back the pong method of the peer that called it.
func (s *DemoService) Ping(ctx context.Context) (string, error) {
	service, err := jsonrpc2.CtxService(ctx)
	if err != nil {
		return "", err
	}
	var pong string
	if err := service.Call(ctx, &pong, "pong"); err != nil {
		var errResp *jsonrpc2.ErrResponse
		if errors.As(err, &errResp) && errResp.Code == jsonrpc2.ErrCodeMethodNotFound {
			return "", &jsonrpc2.ErrResponse{
				Code:    jsonrpc2.ErrCodeServer,
				Message: "peer does not expose pong",
			}
		}
		return "", err
	}
	return "ping" + pong, nil
}

// Uptime returns how long the service has been running.
func (s *DemoService) Uptime() string {
	return time.Since(s.Started).Round(time.Second).String()
}

// registerDemo adds the demo capability set to srv, and rpc.methods which
// lists everything srv exposes.
func registerDemo(srv *jsonrpc2.Server, service *DemoService) error {
	if err := srv.Register("", service); err != nil {
		return err
	}
	return srv.RegisterFunc("rpc.methods", srv.Names)
}

// Ponger is registered by `birpc call` so that servers can call back.
type Ponger struct{}

func (Ponger) Pong() string {
	return "pong"
}
