package jsonrpc2

import (
	"context"
)

var _ Service = &Local{}

// Local is a Service implementation for a local Server. It's like a Remote, but
// without a Transport: calls are handled in the calling goroutine.
type Local struct {
	Client
	Server
}

func (loc *Local) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	req, err := loc.Client.Request(method, params...)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, ctxService, loc)
	switch resp := loc.Server.Handle(ctx, req).(type) {
	case *ErrorResponse:
		return resp.Error
	case *ResultResponse:
		return resp.UnmarshalResult(result)
	}
	return nil
}

// Notify invokes the method and discards its outcome, including failures.
func (loc *Local) Notify(ctx context.Context, method string, params ...interface{}) error {
	req, err := newNotification(method, params...)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, ctxService, loc)
	_ = loc.Server.Handle(ctx, req)
	return nil
}
