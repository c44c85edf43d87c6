package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const httpContentType = "application/json"

var _ http.Handler = &HTTPServer{}

// HTTPServer provides a JSONRPC2 server over HTTP by implementing http.Handler.
// Each POST body carries one message. HTTP is one-directional: the server
// cannot call back the client.
type HTTPServer struct {
	Server

	// MaxContentLength is the request size limit (optional)
	MaxContentLength int64
}

func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.ContentLength == 0 && r.URL.RawQuery == "" {
		// Ignore empty GET requests
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.MaxContentLength > 0 && r.ContentLength > h.MaxContentLength {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	var body io.Reader = r.Body
	if h.MaxContentLength > 0 {
		body = io.LimitReader(r.Body, h.MaxContentLength)
	}
	defer r.Body.Close()

	w.Header().Set("content-type", httpContentType)
	enc := json.NewEncoder(w)

	var msg Message
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		resp := NewErrorResponse(nil, ErrCodeParse, fmt.Sprintf("failed to parse request: %s", err), nil)
		enc.Encode(resp.Message())
		return
	}

	req, err := msg.Request()
	if err == nil && !req.ID.IsNull() && !req.ID.IsValid() {
		err = MalformedMessageError{&msg}
	}
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		resp := NewErrorResponse(nil, ErrCodeInvalidRequest, ErrorCodeMeaning(ErrCodeInvalidRequest), nil)
		enc.Encode(resp.Message())
		return
	}

	resp := h.Server.Handle(r.Context(), req)
	if req.IsNotification() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := enc.Encode(resp.Message()); err != nil {
		logger.Printf("HTTPServer.ServeHTTP(): Failed to write response to %s: %s", r.RemoteAddr, err)
	}
}

var _ Service = &HTTPService{}

// HTTPService calls a remote HTTPServer, one HTTP request per call.
type HTTPService struct {
	Client
	HTTPClient http.Client

	// Endpoint is the HTTP URL to dial for RPC calls.
	Endpoint string
	// MaxContentLength is the response size limit (optional)
	MaxContentLength int64
}

func (service *HTTPService) post(ctx context.Context, req *Request) (*http.Response, error) {
	body, err := json.Marshal(req.Message())
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, service.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", httpContentType)
	httpReq.Header.Set("Accept", httpContentType)
	httpReq = httpReq.WithContext(ctx)

	resp, err := service.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, HTTPRequestError{
			Response: resp,
			Reason:   fmt.Sprintf("bad status code: %d", resp.StatusCode),
		}
	}
	return resp, nil
}

func (service *HTTPService) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	req, err := service.Client.Request(method, params...)
	if err != nil {
		return err
	}
	resp, err := service.post(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if service.MaxContentLength > 0 && resp.ContentLength > service.MaxContentLength {
		return HTTPRequestError{
			Response: resp,
			Reason:   "response too large",
		}
	}

	var r io.Reader = resp.Body
	if service.MaxContentLength > 0 {
		r = io.LimitReader(resp.Body, service.MaxContentLength)
	}

	var respMsg Message
	if err := json.NewDecoder(r).Decode(&respMsg); err != nil {
		return err
	}
	rpcResp, err := respMsg.Response()
	if err != nil {
		return HTTPRequestError{
			Response: resp,
			Reason:   "missing response in RPC message",
		}
	}
	switch rpcResp := rpcResp.(type) {
	case *ErrorResponse:
		return rpcResp.Error
	case *ResultResponse:
		return rpcResp.UnmarshalResult(result)
	}
	return nil
}

// Notify posts a notification. The server answers with no content.
func (service *HTTPService) Notify(ctx context.Context, method string, params ...interface{}) error {
	req, err := newNotification(method, params...)
	if err != nil {
		return err
	}
	resp, err := service.post(ctx, req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// HTTPRequestError is used when RPC over HTTP encounters an error during transport.
type HTTPRequestError struct {
	Response *http.Response
	Reason   string
}

func (err HTTPRequestError) Error() string {
	return fmt.Sprintf("http rpc request error: %s", err.Reason)
}
