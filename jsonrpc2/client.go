package jsonrpc2

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Requester builds outbound requests with fresh IDs.
type Requester interface {
	Request(method string, params ...interface{}) (*Request, error)
}

var _ Requester = &Client{}

// Client numbers its requests with an incrementing counter.
type Client struct {
	id int64
}

func (c *Client) NextID() ID {
	return NumberID(atomic.AddInt64(&c.id, 1))
}

// Request returns a request for method with positional params.
func (c *Client) Request(method string, params ...interface{}) (*Request, error) {
	return newRequest(c.NextID(), method, params)
}

var _ Requester = UUIDClient{}

// UUIDClient identifies its requests with random UUID strings, which stay
// unique across reconnects and processes.
type UUIDClient struct{}

func (UUIDClient) NextID() ID {
	return StringID(uuid.NewString())
}

// Request returns a request for method with positional params.
func (c UUIDClient) Request(method string, params ...interface{}) (*Request, error) {
	return newRequest(c.NextID(), method, params)
}

func newRequest(id ID, method string, params []interface{}) (*Request, error) {
	p, err := PositionalParams(params...)
	if err != nil {
		return nil, err
	}
	return NewRequest(id, method, p), nil
}

func newNotification(method string, params ...interface{}) (*Request, error) {
	p, err := PositionalParams(params...)
	if err != nil {
		return nil, err
	}
	return NewNotification(method, p), nil
}
