package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServer         = -32000
)

var errorCodeMeanings = map[int]string{
	ErrCodeParse:          "Invalid JSON was received by the server. An error occurred on the server while parsing the JSON text.",
	ErrCodeInvalidRequest: "The JSON sent is not a valid Request object.",
	ErrCodeMethodNotFound: "The method does not exist / is not available.",
	ErrCodeInvalidParams:  "Invalid method parameter(s).",
	ErrCodeInternal:       "Internal JSON-RPC error.",
	ErrCodeServer:         "Server error.",
}

// ErrorCodeMeaning returns the standard description of a reserved error
// code, or an empty string for application codes.
func ErrorCodeMeaning(code int) string {
	return errorCodeMeanings[code]
}

// ErrClosed is returned when sending through a Remote or Transport that was
// closed.
var ErrClosed = errors.New("jsonrpc2: closed")

// ErrResponse is the error object of an Error-Response. It is the only error
// type a Future is rejected with.
type ErrResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (err *ErrResponse) Error() string {
	return fmt.Sprintf("%d: %s", err.Code, err.Message)
}

// ErrorCode returns the JSONRPC error code.
func (err *ErrResponse) ErrorCode() int {
	return err.Code
}

// ErrorData returns the auxiliary data, if any.
func (err *ErrResponse) ErrorData() interface{} {
	if len(err.Data) == 0 {
		return nil
	}
	return err.Data
}

// UnmarshalData decodes the auxiliary data into v.
func (err *ErrResponse) UnmarshalData(v interface{}) error {
	if len(err.Data) == 0 {
		return nil
	}
	return json.Unmarshal(err.Data, v)
}

// asErrResponse converts a local method failure into the error object that
// is sent back to the caller. The code comes from the failure if it carries
// one (ErrorCode() int), otherwise ErrCodeInternal. The failure itself is
// attached as data: its ErrorData() if it has any, otherwise its message.
func asErrResponse(err error) *ErrResponse {
	var rpcErr *ErrResponse
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	resp := &ErrResponse{
		Code:    ErrCodeInternal,
		Message: err.Error(),
	}
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		resp.Code = coded.ErrorCode()
	}
	if resp.Message == "" {
		resp.Message = fmt.Sprintf("%T", err)
	}

	var data interface{} = err.Error()
	var withData interface{ ErrorData() interface{} }
	if errors.As(err, &withData) && withData.ErrorData() != nil {
		data = withData.ErrorData()
	}
	if raw, encErr := json.Marshal(data); encErr == nil {
		resp.Data = raw
	}
	return resp
}

// ErrContextMissingValue is returned when a context is missing an expected value.
type ErrContextMissingValue struct {
	Key serviceContext
}

func (err ErrContextMissingValue) Error() string {
	return fmt.Sprintf("context missing value: %s", err.Key)
}

// DuplicateIDError is returned when a call is submitted with the ID of a call
// that is still pending.
type DuplicateIDError struct {
	ID ID
}

func (err DuplicateIDError) Error() string {
	return fmt.Sprintf("call with id %s is already pending", err.ID)
}

// MalformedMessageError is returned when a message does not fit exactly one
// of the request, result or error shapes.
type MalformedMessageError struct {
	Message *Message
}

func (err MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %s", err.Message)
}
