package jsonrpc2

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const Version = "2.0"

// ID names a call for the lifetime of a connection. It holds the raw JSON
// value of the "id" member: a string or a number. An empty or null ID marks
// a notification.
type ID json.RawMessage

// StringID returns an ID for a string identifier.
func StringID(s string) ID {
	raw, _ := json.Marshal(s)
	return ID(raw)
}

// NumberID returns an ID for a numeric identifier.
func NumberID(n int64) ID {
	return ID(strconv.AppendInt(nil, n, 10))
}

// IsNull returns true if the ID is absent or null.
func (id ID) IsNull() bool {
	return isNull(json.RawMessage(id))
}

// IsValid returns true if the ID is a string or a number.
func (id ID) IsValid() bool {
	raw := json.RawMessage(id)
	return isString(raw) || isNumber(raw)
}

// Key returns a canonical representation of the ID for use as a map key.
// Strings and numbers never share keys, so "1" and 1 are different calls.
// Invalid IDs return an empty key.
func (id ID) Key() string {
	raw := json.RawMessage(id)
	switch {
	case isString(raw):
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return "s:" + s
		}
	case isNumber(raw):
		return "n:" + string(bytes.TrimSpace(raw))
	}
	return ""
}

func (id ID) String() string {
	if id.IsNull() {
		return "null"
	}
	return string(bytes.TrimSpace(id))
}

func (id ID) MarshalJSON() ([]byte, error) {
	if len(id) == 0 {
		return []byte("null"), nil
	}
	return id, nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if id == nil {
		return errors.New("jsonrpc2.ID: UnmarshalJSON on nil pointer")
	}
	*id = append((*id)[0:0], data...)
	return nil
}

// Params is the raw JSON argument list of a call: an array for positional
// arguments or an object for named arguments.
type Params json.RawMessage

// PositionalParams encodes args as a positional argument list.
func PositionalParams(args ...interface{}) (Params, error) {
	if args == nil {
		args = []interface{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return Params(raw), nil
}

// NamedParams encodes v as a named argument object. v must encode to a JSON
// object, such as a struct or a map with string keys.
func NamedParams(v interface{}) (Params, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !isObject(raw) {
		return nil, fmt.Errorf("named params must encode to a JSON object, got: %s", raw)
	}
	return Params(raw), nil
}

// IsPositional returns true for an array of arguments.
func (p Params) IsPositional() bool {
	return isArray(json.RawMessage(p))
}

// IsNamed returns true for an object of arguments.
func (p Params) IsNamed() bool {
	return isObject(json.RawMessage(p))
}

func (p Params) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *Params) UnmarshalJSON(data []byte) error {
	if p == nil {
		return errors.New("jsonrpc2.Params: UnmarshalJSON on nil pointer")
	}
	*p = append((*p)[0:0], data...)
	return nil
}

// Message is the wire envelope shared by requests, notifications and
// responses. Members are kept raw so that a message can be classified by
// which members are present and what JSON type they hold.
type Message struct {
	Version string          `json:"jsonrpc"`
	ID      ID              `json:"id,omitempty"`
	Method  json.RawMessage `json:"method,omitempty"`
	Params  Params          `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func (m *Message) String() string {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("<invalid message: %s>", err)
	}
	return string(b)
}

// Kind is the classification of a Message.
type Kind int

const (
	KindMalformed Kind = iota
	KindRequest
	KindResult
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	}
	return "malformed"
}

// IsRequest returns true if the message is a request or notification: version
// 2.0 with a string method.
func IsRequest(m *Message) bool {
	return m != nil && m.Version == Version && isString(m.Method)
}

// IsResultResponse returns true if the message carries a result (any JSON
// value, including null) and a non-null ID.
func IsResultResponse(m *Message) bool {
	return m != nil && m.Version == Version && len(m.Result) > 0 && m.ID.IsValid()
}

// IsErrorResponse returns true if the message carries a well-formed error
// object (integer code, string message) and a non-null ID.
func IsErrorResponse(m *Message) bool {
	return m != nil && m.Version == Version && isErrorObject(m.Error) && m.ID.IsValid()
}

func isErrorObject(raw json.RawMessage) bool {
	if !isObject(raw) {
		return false
	}
	var obj struct {
		Code    json.RawMessage `json:"code"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	if !isString(obj.Message) || !isNumber(obj.Code) {
		return false
	}
	_, err := strconv.Atoi(string(bytes.TrimSpace(obj.Code)))
	return err == nil
}

// Classify returns the kind of the message. A message that satisfies none,
// or more than one, of IsRequest, IsResultResponse and IsErrorResponse is
// KindMalformed.
func Classify(m *Message) Kind {
	kind, matches := KindMalformed, 0
	if IsRequest(m) {
		kind, matches = KindRequest, matches+1
	}
	if IsResultResponse(m) {
		kind, matches = KindResult, matches+1
	}
	if IsErrorResponse(m) {
		kind, matches = KindError, matches+1
	}
	if matches != 1 {
		return KindMalformed
	}
	return kind
}

// Request is a call, or a notification when ID is null.
type Request struct {
	ID     ID
	Method string
	Params Params
}

// NewNotification returns a request without an ID. No response is ever sent
// for it.
func NewNotification(method string, params Params) *Request {
	return &Request{
		Method: method,
		Params: params,
	}
}

// NewRequest returns a request that expects a response with the same ID.
func NewRequest(id ID, method string, params Params) *Request {
	return &Request{
		ID:     id,
		Method: method,
		Params: params,
	}
}

// IsNotification returns true if no response is expected.
func (req *Request) IsNotification() bool {
	return req.ID.IsNull()
}

// UnmarshalParams decodes the params into v.
func (req *Request) UnmarshalParams(v interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params, v)
}

// Message returns the wire envelope of the request.
func (req *Request) Message() *Message {
	method, _ := json.Marshal(req.Method)
	return &Message{
		Version: Version,
		ID:      req.ID,
		Method:  method,
		Params:  req.Params,
	}
}

// Response is either a *ResultResponse or an *ErrorResponse, never both.
type Response interface {
	ResponseID() ID
	Message() *Message
	isResponse()
}

var _ Response = &ResultResponse{}
var _ Response = &ErrorResponse{}

// ResultResponse is the successful outcome of a call.
type ResultResponse struct {
	ID     ID
	Result json.RawMessage
}

// NewResultResponse encodes result as the outcome of call id.
func NewResultResponse(id ID, result interface{}) (*ResultResponse, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &ResultResponse{ID: id, Result: raw}, nil
}

func (resp *ResultResponse) ResponseID() ID { return resp.ID }
func (resp *ResultResponse) isResponse()    {}

// Message returns the wire envelope of the response.
func (resp *ResultResponse) Message() *Message {
	result := resp.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return &Message{
		Version: Version,
		ID:      resp.ID,
		Result:  result,
	}
}

// UnmarshalResult decodes the result into v. A null result leaves v as is.
func (resp *ResultResponse) UnmarshalResult(v interface{}) error {
	return unmarshalResult(resp.Result, v)
}

// ErrorResponse is the failed outcome of a call.
type ErrorResponse struct {
	ID    ID
	Error *ErrResponse
}

// NewErrorResponse returns the failed outcome of call id. A zero code becomes
// ErrCodeInternal and an empty message becomes "Unknown error". Data is
// omitted when nil or when it cannot be encoded.
func NewErrorResponse(id ID, code int, message string, data interface{}) *ErrorResponse {
	if code == 0 {
		code = ErrCodeInternal
	}
	if message == "" {
		message = "Unknown error"
	}
	errResp := &ErrResponse{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			errResp.Data = raw
		}
	}
	return &ErrorResponse{ID: id, Error: errResp}
}

func (resp *ErrorResponse) ResponseID() ID { return resp.ID }
func (resp *ErrorResponse) isResponse()    {}

// Message returns the wire envelope of the response.
func (resp *ErrorResponse) Message() *Message {
	raw, err := json.Marshal(resp.Error)
	if err != nil {
		raw, _ = json.Marshal(&ErrResponse{Code: ErrCodeInternal, Message: err.Error()})
	}
	return &Message{
		Version: Version,
		ID:      resp.ID,
		Error:   raw,
	}
}

// Request decodes a request message. It fails unless Classify(m) is
// KindRequest.
func (m *Message) Request() (*Request, error) {
	if Classify(m) != KindRequest {
		return nil, MalformedMessageError{m}
	}
	var method string
	if err := json.Unmarshal(m.Method, &method); err != nil {
		return nil, err
	}
	return &Request{
		ID:     m.ID,
		Method: method,
		Params: m.Params,
	}, nil
}

// Response decodes a response message. It fails unless Classify(m) is
// KindResult or KindError.
func (m *Message) Response() (Response, error) {
	switch Classify(m) {
	case KindResult:
		return &ResultResponse{ID: m.ID, Result: m.Result}, nil
	case KindError:
		var errResp ErrResponse
		if err := json.Unmarshal(m.Error, &errResp); err != nil {
			return nil, err
		}
		return &ErrorResponse{ID: m.ID, Error: &errResp}, nil
	}
	return nil, MalformedMessageError{m}
}
