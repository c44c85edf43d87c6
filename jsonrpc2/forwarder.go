package jsonrpc2

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"unicode"
)

var typeOfFuture = reflect.TypeOf((*Future)(nil))

// Caller submits requests and returns futures for their responses. Remote
// implements it.
type Caller interface {
	Go(ctx context.Context, req *Request) (*Future, error)
}

var _ Caller = &Remote{}

// ForwardError is returned when a Forwarder is asked for something that is
// not a callable member of its capability set.
type ForwardError struct {
	Member string
	Reason string
}

func (err ForwardError) Error() string {
	if err.Member == "" {
		return fmt.Sprintf("forward: %s", err.Reason)
	}
	return fmt.Sprintf("forward %q: %s", err.Member, err.Reason)
}

// Op is a non-call operation on a forwarded capability set.
type Op string

const (
	OpSet       Op = "set"
	OpDelete    Op = "delete"
	OpDefine    Op = "define"
	OpKeys      Op = "keys"
	OpHas       Op = "has"
	OpExtend    Op = "extend"
	OpConstruct Op = "construct"
)

// UnsupportedOpError is returned for every operation on a Forwarder other
// than calling a method.
type UnsupportedOpError struct {
	Op     Op
	Member string
}

func (err UnsupportedOpError) Error() string {
	if err.Member == "" {
		return fmt.Sprintf("forward: %s is not supported", err.Op)
	}
	return fmt.Sprintf("forward: %s %q is not supported", err.Op, err.Member)
}

// NewForwarder returns a Forwarder that builds requests with ids and submits
// them to caller.
func NewForwarder(caller Caller, ids Requester) *Forwarder {
	return &Forwarder{caller: caller, ids: ids}
}

// Forwarder converts method calls into outbound requests. It only supports
// calling methods: Method returns a Callable, and Bind fills a capability
// set struct with stubs. Any other operation fails with UnsupportedOpError.
//
// Before Bind, any method name can be called. After Bind, only the members
// of the bound capability set can.
type Forwarder struct {
	caller Caller
	ids    Requester

	mu      sync.RWMutex
	members map[string]string
}

// Callable is a method of the peer bound to its name.
type Callable struct {
	name string
	f    *Forwarder
}

// Name returns the remote method name.
func (c Callable) Name() string {
	return c.name
}

// Call sends args as positional params.
func (c Callable) Call(ctx context.Context, args ...interface{}) (*Future, error) {
	params, err := PositionalParams(args...)
	if err != nil {
		return nil, err
	}
	return c.f.invoke(ctx, c.name, params)
}

// Named sends v, which must encode to a JSON object, as named params.
func (c Callable) Named(ctx context.Context, v interface{}) (*Future, error) {
	params, err := NamedParams(v)
	if err != nil {
		return nil, err
	}
	return c.f.invoke(ctx, c.name, params)
}

// Method returns a Callable for the named member. It fails for an empty name
// and, once a capability set is bound, for names that are not in it. Bound
// members can be named by their field name or by their method name.
func (f *Forwarder) Method(name string) (Callable, error) {
	if name == "" {
		return Callable{}, ForwardError{Reason: "empty method name"}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.members == nil {
		return Callable{f: f, name: name}, nil
	}
	if method, ok := f.members[name]; ok {
		return Callable{f: f, name: method}, nil
	}
	for _, method := range f.members {
		if method == name {
			return Callable{f: f, name: method}, nil
		}
	}
	return Callable{}, ForwardError{Member: name, Reason: "not a method of the capability set"}
}

func (f *Forwarder) invoke(ctx context.Context, method string, params Params) (*Future, error) {
	req, err := f.ids.Request(method)
	if err != nil {
		return nil, err
	}
	req.Params = params
	return f.caller.Go(ctx, req)
}

// Bind fills every exported func field of the struct pointed to by
// capabilities with a stub that calls the peer. Fields must have the shape
//
//	func([context.Context,] args...) (*Future, error)
//
// The remote method name is the `rpc:"..."` tag, or the field name with its
// first letter lowercased. A stub called with a single argument that encodes
// to a JSON object sends it as named params, otherwise the arguments are
// positional. Fields tagged `rpc:"-"` are skipped.
func (f *Forwarder) Bind(capabilities interface{}) error {
	val := reflect.ValueOf(capabilities)
	if val.Kind() != reflect.Ptr {
		return ForwardError{Reason: fmt.Sprintf("target must be a pointer to a struct, got %T", capabilities)}
	}
	if val.IsNil() {
		return ForwardError{Reason: fmt.Sprintf("target is a nil %T", capabilities)}
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return ForwardError{Reason: fmt.Sprintf("target must be a pointer to a struct, got %T", capabilities)}
	}

	typ := val.Type()
	members := map[string]string{}
	stubs := map[int]reflect.Value{}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			// Skip unexported fields
			continue
		}
		tag := field.Tag.Get("rpc")
		if tag == "-" {
			continue
		}
		if field.Type.Kind() != reflect.Func {
			return ForwardError{Member: field.Name, Reason: fmt.Sprintf("not a func: %s", field.Type)}
		}
		hasCtx, err := checkStubType(field.Type)
		if err != nil {
			return ForwardError{Member: field.Name, Reason: err.Error()}
		}
		method := tag
		if method == "" {
			method = lowerFirst(field.Name)
		}
		members[field.Name] = method
		stubs[i] = f.stub(field.Type, method, hasCtx)
	}

	for i, stub := range stubs {
		val.Field(i).Set(stub)
	}
	f.mu.Lock()
	if f.members == nil {
		f.members = map[string]string{}
	}
	for name, method := range members {
		f.members[name] = method
	}
	f.mu.Unlock()
	return nil
}

func checkStubType(fnType reflect.Type) (hasCtx bool, err error) {
	if fnType.NumOut() != 2 || fnType.Out(0) != typeOfFuture || fnType.Out(1) != typeOfError {
		return false, fmt.Errorf("must return (*Future, error), got %s", fnType)
	}
	return fnType.NumIn() > 0 && fnType.In(0) == typeOfContext, nil
}

func (f *Forwarder) stub(fnType reflect.Type, method string, hasCtx bool) reflect.Value {
	return reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		ctx := context.Background()
		if hasCtx {
			if c, ok := in[0].Interface().(context.Context); ok && c != nil {
				ctx = c
			}
			in = in[1:]
		}

		args := make([]interface{}, 0, len(in))
		for i, v := range in {
			if fnType.IsVariadic() && i == len(in)-1 {
				for j := 0; j < v.Len(); j++ {
					args = append(args, v.Index(j).Interface())
				}
				continue
			}
			args = append(args, v.Interface())
		}

		params, err := stubParams(args)

		var future *Future
		if err == nil {
			future, err = f.invoke(ctx, method, params)
		}
		errVal := reflect.Zero(typeOfError)
		if err != nil {
			errVal = reflect.ValueOf(&err).Elem()
		}
		return []reflect.Value{reflect.ValueOf(future), errVal}
	})
}

// stubParams sends a single argument that encodes to a JSON object as named
// params. Anything else, including structs with their own non-object
// encoding such as time.Time, is positional.
func stubParams(args []interface{}) (Params, error) {
	if len(args) == 1 {
		raw, err := json.Marshal(args[0])
		if err != nil {
			return nil, err
		}
		if isObject(raw) {
			return Params(raw), nil
		}
	}
	return PositionalParams(args...)
}

func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// Set is not supported.
func (f *Forwarder) Set(name string, value interface{}) error {
	return UnsupportedOpError{Op: OpSet, Member: name}
}

// Delete is not supported.
func (f *Forwarder) Delete(name string) error {
	return UnsupportedOpError{Op: OpDelete, Member: name}
}

// Define is not supported.
func (f *Forwarder) Define(name string, fn interface{}) error {
	return UnsupportedOpError{Op: OpDefine, Member: name}
}

// Keys is not supported; a capability set cannot be enumerated through its
// forwarder.
func (f *Forwarder) Keys() ([]string, error) {
	return nil, UnsupportedOpError{Op: OpKeys}
}

// Has is not supported.
func (f *Forwarder) Has(name string) (bool, error) {
	return false, UnsupportedOpError{Op: OpHas, Member: name}
}

// Extend is not supported; a capability set can't inherit members from
// another value.
func (f *Forwarder) Extend(base interface{}) error {
	return UnsupportedOpError{Op: OpExtend}
}

// Construct is not supported.
func (f *Forwarder) Construct(args ...interface{}) error {
	return UnsupportedOpError{Op: OpConstruct}
}
