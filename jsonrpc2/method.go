package jsonrpc2

import (
	"context"
	"fmt"
	"reflect"
)

var typeOfError = reflect.TypeOf((*error)(nil)).Elem()
var typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()

// methodArgTypes returns the arg types of a func (not including an optional
// leading context) and whether all the types are valid (exported or builtin).
func methodArgTypes(fnType reflect.Type) (argTypes []reflect.Type, hasCtx bool, ok bool) {
	argNum := fnType.NumIn()
	argTypes = make([]reflect.Type, 0, argNum)
	for argPos := 0; argPos < argNum; argPos++ {
		argType := fnType.In(argPos)
		if argType == typeOfContext {
			if argPos != 0 {
				return nil, hasCtx, false
			}
			hasCtx = true
			continue
		}
		if !isExportedOrBuiltin(argType) {
			return nil, hasCtx, false
		}
		argTypes = append(argTypes, argType)
	}
	return argTypes, hasCtx, true
}

// methodErrPos returns the return value index position of an error type for
// supported return layouts: (), (interface{}), (error), (interface{}, error)
func methodErrPos(fnType reflect.Type) (int, bool) {
	switch fnType.NumOut() {
	case 0:
		return -1, true
	case 1:
		if fnType.Out(0) == typeOfError {
			// Single error return value
			return 0, true
		}
		// Single non-error return value
		return -1, true
	case 2:
		if fnType.Out(1) == typeOfError {
			// Two return values, one error type
			return 1, true
		}
		// Two return values, no error type, unsupported.
		return -1, false
	}
	return -1, false
}

// NewMethod returns the Method definition for a func value, such as a plain
// func or a bound method value.
func NewMethod(fn interface{}) (Method, error) {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func || val.IsNil() {
		return Method{}, fmt.Errorf("not a func: %T", fn)
	}
	return newMethod(val)
}

func newMethod(fn reflect.Value) (Method, error) {
	fnType := fn.Type()
	argTypes, hasCtx, ok := methodArgTypes(fnType)
	if !ok {
		return Method{}, fmt.Errorf("unsupported argument types: %s", fnType)
	}
	errPos, ok := methodErrPos(fnType)
	if !ok {
		return Method{}, fmt.Errorf("unsupported return values: %s", fnType)
	}
	return Method{
		Func:     fn,
		ArgTypes: argTypes,
		Variadic: fnType.IsVariadic(),
		ErrPos:   errPos,
		HasCtx:   hasCtx,
	}, nil
}

// Methods returns a mapping of valid method names to Method definitions for a
// instance's receiver.
func Methods(receiver interface{}) (map[string]Method, error) {
	kind := reflect.TypeOf(receiver)
	val := reflect.ValueOf(receiver)
	if name := reflect.Indirect(val).Type().Name(); !isExported(name) {
		return nil, fmt.Errorf("receiver must be exported: %s", name)
	}

	methods := map[string]Method{}
	for i := 0; i < kind.NumMethod(); i++ {
		method := kind.Method(i)
		if method.PkgPath != "" {
			// Skip unexported methods
			continue
		}

		bound := val.Method(i)
		if _, _, ok := methodArgTypes(bound.Type()); !ok {
			// Skip methods with unexported arg types
			continue
		}

		m, err := newMethod(bound)
		if err != nil {
			return nil, fmt.Errorf("method %s: %s", method.Name, err)
		}
		methods[method.Name] = m
	}

	return methods, nil
}

// MethodByName returns the Method definition of a single method of receiver.
func MethodByName(receiver interface{}, name string) (Method, error) {
	val := reflect.ValueOf(receiver)
	method := val.MethodByName(name)
	if !method.IsValid() {
		return Method{}, fmt.Errorf("method not found: %s", name)
	}
	m, err := newMethod(method)
	if err != nil {
		return Method{}, fmt.Errorf("method %s: %s", name, err)
	}
	return m, nil
}

// Method is the definition of a callable method.
type Method struct {
	Func     reflect.Value
	ArgTypes []reflect.Type
	Variadic bool
	ErrPos   int
	HasCtx   bool
}

// Call executes the method with JSON params. An array is spread over the
// arguments, an object is passed as the first argument. Missing arguments
// are zero values. Invalid params fail with an ErrCodeInvalidParams
// *ErrResponse. A panic in the method is recovered and returned as an
// ErrCodeInternal *ErrResponse.
func (m *Method) Call(ctx context.Context, params Params) (result interface{}, err error) {
	args, err := m.args(params)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ErrResponse{
				Code:    ErrCodeInternal,
				Message: fmt.Sprintf("method panicked: %v", r),
			}
		}
	}()
	return m.CallArgs(ctx, args)
}

// CallArgs executes the method with already decoded arguments.
func (m *Method) CallArgs(ctx context.Context, args []reflect.Value) (interface{}, error) {
	if !m.Variadic && len(args) != len(m.ArgTypes) {
		return nil, fmt.Errorf("invalid number of args: expected %d, got %d", len(m.ArgTypes), len(args))
	}

	arguments := make([]reflect.Value, 0, len(args)+1)
	if m.HasCtx {
		if ctx == nil {
			ctx = context.Background()
		}
		arguments = append(arguments, reflect.ValueOf(ctx))
	}
	arguments = append(arguments, args...)

	reply := m.Func.Call(arguments)

	// Are there any return values?
	if len(reply) == 0 {
		return nil, nil
	}
	// Is there an error return value?
	if m.ErrPos >= 0 && !reply[m.ErrPos].IsNil() {
		return nil, reply[m.ErrPos].Interface().(error)
	}
	if m.ErrPos == 0 {
		// Single error return value, which is nil.
		return nil, nil
	}

	// All is good, assume the first result is what we want to return
	// This supports (res), (res, err)
	return reply[0].Interface(), nil
}
