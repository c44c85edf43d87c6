package jsonrpc2

import (
	"encoding/json"
	"fmt"
	"reflect"
)

func invalidParams(format string, args ...interface{}) *ErrResponse {
	return &ErrResponse{
		Code:    ErrCodeInvalidParams,
		Message: fmt.Sprintf("invalid params: "+format, args...),
	}
}

// args decodes params into the method's argument values. Absent params are
// an empty positional list.
func (m *Method) args(params Params) ([]reflect.Value, error) {
	raw := json.RawMessage(params)
	if isNull(raw) {
		raw = json.RawMessage("[]")
	}
	switch {
	case isArray(raw):
		return positionalArgs(raw, m.ArgTypes, m.Variadic)
	case isObject(raw):
		return namedArgs(raw, m.ArgTypes, m.Variadic)
	}
	return nil, invalidParams("must be an array or an object, got: %s", raw)
}

// positionalArgs asserts each positional argument into the reflected value of
// its type. Missing trailing arguments are zero values; a variadic method
// takes any number of extra arguments.
func positionalArgs(raw json.RawMessage, types []reflect.Type, variadic bool) ([]reflect.Value, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, invalidParams("%s", err)
	}

	fixed := types
	var rest reflect.Type
	if variadic {
		fixed = types[:len(types)-1]
		rest = types[len(types)-1].Elem()
	} else if len(items) > len(types) {
		return nil, invalidParams("too many arguments: expected %d, got %d", len(types), len(items))
	}

	values := make([]reflect.Value, 0, len(items))
	for i, argType := range fixed {
		if i >= len(items) {
			values = append(values, reflect.Zero(argType))
			continue
		}
		value, err := decodeArg(items[i], argType)
		if err != nil {
			return nil, invalidParams("argument %d: %s", i, err)
		}
		values = append(values, value)
	}
	if rest == nil || len(items) <= len(fixed) {
		return values, nil
	}
	for i := len(fixed); i < len(items); i++ {
		value, err := decodeArg(items[i], rest)
		if err != nil {
			return nil, invalidParams("argument %d: %s", i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

// namedArgs passes a named argument object as the first argument of the
// method. Any further arguments are zero values, as with a short positional
// list.
func namedArgs(raw json.RawMessage, types []reflect.Type, variadic bool) ([]reflect.Value, error) {
	if len(types) == 0 {
		return nil, invalidParams("named params need a method that takes an argument")
	}
	fixed := types
	if variadic {
		fixed = types[:len(types)-1]
	}
	if len(fixed) == 0 {
		value, err := decodeArg(raw, types[0].Elem())
		if err != nil {
			return nil, invalidParams("%s", err)
		}
		return []reflect.Value{value}, nil
	}

	values := make([]reflect.Value, 0, len(fixed))
	value, err := decodeArg(raw, fixed[0])
	if err != nil {
		return nil, invalidParams("argument 0: %s", err)
	}
	values = append(values, value)
	for _, argType := range fixed[1:] {
		values = append(values, reflect.Zero(argType))
	}
	return values, nil
}

func decodeArg(raw json.RawMessage, argType reflect.Type) (reflect.Value, error) {
	value := reflect.New(argType)
	if err := json.Unmarshal(raw, value.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return value.Elem(), nil
}
