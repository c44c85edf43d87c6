package main

import (
	"encoding/json"
	"errors"

	"github.com/vipnode/birpc/jsonrpc2"
)

// parseArgs turns command line arguments into JSON values. An argument that
// is valid JSON is sent as is, anything else is sent as a string.
func parseArgs(args []string) []interface{} {
	values := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if json.Valid([]byte(arg)) {
			values = append(values, json.RawMessage(arg))
			continue
		}
		values = append(values, arg)
	}
	return values
}

// namedArg returns the single JSON object argument used with --named.
func namedArg(args []string) (json.RawMessage, error) {
	if len(args) != 1 {
		return nil, errors.New("--named takes exactly one JSON object argument")
	}
	params, err := jsonrpc2.NamedParams(json.RawMessage(args[0]))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(params), nil
}
