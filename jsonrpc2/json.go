package jsonrpc2

import "encoding/json"

// Helpers for JSON parsing

// firstByte returns the first non-space byte of a raw JSON value, or 0.
func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		if isSpace(b) {
			continue
		}
		return b
	}
	return 0
}

// isArray returns true if the message is a JSON array (starts
// with '[', spaces skipped).
func isArray(raw json.RawMessage) bool {
	return firstByte(raw) == '['
}

// isObject returns true if the message is a JSON object.
func isObject(raw json.RawMessage) bool {
	return firstByte(raw) == '{'
}

// isString returns true if the message is a JSON string.
func isString(raw json.RawMessage) bool {
	return firstByte(raw) == '"'
}

// isNumber returns true if the message is a JSON number.
func isNumber(raw json.RawMessage) bool {
	b := firstByte(raw)
	return b == '-' || (b >= '0' && b <= '9')
}

// isNull returns true if the message is empty or the JSON null literal.
func isNull(raw json.RawMessage) bool {
	b := firstByte(raw)
	return b == 0 || b == 'n'
}

// isSpace returns true if the byte is considered a space in JSON syntax.
func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
