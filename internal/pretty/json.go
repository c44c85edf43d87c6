package pretty

import (
	"bytes"
	"encoding/json"
)

// JSON indents a raw JSON value for display. Values that are not valid JSON
// are returned as they are.
func JSON(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
