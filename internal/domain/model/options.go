package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeStrict parses a JSON document rejecting unknown keys. Empty, null,
// and absent documents decode to the zero value.
func decodeStrict(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}
