// Package wirehex holds the small helpers shared by every wire-encoded
// type (transactions, block header/body, gossip payloads) for spec.md §6's
// "byte-string fields are lowercase hex" rule.
package wirehex

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Marshal is encoding/json.Marshal, named here so call sites read as part
// of the wire-encoding vocabulary rather than a raw stdlib call.
func Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal is encoding/json.Unmarshal, named for the same reason as
// Marshal.
func Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// DecodeFixed hex-decodes s into dst, failing if the decoded length does
// not exactly match len(dst).
func DecodeFixed(s string, dst []byte) error {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("expected %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
