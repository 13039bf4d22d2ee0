// Package protocol defines the line-delimited JSON wire format exchanged
// between the host and the guest interpreter: one Input per line on the
// guest's stdin, one EvaluationResult document per invocation written to
// the guest's virtual output file.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Input is the single JSON object the guest reads from stdin per call.
type Input struct {
	Script string `json:"script"`
}

// EncodeLine marshals in as a single newline-terminated JSON line, the
// shape the guest's stdin pipe expects.
func (in Input) EncodeLine() ([]byte, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode input: %w", err)
	}
	return append(data, '\n'), nil
}

// EvaluationResult is the discriminated union the guest writes to its
// virtual output file: Ok(value-or-absent) or Err(message).
//
// The type keeps absent distinct from a JSON null value: NewOkAbsent has
// Value == nil and Present == false, while NewOkValue of "null" has
// Present == true. On the wire both encode as {"Ok": null}, and
// UnmarshalJSON decodes that as absent, so a script whose last
// expression is undefined and one that evaluates to null both arrive
// with Present == false.
type EvaluationResult struct {
	ok      bool
	message string
	present bool
	value   json.RawMessage
}

// OK reports whether this result is the Ok variant.
func (r EvaluationResult) OK() bool { return r.ok }

// Message returns the error message; only meaningful when !OK().
func (r EvaluationResult) Message() string { return r.message }

// Present reports whether Ok carries a value (false for an absent/
// undefined result).
func (r EvaluationResult) Present() bool { return r.ok && r.present }

// Value returns the raw JSON value carried by Ok; empty when absent or
// when this is an Err result.
func (r EvaluationResult) Value() json.RawMessage { return r.value }

// NewOkAbsent constructs Ok(absent).
func NewOkAbsent() EvaluationResult {
	return EvaluationResult{ok: true, present: false}
}

// NewOkValue constructs Ok(value) from an already-encoded JSON value.
func NewOkValue(value json.RawMessage) EvaluationResult {
	return EvaluationResult{ok: true, present: true, value: value}
}

// NewErr constructs the Err(message) variant.
func NewErr(message string) EvaluationResult {
	return EvaluationResult{ok: false, message: message}
}

// wireForm mirrors the two JSON shapes described in spec §6:
//
//	{"Ok": null}          → Ok(absent)
//	{"Ok": <json value>}  → Ok(value)
//	{"Err": "<message>"}  → Err(message)
type wireForm struct {
	Ok  *json.RawMessage `json:"Ok,omitempty"`
	Err *string          `json:"Err,omitempty"`
}

// MarshalJSON implements the encoding described in spec §6.
func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	if !r.ok {
		msg := r.message
		return json.Marshal(wireForm{Err: &msg})
	}
	if !r.present {
		null := json.RawMessage("null")
		return json.Marshal(wireForm{Ok: &null})
	}
	v := r.value
	if len(v) == 0 {
		v = json.RawMessage("null")
	}
	return json.Marshal(wireForm{Ok: &v})
}

// UnmarshalJSON implements the decoding described in spec §6. On the
// wire, Ok(absent) and Ok(an explicit JSON null) are indistinguishable —
// both encode as {"Ok": null} — so decoding a null payload always
// produces the absent variant, matching the guest's own encoding rule.
//
// This decodes into a map of raw fields rather than wireForm directly:
// encoding/json resets a *json.RawMessage field to nil when the wire
// value is the literal null, which makes "Ok key present with value
// null" indistinguishable from "Ok key absent" if decoded straight into
// a struct with a pointer field. Decoding key presence via a map first
// avoids that collision.
func (r *EvaluationResult) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("protocol: decode evaluation result: %w", err)
	}
	if raw, ok := fields["Err"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("protocol: decode Err message: %w", err)
		}
		*r = NewErr(msg)
		return nil
	}
	raw, ok := fields["Ok"]
	if !ok {
		return fmt.Errorf("protocol: evaluation result has neither Ok nor Err")
	}
	if isJSONNull(raw) {
		*r = NewOkAbsent()
		return nil
	}
	*r = NewOkValue(raw)
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := trimSpace(raw)
	return string(trimmed) == "null"
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isWS(b[start]) {
		start++
	}
	for end > start && isWS(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isWS(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
