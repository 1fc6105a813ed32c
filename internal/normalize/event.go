// Package normalize turns raw device payloads into canonical records.
//
// A payload is decoded into a RawEvent, classified into a Shape according to
// the rule set of the family its topic belongs to, then extracted, scaled and
// merged with cached partial state into a Record ready for storage.
package normalize

import (
	"bytes"
	"encoding/json"
	"io"

	apperrors "wisegate/pkg/errors"
)

// RawEvent is a decoded message body. Numbers are kept as json.Number so
// integers and fixed-point values survive without float rounding.
type RawEvent map[string]any

// Decode parses a payload that must be exactly one JSON object.
func Decode(payload []byte) (RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperrors.ErrDecode.WithCause(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, apperrors.ErrDecode.WithMessage("trailing data after JSON object")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.ErrDecode.WithMessage("message body is not a JSON object")
	}
	return RawEvent(obj), nil
}

func (e RawEvent) Has(key string) bool {
	_, ok := e[key]
	return ok
}

func (e RawEvent) hasAny(keys []string) bool {
	for _, k := range keys {
		if e.Has(k) {
			return true
		}
	}
	return false
}

// Object returns the nested object stored under key.
func (e RawEvent) Object(key string) (RawEvent, bool) {
	m, ok := e[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return RawEvent(m), true
}
