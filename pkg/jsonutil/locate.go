// Package jsonutil locates JSON objects inside free-form model output that may
// be wrapped in markdown code fences or surrounded by prose.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrNoObject = errors.New("no well-formed JSON object found")

const (
	// MaxScanBytes is how much of a payload is searched. Model replies are a
	// few hundred bytes; anything past this is ignored.
	MaxScanBytes = 64 << 10

	maxCandidates = 256
)

// LocateObject returns the first well-formed JSON object in text. Each '{' is
// tried as a candidate start and decoded as a single value, so braces inside
// strings, markdown fences and trailing prose do not confuse the scan. Only the
// first MaxScanBytes bytes and the first 256 candidates are examined.
func LocateObject(text string) (json.RawMessage, error) {
	if len(text) > MaxScanBytes {
		text = text[:MaxScanBytes]
	}
	if obj, ok := firstObject([]byte(text)); ok {
		return obj, nil
	}
	return nil, ErrNoObject
}

func firstObject(data []byte) (json.RawMessage, bool) {
	offset := 0
	for tried := 0; tried < maxCandidates && offset < len(data); tried++ {
		idx := bytes.IndexByte(data[offset:], '{')
		if idx == -1 {
			return nil, false
		}
		start := offset + idx

		var raw json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(data[start:]))
		if err := dec.Decode(&raw); err == nil && len(raw) > 0 && raw[0] == '{' {
			return raw, true
		}

		offset = start + 1
	}
	return nil, false
}
