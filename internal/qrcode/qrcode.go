// Package qrcode turns scanned cow tag payloads into cow identifiers.
package qrcode

import (
	"bytes"
	"encoding/json"
)

// Payload is the JSON envelope printed on generated cow tags. Only ID matters
// for lookups; the other fields are informational.
type Payload struct {
	ID        string `json:"id"`
	TagNumber string `json:"tagNumber,omitempty"`
	Name      string `json:"name,omitempty"`
	Breed     string `json:"breed,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Parse decodes raw as a tag envelope. ok is false when raw is not a JSON
// object or carries no usable id.
func Parse(raw string) (Payload, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Payload{}, false
	}

	id, ok := idValue(fields["id"])
	if !ok {
		return Payload{}, false
	}

	p := Payload{ID: id}
	p.TagNumber = stringValue(fields["tagNumber"])
	p.Name = stringValue(fields["name"])
	p.Breed = stringValue(fields["breed"])
	p.Timestamp = stringValue(fields["timestamp"])
	p.URL = stringValue(fields["url"])
	return p, true
}

// ExtractID returns the id carried by a JSON tag envelope, or raw unchanged for
// bare identifiers and anything that is not such an envelope.
func ExtractID(raw string) string {
	if p, ok := Parse(raw); ok {
		return p.ID
	}
	return raw
}

// idValue accepts string and numeric ids. Empty strings, false, zero and null
// do not count as an id.
func idValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		// Overflowing literals parse as ±Inf with an error and still count.
		v, err := n.Float64()
		return n.String(), err != nil || v != 0
	}

	return "", false
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
