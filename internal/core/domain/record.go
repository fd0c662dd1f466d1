package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reserved record identifiers.
const (
	// RootNodeID is the id of the document root node. It must always exist.
	RootNodeID = "root"

	// ThemeID is the id of the single theme record.
	ThemeID = "theme"
)

// Record is a stored document: a JSON object carrying at least a string "id".
//
// The storage core treats everything but the id as opaque. A Record marshals
// to JSON verbatim, so it can be embedded in other documents without
// re-encoding.
type Record []byte

// NewRecord marshals v into a Record and checks that it carries an id.
func NewRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ErrInvalidRecord.WithCause(err)
	}
	return ParseRecord(data)
}

// ParseRecord validates raw JSON as a record and returns a private copy.
func ParseRecord(data []byte) (Record, error) {
	r := Record(bytes.Clone(data))
	if _, err := r.ID(); err != nil {
		return nil, err
	}
	return r, nil
}

// ID returns the record's id.
func (r Record) ID() (string, error) {
	trimmed := bytes.TrimSpace(r)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", ErrInvalidRecord.WithDetails("record must be a JSON object")
	}

	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return "", ErrInvalidRecord.WithCause(err)
	}
	if len(probe.ID) == 0 {
		return "", ErrInvalidRecord.WithDetails("missing id")
	}

	var id string
	if err := json.Unmarshal(probe.ID, &id); err != nil {
		return "", ErrInvalidRecord.WithDetails("id must be a string")
	}
	if id == "" {
		return "", ErrInvalidRecord.WithDetails("id must not be empty")
	}
	return id, nil
}

// HasID reports whether the record object carries an "id" member at all.
func (r Record) HasID() bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(r, &probe); err != nil {
		return false
	}
	_, ok := probe["id"]
	return ok
}

// WithID returns a copy of the record with its id member set to id.
func (r Record) WithID(id string) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r, &fields); err != nil {
		return nil, ErrInvalidRecord.WithCause(err)
	}
	if fields == nil {
		return nil, ErrInvalidRecord.WithDetails("record must be a JSON object")
	}
	encodedID, err := json.Marshal(id)
	if err != nil {
		return nil, ErrInvalidRecord.WithCause(err)
	}
	fields["id"] = encodedID

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, ErrInvalidRecord.WithCause(err)
	}
	return Record(out), nil
}

// Decode unmarshals the record into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(bytes.Clone(r))
}

// Equal reports whether two records hold the same JSON value.
// Member order and insignificant whitespace are ignored.
func (r Record) Equal(other Record) bool {
	if bytes.Equal(r, other) {
		return true
	}
	var a, b any
	if json.Unmarshal(r, &a) != nil || json.Unmarshal(other, &b) != nil {
		return false
	}
	ca, _ := json.Marshal(a)
	cb, _ := json.Marshal(b)
	return bytes.Equal(ca, cb)
}

// MarshalJSON implements json.Marshaler by emitting the raw bytes.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler by keeping a copy of the raw bytes.
func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	*r = Record(bytes.Clone(data))
	return nil
}
