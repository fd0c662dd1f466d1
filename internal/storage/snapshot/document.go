package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

// FormatVersion is written to every exported document.
const FormatVersion = "1.0"

// Document is a snapshot of every collection plus the edit state carried
// through for the editing layer.
type Document struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Data      Data   `json:"data"`
}

// Data holds the collections of a Document.
type Data struct {
	Nodes              map[string]domain.Record `json:"nodes"`
	Theme              domain.Record            `json:"theme"`
	Images             map[string]string        `json:"images"`
	EditCounter        *int64                   `json:"editCounter"`
	LastBackupReminder json.RawMessage          `json:"lastBackupReminder"`
}

// EditState is owned by the editing layer. The codec carries it through
// snapshots without interpreting it.
type EditState struct {
	EditCounter *int64 `json:"editCounter"`

	// LastBackupReminder is kept verbatim, typically a timestamp or null.
	LastBackupReminder json.RawMessage `json:"lastBackupReminder"`
}

// EditState returns the edit state carried by the document.
func (d *Document) EditState() EditState {
	return EditState{
		EditCounter:        d.Data.EditCounter,
		LastBackupReminder: d.Data.LastBackupReminder,
	}
}

// NodeIDs returns the node ids in sorted order.
func (d *Document) NodeIDs() []string {
	return sortedKeys(d.Data.Nodes)
}

// ImageIDs returns the image ids in sorted order.
func (d *Document) ImageIDs() []string {
	return sortedKeys(d.Data.Images)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode renders the document as indented UTF-8 JSON. Map keys are sorted
// so equal documents encode identically.
func Encode(doc *Document) ([]byte, error) {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return append(out, '\n'), nil
}

// Parse decodes and validates a raw document. Nothing is written anywhere.
//
// Node values must be JSON objects; a node without an id takes its map key
// as id, and a node whose id differs from its key is rejected. Image values
// must be strings.
func Parse(raw []byte) (*Document, error) {
	if !json.Valid(raw) {
		return nil, domain.ErrMalformedSnapshot.WithDetails("input is not valid JSON")
	}

	invalid := func(format string, args ...any) error {
		return domain.ErrInvalidSnapshotStructure.WithDetails(fmt.Sprintf(format, args...))
	}

	top, ok := asObject(raw)
	if !ok {
		return nil, invalid("document must be an object")
	}

	var version string
	if err := json.Unmarshal(top["version"], &version); err != nil || version == "" {
		return nil, invalid("version must be a non-empty string")
	}

	// The timestamp is informational; an unreadable one is left empty.
	var timestamp string
	if ts, ok := top["timestamp"]; ok && kindOf(ts) == '"' {
		if err := json.Unmarshal(ts, &timestamp); err != nil {
			timestamp = ""
		}
	}

	data, ok := asObject(top["data"])
	if !ok {
		return nil, invalid("data must be an object")
	}

	rawNodes, ok := asObject(data["nodes"])
	if !ok {
		return nil, invalid("data.nodes must be an object")
	}
	rawImages, ok := asObject(data["images"])
	if !ok {
		return nil, invalid("data.images must be an object")
	}
	if _, ok := rawNodes[domain.RootNodeID]; !ok {
		return nil, invalid("data.nodes must contain %q", domain.RootNodeID)
	}

	doc := &Document{
		Version:   version,
		Timestamp: timestamp,
		Data: Data{
			Nodes:  make(map[string]domain.Record, len(rawNodes)),
			Images: make(map[string]string, len(rawImages)),
		},
	}

	for key, value := range rawNodes {
		if key == "" {
			return nil, invalid("data.nodes has an empty key")
		}
		if kindOf(value) != '{' {
			return nil, invalid("data.nodes[%q] must be an object", key)
		}
		rec := domain.Record(value)
		if !rec.HasID() {
			filled, err := rec.WithID(key)
			if err != nil {
				return nil, invalid("data.nodes[%q]: %v", key, err)
			}
			rec = filled
		}
		id, err := rec.ID()
		if err != nil {
			return nil, invalid("data.nodes[%q]: %v", key, err)
		}
		if id != key {
			return nil, invalid("data.nodes[%q] has id %q", key, id)
		}
		doc.Data.Nodes[key] = rec.Clone()
	}

	for key, value := range rawImages {
		if key == "" {
			return nil, invalid("data.images has an empty key")
		}
		var payload string
		if kindOf(value) != '"' || json.Unmarshal(value, &payload) != nil {
			return nil, invalid("data.images[%q] must be a string", key)
		}
		doc.Data.Images[key] = payload
	}

	if theme, ok := data["theme"]; ok && kindOf(theme) != 'n' {
		if kindOf(theme) != '{' {
			return nil, invalid("data.theme must be an object")
		}
		rec, err := domain.Record(theme).WithID(domain.ThemeID)
		if err != nil {
			return nil, invalid("data.theme: %v", err)
		}
		doc.Data.Theme = rec
	}

	if counter, ok := data["editCounter"]; ok && kindOf(counter) != 'n' {
		var n int64
		if err := json.Unmarshal(counter, &n); err != nil {
			return nil, invalid("data.editCounter must be an integer")
		}
		doc.Data.EditCounter = &n
	}

	if reminder, ok := data["lastBackupReminder"]; ok && kindOf(reminder) != 'n' {
		doc.Data.LastBackupReminder = append(json.RawMessage(nil), reminder...)
	}

	return doc, nil
}

// kindOf returns the first significant byte of a JSON value: '{', '[',
// '"', 'n' for null, 't'/'f' for booleans, or a digit or '-' for numbers.
// It returns 0 for an absent value.
func kindOf(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if kindOf(raw) != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}
