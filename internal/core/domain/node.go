package domain

import "encoding/json"

// Node is the typed view of a document-tree node record.
//
// Elements and Children stay opaque: the editing layer owns their shape.
type Node struct {
	ID       string                     `json:"id"`
	Title    string                     `json:"title"`
	Elements []json.RawMessage          `json:"elements"`
	Children map[string]json.RawMessage `json:"children"`
}

// NewRootNode returns the default root node: no title, no elements, no children.
func NewRootNode() *Node {
	return &Node{
		ID:       RootNodeID,
		Title:    "",
		Elements: []json.RawMessage{},
		Children: map[string]json.RawMessage{},
	}
}

// Theme is the single theme settings record.
type Theme struct {
	ID          string `json:"id"`
	IsDarkTheme bool   `json:"isDarkTheme"`
}

// DefaultTheme returns the theme used when none has been saved.
func DefaultTheme() *Theme {
	return &Theme{ID: ThemeID, IsDarkTheme: true}
}

// Image is an image payload record. Data is an encoded blob
// (typically a base64 data URL) that is never interpreted.
type Image struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// DefaultRecord returns the record synthesized for (c, id) when it is
// absent. Only the root node and the theme have defaults.
func DefaultRecord(c Collection, id string) (Record, bool) {
	var v any
	switch {
	case c == CollectionNodes && id == RootNodeID:
		v = NewRootNode()
	case c == CollectionTheme && id == ThemeID:
		v = DefaultTheme()
	default:
		return nil, false
	}

	rec, err := NewRecord(v)
	if err != nil {
		return nil, false
	}
	return rec, true
}
