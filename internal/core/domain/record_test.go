package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCollection(t *testing.T) {
	tests := []struct {
		input   string
		want    Collection
		wantErr bool
	}{
		{"nodes", CollectionNodes, false},
		{"Theme", CollectionTheme, false},
		{" images ", CollectionImages, false},
		{"canvasData", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCollection(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCollection) {
					t.Fatalf("ParseCollection(%q) err = %v, want ErrUnknownCollection", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCollection(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCollection(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRecord_ID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"object with id", `{"id":"n1","title":"x"}`, "n1", false},
		{"leading whitespace", "  \n{\"id\":\"root\"}", "root", false},
		{"missing id", `{"title":"x"}`, "", true},
		{"numeric id", `{"id":42}`, "", true},
		{"empty id", `{"id":""}`, "", true},
		{"array", `[{"id":"n1"}]`, "", true},
		{"string", `"n1"`, "", true},
		{"empty", ``, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Record(tt.raw).ID()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecord) {
					t.Fatalf("ID() err = %v, want ErrInvalidRecord", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ID(): %v", err)
			}
			if got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecord_WithID(t *testing.T) {
	rec := Record(`{"title":"orphan","elements":[]}`)
	if rec.HasID() {
		t.Fatal("HasID() = true for record without id")
	}

	withID, err := rec.WithID("n7")
	if err != nil {
		t.Fatalf("WithID: %v", err)
	}
	id, err := withID.ID()
	if err != nil || id != "n7" {
		t.Fatalf("ID() = %q, %v; want n7", id, err)
	}

	var node Node
	if err := withID.Decode(&node); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if node.Title != "orphan" {
		t.Errorf("Title = %q, want orphan", node.Title)
	}
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	type envelope struct {
		Node Record `json:"node"`
	}

	raw := `{"node":{"id":"n1","elements":[{"x":1}]}}`
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(env.Node) != `{"id":"n1","elements":[{"x":1}]}` {
		t.Errorf("Node = %s", env.Node)
	}

	out, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("Marshal = %s, want %s", out, raw)
	}

	var empty envelope
	out, _ = json.Marshal(empty)
	if string(out) != `{"node":null}` {
		t.Errorf("empty Marshal = %s", out)
	}
}

func TestRecord_Equal(t *testing.T) {
	a := Record(`{"id":"n1","title":"a"}`)
	b := Record(`{ "title": "a", "id": "n1" }`)
	c := Record(`{"id":"n1","title":"b"}`)

	if !a.Equal(b) {
		t.Error("records with reordered members should be equal")
	}
	if a.Equal(c) {
		t.Error("records with different titles should differ")
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	a := Record(`{"id":"n1"}`)
	b := a.Clone()
	b[2] = 'X'
	if string(a) != `{"id":"n1"}` {
		t.Errorf("Clone aliases the original: %s", a)
	}
}

func TestDefaultRecord(t *testing.T) {
	root, ok := DefaultRecord(CollectionNodes, RootNodeID)
	if !ok {
		t.Fatal("no default for root node")
	}
	var node Node
	if err := root.Decode(&node); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if node.ID != RootNodeID || len(node.Elements) != 0 || len(node.Children) != 0 {
		t.Errorf("default root = %+v", node)
	}
	if string(root) != `{"id":"root","title":"","elements":[],"children":{}}` {
		t.Errorf("default root encoding = %s", root)
	}

	theme, ok := DefaultRecord(CollectionTheme, ThemeID)
	if !ok {
		t.Fatal("no default for theme")
	}
	var th Theme
	if err := theme.Decode(&th); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !th.IsDarkTheme {
		t.Error("default theme should be dark")
	}

	if _, ok := DefaultRecord(CollectionNodes, "n1"); ok {
		t.Error("non-root node should have no default")
	}
	if _, ok := DefaultRecord(CollectionImages, "img1"); ok {
		t.Error("images should have no default")
	}
}
