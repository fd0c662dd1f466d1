package snapshot

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

func TestEncode_StableAndParseable(t *testing.T) {
	counter := int64(3)
	doc := &Document{
		Version:   FormatVersion,
		Timestamp: "2026-01-02T03:04:05Z",
		Data: Data{
			Nodes: map[string]domain.Record{
				"root": domain.Record(`{"id":"root","title":"","elements":[],"children":{}}`),
				"b":    domain.Record(`{"id":"b","title":"B"}`),
				"a":    domain.Record(`{"id":"a","title":"A"}`),
			},
			Theme:       domain.Record(`{"id":"theme","isDarkTheme":true}`),
			Images:      map[string]string{"img": "data:image/png;base64,AAAA"},
			EditCounter: &counter,
		},
	}

	first, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := Encode(doc)
	if !bytes.Equal(first, second) {
		t.Error("Encode should be deterministic")
	}
	if !strings.Contains(string(first), `"lastBackupReminder": null`) {
		t.Errorf("absent reminder should encode as null:\n%s", first)
	}
	if strings.Index(string(first), `"a"`) > strings.Index(string(first), `"b"`) {
		t.Error("node keys should be sorted")
	}

	parsed, err := Parse(first)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Version != FormatVersion || parsed.Timestamp != doc.Timestamp {
		t.Errorf("envelope mismatch: %+v", parsed)
	}
	if len(parsed.Data.Nodes) != 3 || parsed.Data.Images["img"] != "data:image/png;base64,AAAA" {
		t.Errorf("data mismatch: %+v", parsed.Data)
	}
	if parsed.Data.EditCounter == nil || *parsed.Data.EditCounter != 3 {
		t.Errorf("editCounter = %v", parsed.Data.EditCounter)
	}
	if parsed.Data.LastBackupReminder != nil {
		t.Errorf("null reminder should parse as nil, got %s", parsed.Data.LastBackupReminder)
	}
}

func TestParse_ThemeIDIsForced(t *testing.T) {
	raw := `{"version":"1.0","data":{"nodes":{"root":{}},"images":{},"theme":{"isDarkTheme":false}}}`
	doc, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	id, err := doc.Data.Theme.ID()
	if err != nil || id != domain.ThemeID {
		t.Errorf("theme id = %q, %v", id, err)
	}
}

func TestParse_KeepsUnknownFields(t *testing.T) {
	raw := `{"version":"2.0","future":1,"data":{"nodes":{"root":{"id":"root","extra":{"k":[1,2]}}},"images":{},"lastBackupReminder":1735689600000}}`
	doc, err := Parse([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Version != "2.0" {
		t.Errorf("Version = %q", doc.Version)
	}
	var root map[string]json.RawMessage
	if err := doc.Data.Nodes["root"].Decode(&root); err != nil {
		t.Fatal(err)
	}
	if _, ok := root["extra"]; !ok {
		t.Error("unknown node fields must be preserved")
	}
	if string(doc.Data.LastBackupReminder) != "1735689600000" {
		t.Errorf("reminder = %s", doc.Data.LastBackupReminder)
	}
}

func TestParse_Timestamp(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want string
	}{
		{"string", `"2026-01-01T00:00:00Z"`, "2026-01-01T00:00:00Z"},
		{"number", `1735689600000`, ""},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"version":"1.0","timestamp":` + tt.ts + `,"data":{"nodes":{"root":{}},"images":{}}}`
			doc, err := Parse([]byte(raw))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if doc.Timestamp != tt.want {
				t.Errorf("Timestamp = %q, want %q", doc.Timestamp, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]byte{
		``:       0,
		`  {}`:   '{',
		`[1]`:    '[',
		`"s"`:    '"',
		`null`:   'n',
		"\n-1.5": '-',
		`true`:   't',
	}
	for in, want := range tests {
		if got := kindOf(json.RawMessage(in)); got != want {
			t.Errorf("kindOf(%q) = %q, want %q", in, got, want)
		}
	}
}
