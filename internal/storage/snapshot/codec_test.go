package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/storage"
)

// newStore returns a facade running on the memory fallback.
func newStore(t *testing.T) *storage.Engine {
	t.Helper()
	e := storage.New(storage.Config{})
	e.Open(context.Background())
	t.Cleanup(func() { e.Close() })
	return e
}

func mustPut(t *testing.T, s *storage.Engine, c domain.Collection, raw string) {
	t.Helper()
	if err := s.Put(context.Background(), c, domain.Record(raw)); err != nil {
		t.Fatalf("Put(%s, %s): %v", c, raw, err)
	}
}

// progressLog records every progress report.
type progressLog struct {
	messages []string
	percents []int
}

func (p *progressLog) fn() Progress {
	return func(message string, percent int) {
		p.messages = append(p.messages, message)
		p.percents = append(p.percents, percent)
	}
}

func (p *progressLog) assertMonotonicTo100(t *testing.T) {
	t.Helper()
	if len(p.percents) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(p.percents); i++ {
		if p.percents[i] < p.percents[i-1] {
			t.Fatalf("progress decreased at %d: %v", i, p.percents)
		}
	}
	for _, pc := range p.percents {
		if pc < 0 || pc > 100 {
			t.Fatalf("progress out of range: %v", p.percents)
		}
	}
	if last := p.percents[len(p.percents)-1]; last != 100 {
		t.Fatalf("final progress = %d, want 100", last)
	}
}

func int64Ptr(v int64) *int64 { return &v }

func populate(t *testing.T, s *storage.Engine) {
	t.Helper()
	ctx := context.Background()
	mustPut(t, s, domain.CollectionNodes, `{"id":"root","title":"","elements":[],"children":{"e1":"n1"}}`)
	mustPut(t, s, domain.CollectionNodes, `{"id":"n1","title":"Child","elements":[{"type":"rect","x":1}],"children":{}}`)
	if err := s.SaveImage(ctx, "img1", "data:image/png;base64,iVBORw0KGgo="); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTheme(ctx, &domain.Theme{IsDarkTheme: false}); err != nil {
		t.Fatal(err)
	}
}

func TestCodec_ExportScenario(t *testing.T) {
	s := newStore(t)
	populate(t, s)

	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	codec := NewCodec(WithClock(func() time.Time { return fixed }))

	var log progressLog
	doc, err := codec.Export(context.Background(), s, EditState{EditCounter: int64Ptr(7)}, log.fn())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if doc.Version != FormatVersion {
		t.Errorf("Version = %q, want %q", doc.Version, FormatVersion)
	}
	if doc.Timestamp != "2026-03-04T05:06:07Z" {
		t.Errorf("Timestamp = %q", doc.Timestamp)
	}
	if got := doc.NodeIDs(); !reflect.DeepEqual(got, []string{"n1", "root"}) {
		t.Errorf("nodes = %v, want [n1 root]", got)
	}
	if got := doc.ImageIDs(); !reflect.DeepEqual(got, []string{"img1"}) {
		t.Errorf("images = %v, want [img1]", got)
	}

	var theme domain.Theme
	if err := doc.Data.Theme.Decode(&theme); err != nil {
		t.Fatal(err)
	}
	if theme.IsDarkTheme {
		t.Error("theme.isDarkTheme should be false")
	}
	if doc.Data.EditCounter == nil || *doc.Data.EditCounter != 7 {
		t.Errorf("editCounter = %v, want 7", doc.Data.EditCounter)
	}
	log.assertMonotonicTo100(t)
}

func TestCodec_ExportEmptyStore(t *testing.T) {
	s := newStore(t)
	codec := NewCodec()

	var log progressLog
	doc, err := codec.Export(context.Background(), s, EditState{}, log.fn())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if _, ok := doc.Data.Nodes[domain.RootNodeID]; !ok {
		t.Error("export should always carry a root node")
	}
	if len(doc.Data.Images) != 0 {
		t.Errorf("expected no images, got %v", doc.ImageIDs())
	}
	log.assertMonotonicTo100(t)

	// At least one report inside the node phase.
	found := false
	for _, pc := range log.percents {
		if pc > 0 && pc <= 50 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a node-phase report, got %v", log.percents)
	}

	// An exported empty store can be imported again.
	raw, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(raw); err != nil {
		t.Errorf("Parse(export of empty store): %v", err)
	}
}

func TestCodec_ExportAfterRootDeleted(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	populate(t, s)
	if err := s.Delete(ctx, domain.CollectionNodes, domain.RootNodeID); err != nil {
		t.Fatal(err)
	}

	doc, err := NewCodec().Export(ctx, s, EditState{}, nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, ok := doc.Data.Nodes[domain.RootNodeID]; !ok {
		t.Fatal("export should carry a default root after the root was deleted")
	}
	raw, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(raw); err != nil {
		t.Errorf("Parse(export): %v", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	populate(t, src)
	mustPut(t, src, domain.CollectionNodes, `{"id":"n2","title":"Unicode ✓","elements":[],"children":{}}`)
	src.SaveImage(ctx, "img2", "data:image/jpeg;base64,/9j/4AAQSkZJRg==")

	codec := NewCodec()
	doc, err := codec.Export(ctx, src, EditState{
		EditCounter:        int64Ptr(42),
		LastBackupReminder: json.RawMessage(`"2026-01-01T00:00:00.000Z"`),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}

	dst := newStore(t)
	mustPut(t, dst, domain.CollectionNodes, `{"id":"stale"}`)
	dst.SaveImage(ctx, "stale-img", "x")

	var log progressLog
	state, err := codec.Import(ctx, raw, dst, log.fn())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	log.assertMonotonicTo100(t)

	if state.EditCounter == nil || *state.EditCounter != 42 {
		t.Errorf("EditCounter = %v, want 42", state.EditCounter)
	}
	if string(state.LastBackupReminder) != `"2026-01-01T00:00:00.000Z"` {
		t.Errorf("LastBackupReminder = %s", state.LastBackupReminder)
	}

	for _, c := range []domain.Collection{domain.CollectionNodes, domain.CollectionImages} {
		want, _ := src.ListKeys(ctx, c)
		got, _ := dst.ListKeys(ctx, c)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s keys = %v, want %v", c, got, want)
		}
	}

	nodeIDs, _ := src.ListKeys(ctx, domain.CollectionNodes)
	for _, id := range nodeIDs {
		a, _ := src.Get(ctx, domain.CollectionNodes, id)
		b, _ := dst.Get(ctx, domain.CollectionNodes, id)
		if !a.Equal(b) {
			t.Errorf("node %s: %s != %s", id, b, a)
		}
	}

	for _, id := range []string{"img1", "img2"} {
		a, _, _ := src.GetImage(ctx, id)
		b, ok, _ := dst.GetImage(ctx, id)
		if !ok || a != b {
			t.Errorf("image %s: %q != %q", id, b, a)
		}
	}

	theme, _ := dst.GetTheme(ctx)
	if theme.IsDarkTheme {
		t.Error("imported theme should be light")
	}
}

func snapshotState(t *testing.T, s *storage.Engine) map[domain.Collection]map[string]string {
	t.Helper()
	ctx := context.Background()
	out := map[domain.Collection]map[string]string{}
	for _, c := range domain.Collections() {
		out[c] = map[string]string{}
		keys, _ := s.ListKeys(ctx, c)
		for _, k := range keys {
			rec, _ := s.Get(ctx, c, k)
			out[c][k] = string(rec)
		}
	}
	return out
}

func TestCodec_ImportRejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"not json", `{"version": "1.0", "data": `, domain.ErrMalformedSnapshot},
		{"binary garbage", "\x00\x01\x02", domain.ErrMalformedSnapshot},
		{"top-level array", `[]`, domain.ErrInvalidSnapshotStructure},
		{"missing version", `{"data":{"nodes":{"root":{}},"images":{}}}`, domain.ErrInvalidSnapshotStructure},
		{"empty version", `{"version":"","data":{"nodes":{"root":{}},"images":{}}}`, domain.ErrInvalidSnapshotStructure},
		{"numeric version", `{"version":1,"data":{"nodes":{"root":{}},"images":{}}}`, domain.ErrInvalidSnapshotStructure},
		{"data not object", `{"version":"1.0","data":[]}`, domain.ErrInvalidSnapshotStructure},
		{"nodes missing", `{"version":"1.0","data":{"images":{}}}`, domain.ErrInvalidSnapshotStructure},
		{"images missing", `{"version":"1.0","data":{"nodes":{"root":{}}}}`, domain.ErrInvalidSnapshotStructure},
		{"root missing", `{"version":"1.0","data":{"nodes":{"n1":{"id":"n1"}},"images":{}}}`, domain.ErrInvalidSnapshotStructure},
		{"node not object", `{"version":"1.0","data":{"nodes":{"root":"x"},"images":{}}}`, domain.ErrInvalidSnapshotStructure},
		{"node id mismatch", `{"version":"1.0","data":{"nodes":{"root":{"id":"other"}},"images":{}}}`, domain.ErrInvalidSnapshotStructure},
		{"image not string", `{"version":"1.0","data":{"nodes":{"root":{}},"images":{"i":{"data":"x"}}}}`, domain.ErrInvalidSnapshotStructure},
		{"bad edit counter", `{"version":"1.0","data":{"nodes":{"root":{}},"images":{},"editCounter":"many"}}`, domain.ErrInvalidSnapshotStructure},
		{"theme not object", `{"version":"1.0","data":{"nodes":{"root":{}},"images":{},"theme":true}}`, domain.ErrInvalidSnapshotStructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			populate(t, s)
			before := snapshotState(t, s)

			_, err := NewCodec().Import(context.Background(), []byte(tt.raw), s, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Import error = %v, want %v", err, tt.wantErr)
			}
			if errors.Is(err, domain.ErrPartialImport) {
				t.Fatal("validation failures must not be partial imports")
			}

			if after := snapshotState(t, s); !reflect.DeepEqual(before, after) {
				t.Errorf("store mutated:\nbefore %v\nafter  %v", before, after)
			}
		})
	}
}

func TestCodec_ImportFillsMissingNodeID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	raw := `{"version":"1.0","data":{"nodes":{"root":{"title":"","elements":[],"children":{}},"n1":{"title":"x"}},"images":{}}}`

	if _, err := NewCodec().Import(ctx, []byte(raw), s, nil); err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Get(ctx, domain.CollectionNodes, "n1")
	if id, err := rec.ID(); err != nil || id != "n1" {
		t.Errorf("imported node id = %q, %v; want n1", id, err)
	}
}

func TestCodec_ImportWithoutThemeKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	s.SaveTheme(ctx, &domain.Theme{IsDarkTheme: false})

	raw := `{"version":"1.0","timestamp":"2026-01-01T00:00:00Z","data":{"nodes":{"root":{"id":"root"}},"images":{},"editCounter":null}}`
	state, err := NewCodec().Import(ctx, []byte(raw), s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if state.EditCounter != nil || state.LastBackupReminder != nil {
		t.Errorf("expected empty edit state, got %+v", state)
	}
	theme, _ := s.GetTheme(ctx)
	if theme.IsDarkTheme {
		t.Error("theme should be unchanged when the snapshot has none")
	}
}

// failingTarget fails SaveImage after the clear has happened.
type failingTarget struct {
	*storage.Engine
}

func (f failingTarget) SaveImage(ctx context.Context, id, data string) error {
	return errors.New("quota exceeded")
}

func TestCodec_ImportPartialFailure(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	mustPut(t, s, domain.CollectionNodes, `{"id":"old"}`)

	raw := `{"version":"1.0","data":{"nodes":{"root":{"id":"root"}},"images":{"img":"abc"}}}`
	_, err := NewCodec().Import(ctx, []byte(raw), failingTarget{s}, nil)
	if !errors.Is(err, domain.ErrPartialImport) {
		t.Fatalf("Import error = %v, want ErrPartialImport", err)
	}

	// Existing data was already replaced.
	if rec, _ := s.Get(ctx, domain.CollectionNodes, "old"); rec != nil {
		t.Error("old node should have been cleared")
	}
}

func TestCodec_ImportCancelledBeforeClear(t *testing.T) {
	s := newStore(t)
	populate(t, s)
	before := snapshotState(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := `{"version":"1.0","data":{"nodes":{"root":{"id":"root"}},"images":{}}}`
	_, err := NewCodec().Import(ctx, []byte(raw), s, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Import error = %v, want context.Canceled", err)
	}
	if after := snapshotState(t, s); !reflect.DeepEqual(before, after) {
		t.Error("cancelled import must not mutate the store")
	}
}

// failingSource fails listing images.
type failingSource struct {
	*storage.Engine
}

func (f failingSource) ListKeys(ctx context.Context, c domain.Collection) ([]string, error) {
	if c == domain.CollectionImages {
		return nil, errors.New("cursor closed")
	}
	return f.Engine.ListKeys(ctx, c)
}

func TestCodec_ExportFailureAborts(t *testing.T) {
	s := newStore(t)
	populate(t, s)

	var log progressLog
	doc, err := NewCodec().Export(context.Background(), failingSource{s}, EditState{}, log.fn())
	if err == nil {
		t.Fatal("expected export error")
	}
	if doc != nil {
		t.Error("failed export must not return a document")
	}
	for _, pc := range log.percents {
		if pc == 100 {
			t.Error("failed export must not report completion")
		}
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		i, n, from, to, want int
	}{
		{1, 1, 0, 50, 50},
		{1, 2, 0, 50, 25},
		{2, 2, 0, 50, 50},
		{1, 3, 70, 95, 78},
		{0, 0, 50, 95, 95},
	}
	for _, tt := range tests {
		if got := scale(tt.i, tt.n, tt.from, tt.to); got != tt.want {
			t.Errorf("scale(%d,%d,%d,%d) = %d, want %d", tt.i, tt.n, tt.from, tt.to, got, tt.want)
		}
	}
}
