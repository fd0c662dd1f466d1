package benchmark

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/storage"
	"github.com/yndnr/canvasvault/pkg/crypto/adaptive"
)

// NodeCounts defines the document sizes used by the codec benchmarks.
var NodeCounts = []int{100, 1000, 5000}

// ImageSizes are encoded image payload sizes in bytes.
var ImageSizes = []int{4 << 10, 256 << 10}

// engineKinds lists the backends benchmarked by the engine benchmarks.
var engineKinds = []string{"memory", storage.EngineBolt, storage.EngineBadger, "badger_sealed"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newNodeID generates a new node ID.
func newNodeID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, _ := ulid.New(ulid.Timestamp(time.Now()), entropy)
	return strings.ToLower(id.String())
}

// newNode builds a node record with a few elements and children.
func newNode(b *testing.B, id string) domain.Record {
	b.Helper()
	rec, err := domain.NewRecord(map[string]any{
		"id":    id,
		"title": "node " + id,
		"elements": []map[string]any{
			{"type": "text", "x": 10, "y": 20, "text": "hello"},
			{"type": "image", "x": 40, "y": 80, "imageId": "img-" + id},
		},
		"children": map[string]any{},
	})
	if err != nil {
		b.Fatalf("NewRecord: %v", err)
	}
	return rec
}

// newImageData returns a data URL of roughly size bytes.
func newImageData(size int) string {
	raw := make([]byte, size*3/4)
	_, _ = rand.Read(raw)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}

// openEngine opens an engine of the given kind in a temp dir. The
// engine is closed when the benchmark ends.
func openEngine(b *testing.B, kind string) *storage.Engine {
	b.Helper()

	var driver storage.Driver
	if kind != "memory" {
		cfg := storage.DefaultKVConfig(b.TempDir())
		cfg.Engine = kind
		cfg.Badger.SyncWrites = false
		cfg.Bolt.NoSync = true
		if kind == "badger_sealed" {
			cfg.Engine = storage.EngineBadger
			key := make([]byte, adaptive.KeySize)
			_, _ = rand.Read(key)
			sealer, err := adaptive.NewSealer(key)
			if err != nil {
				b.Fatalf("NewSealer: %v", err)
			}
			cfg.Sealer = sealer
		}
		d, err := storage.NewDriver(cfg, discardLogger())
		if err != nil {
			b.Fatalf("NewDriver(%s): %v", kind, err)
		}
		driver = d
	}

	e := storage.New(storage.Config{Driver: driver}, storage.WithLogger(discardLogger()))
	mode := e.Open(context.Background())
	if kind != "memory" && mode != storage.ModeDurable {
		b.Fatalf("engine %s opened in %s mode: %v", kind, mode, e.Cause())
	}
	b.Cleanup(func() { e.Close() })
	return e
}

// prefill stores count nodes and count/10 images and returns the node IDs.
func prefill(b *testing.B, e *storage.Engine, count int) []string {
	b.Helper()
	ctx := context.Background()
	ids := make([]string, count)
	for i := range ids {
		ids[i] = newNodeID()
		if err := e.Put(ctx, domain.CollectionNodes, newNode(b, ids[i])); err != nil {
			b.Fatalf("Put: %v", err)
		}
	}
	img := newImageData(4 << 10)
	for i := 0; i < count/10; i++ {
		if err := e.SaveImage(ctx, fmt.Sprintf("img-%d", i), img); err != nil {
			b.Fatalf("SaveImage: %v", err)
		}
	}
	return ids
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithNodeCounts runs a benchmark function with various document sizes.
func runWithNodeCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("nodes_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}

func sizeLabel(size int) string {
	if size >= 1<<20 {
		return fmt.Sprintf("%dMB", size>>20)
	}
	return fmt.Sprintf("%dKB", size>>10)
}
