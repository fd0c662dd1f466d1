package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.StorageMode == nil {
		t.Error("StorageMode is nil")
	}
	if r.StorageOperations == nil {
		t.Error("StorageOperations is nil")
	}
	if r.SnapshotDuration == nil {
		t.Error("SnapshotDuration is nil")
	}
	if r.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
}

func TestGlobal(t *testing.T) {
	r1 := Global()
	r2 := Global()
	if r1 != r2 {
		t.Error("Global() should return the same instance")
	}
}

func TestHandler(t *testing.T) {
	h := Handler()
	if h == nil {
		t.Fatal("Handler() returned nil")
	}

	body := scrape(t, Global())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestStorageMetrics(t *testing.T) {
	r := NewRegistry()

	r.SetStorageMode(true)
	r.SetStorageMode(false)
	r.IncFailover()
	r.ObserveStorageOp("nodes", "get", "durable")
	r.ObserveStorageOp("nodes", "get", "durable")
	r.ObserveStorageOp("images", "put", "memory")

	body := scrape(t, r)

	if !strings.Contains(body, "canvasvault_storage_mode 0") {
		t.Error("expected canvasvault_storage_mode 0")
	}
	if !strings.Contains(body, "canvasvault_storage_failovers_total 1") {
		t.Error("expected canvasvault_storage_failovers_total 1")
	}
	if !strings.Contains(body, `canvasvault_storage_operations_total{backend="durable",collection="nodes",op="get"} 2`) {
		t.Error("expected two durable node gets")
	}
	if !strings.Contains(body, `canvasvault_storage_operations_total{backend="memory",collection="images",op="put"} 1`) {
		t.Error("expected one memory image put")
	}
}

func TestSnapshotMetrics(t *testing.T) {
	r := NewRegistry()

	r.ObserveSnapshot("export", 20*time.Millisecond, nil)
	r.ObserveSnapshot("import", time.Second, errors.New("boom"))
	r.AddSnapshotRecords("export", "nodes", 3)
	r.AddSnapshotRecords("export", "images", 0)

	body := scrape(t, r)

	if !strings.Contains(body, `canvasvault_snapshot_duration_seconds_count{op="export"} 1`) {
		t.Error("expected one export duration sample")
	}
	if !strings.Contains(body, `canvasvault_snapshot_failures_total{op="import"} 1`) {
		t.Error("expected one import failure")
	}
	if strings.Contains(body, `canvasvault_snapshot_failures_total{op="export"}`) {
		t.Error("successful export should not count as failure")
	}
	if !strings.Contains(body, `canvasvault_snapshot_records_total{collection="nodes",op="export"} 3`) {
		t.Error("expected three exported nodes")
	}
	if strings.Contains(body, `collection="images",op="export"`) {
		t.Error("zero record counts should not create a series")
	}
}

func TestRequestMetrics(t *testing.T) {
	r := NewRegistry()

	r.ObserveRequest("GET", "/health", 200, 5*time.Millisecond)
	r.ObserveRequest("PUT", "/v1/theme", 400, time.Millisecond)

	body := scrape(t, r)

	if !strings.Contains(body, `canvasvault_http_requests_total{code="200",method="GET",route="/health"} 1`) {
		t.Error("expected GET /health 200")
	}
	if !strings.Contains(body, `canvasvault_http_requests_total{code="400",method="PUT",route="/v1/theme"} 1`) {
		t.Error("expected PUT /v1/theme 400")
	}
	if !strings.Contains(body, "canvasvault_http_request_duration_seconds_bucket") {
		t.Error("expected request duration buckets")
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry

	// None of these may panic.
	r.SetStorageMode(true)
	r.IncFailover()
	r.ObserveStorageOp("nodes", "get", "memory")
	r.ObserveSnapshot("export", time.Second, nil)
	r.AddSnapshotRecords("export", "nodes", 1)
	r.ObserveRequest("GET", "/", 200, time.Millisecond)

	if r.Registerer() != nil {
		t.Error("nil registry should have nil Registerer")
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.ObserveStorageOp("nodes", "put", "durable")
				r.ObserveRequest("GET", "/v1/theme", 200, time.Millisecond)
				r.AddSnapshotRecords("import", "images", 1)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	body := scrape(t, r)
	if !strings.Contains(body, `canvasvault_storage_operations_total{backend="durable",collection="nodes",op="put"} 1000`) {
		t.Error("expected 1000 concurrent puts")
	}
}
