package command

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/internal/storage"
)

// cliResult captures one CLI invocation.
type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI runs the app with args against dataDir using the bolt engine.
func runCLI(t *testing.T, dataDir, stdin string, args ...string) cliResult {
	t.Helper()
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)

	full := append([]string{"canvasvault-cli", "--data-dir", dataDir, "--engine", "bolt", "-q"}, args...)
	err := app.Run(full)
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	res := runCLI(t, dataDir, "", args...)
	if res.err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, res.err, res.stderr)
	}
	return res.stdout
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(s), v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
}

// openEngine opens the bolt store in dir directly, applying a pending reset.
func openEngine(t *testing.T, dir string) *storage.Engine {
	t.Helper()
	kv := storage.DefaultKVConfig(dir)
	kv.Engine = storage.EngineBolt
	drv, err := storage.NewDriver(kv, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := storage.New(storage.Config{
		Driver:    drv,
		ResetFlag: storage.NewFileResetFlag(storage.ResetFlagPath(dir, "")),
	})
	if mode := e.Open(context.Background()); mode != storage.ModeDurable {
		t.Fatalf("engine opened in %s mode: %v", mode, e.Cause())
	}
	return e
}

// seed writes a root with one child node, a theme and an image.
func seed(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()
	e := openEngine(t, dir)
	defer e.Close()

	records := []struct {
		c   domain.Collection
		raw string
	}{
		{domain.CollectionNodes, `{"id":"root","title":"","elements":[],"children":{"child":{"x":1}}}`},
		{domain.CollectionNodes, `{"id":"child","title":"Chapter","elements":[{"type":"text"}],"children":{}}`},
		{domain.CollectionTheme, `{"id":"theme","isDarkTheme":false}`},
		{domain.CollectionImages, `{"id":"img-1","data":"data:image/png;base64,` + strings.Repeat("A", 400) + `"}`},
	}
	for _, r := range records {
		if err := e.Put(ctx, r.c, domain.Record(r.raw)); err != nil {
			t.Fatalf("seed %s: %v", r.c, err)
		}
	}
}

func keys(t *testing.T, dir string, c domain.Collection) []string {
	t.Helper()
	e := openEngine(t, dir)
	defer e.Close()
	ks, err := e.ListKeys(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	return ks
}
