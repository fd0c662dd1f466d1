package command

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "canvasvault-cli" {
		t.Errorf("Name = %q", app.Name)
	}

	commands := make(map[string]bool)
	for _, cmd := range app.Commands {
		commands[cmd.Name] = true
	}
	for _, name := range []string{"backup", "store", "config"} {
		if !commands[name] {
			t.Errorf("missing command %q", name)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, name := range []string{"config", "data-dir", "engine", "encryption-key", "output", "wide", "quiet", "verbose"} {
		if !flags[name] {
			t.Errorf("missing flag %q", name)
		}
	}
}

func TestApp_InvalidOutput(t *testing.T) {
	res := runCLI(t, t.TempDir(), "", "-o", "xml", "backup", "list")
	if res.err == nil || !strings.Contains(res.err.Error(), "unknown output format") {
		t.Fatalf("err = %v, want unknown output format", res.err)
	}
}

func TestApp_InvalidEngine(t *testing.T) {
	app := App()
	app.Writer = &strings.Builder{}
	app.ErrWriter = &strings.Builder{}
	err := app.Run([]string{"canvasvault-cli", "--data-dir", t.TempDir(), "--engine", "leveldb", "store", "status"})
	if err == nil || !strings.Contains(err.Error(), "storage.engine") {
		t.Fatalf("err = %v, want storage.engine error", err)
	}
}

func TestGlobalFlags_Overrides(t *testing.T) {
	f := &GlobalFlags{DataDir: "/d", Engine: "BOLT", EncryptionKey: "k"}
	got := f.overrides()
	if got["storage.data_dir"] != "/d" || got["storage.engine"] != "bolt" || got["security.encryption_key"] != "k" {
		t.Errorf("overrides() = %v", got)
	}
	if n := len((&GlobalFlags{}).overrides()); n != 0 {
		t.Errorf("empty flags produced %d overrides", n)
	}
}

func TestConfigShow_MasksKey(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "--encryption-key", testKey, "-o", "json", "config", "show")
	if strings.Contains(out, testKey) {
		t.Fatal("encryption key printed in clear")
	}
	var cfg struct {
		Storage struct {
			DataDir string `json:"data_dir"`
			Engine  string `json:"engine"`
		} `json:"storage"`
	}
	decodeJSON(t, out, &cfg)
	if cfg.Storage.DataDir != dir || cfg.Storage.Engine != "bolt" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := dir + "/good.yaml"
	bad := dir + "/bad.yaml"
	if err := os.WriteFile(good, []byte("snapshot:\n  retention_count: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("log:\n  level: loud\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var res ValidateResult
	decodeJSON(t, mustRun(t, dir, "-o", "json", "config", "validate", good), &res)
	if !res.Valid || res.File != good {
		t.Errorf("validate good = %+v", res)
	}

	if r := runCLI(t, dir, "", "config", "validate", bad); r.err == nil {
		t.Error("validate should reject an invalid log level")
	}
}

func TestOpenStore_RefusesMemoryMode(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir)

	// Holding the bolt file lock makes the CLI's open fail.
	holder := openEngine(t, dir)
	defer holder.Close()
	t.Setenv("CANVASVAULT_STORAGE_BOLT_LOCK_TIMEOUT", "50ms")

	for _, args := range [][]string{
		{"backup", "export"},
		{"store", "keys", "nodes"},
		{"store", "get", "nodes", "root"},
	} {
		res := runCLI(t, dir, "", args...)
		if !errors.Is(res.err, ErrDurableUnavailable) {
			t.Errorf("%v: err = %v, want ErrDurableUnavailable", args, res.err)
		}
	}

	// status still works and reports the fallback.
	var st StatusResult
	decodeJSON(t, mustRun(t, dir, "-o", "json", "store", "status"), &st)
	if st.Mode != "memory" || st.Cause == "" || st.Nodes != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestStoreKeys_UnknownCollection(t *testing.T) {
	res := runCLI(t, t.TempDir(), "", "store", "keys", "widgets")
	if !errors.Is(res.err, domain.ErrUnknownCollection) {
		t.Fatalf("err = %v, want ErrUnknownCollection", res.err)
	}
}
