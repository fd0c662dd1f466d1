package storage

import (
	"path/filepath"
	"testing"
)

func TestFileResetFlag(t *testing.T) {
	dir := t.TempDir()
	flag := NewFileResetFlag(ResetFlagPath(filepath.Join(dir, "data"), ""))

	requested, err := flag.Requested()
	if err != nil {
		t.Fatal(err)
	}
	if requested {
		t.Error("fresh flag should not be requested")
	}

	if err := flag.Request(); err != nil {
		t.Fatal(err)
	}
	if requested, _ := flag.Requested(); !requested {
		t.Error("flag should be requested after Request()")
	}

	if err := flag.Clear(); err != nil {
		t.Fatal(err)
	}
	if requested, _ := flag.Requested(); requested {
		t.Error("flag should be cleared")
	}

	if err := flag.Clear(); err != nil {
		t.Errorf("clearing an absent flag should succeed, got %v", err)
	}
}

func TestResetFlagPath(t *testing.T) {
	tests := []struct {
		dir, file, want string
	}{
		{"/var/lib/cv", "", "/var/lib/cv/RESET_REQUESTED"},
		{"/var/lib/cv", "reset", "/var/lib/cv/reset"},
		{"/var/lib/cv", "/tmp/reset", "/tmp/reset"},
	}
	for _, tt := range tests {
		if got := ResetFlagPath(tt.dir, tt.file); got != tt.want {
			t.Errorf("ResetFlagPath(%q, %q) = %q, want %q", tt.dir, tt.file, got, tt.want)
		}
	}
}
