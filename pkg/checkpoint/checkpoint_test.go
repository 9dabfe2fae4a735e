package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckpointLifecycle(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if m.Exists() {
		t.Error("checkpoint should not exist yet")
	}
	if cp, err := m.Load(); err != nil || cp != nil {
		t.Errorf("Load of missing checkpoint = %v, %v; want nil, nil", cp, err)
	}

	cp, err := m.Create("full")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !m.Exists() {
		t.Error("checkpoint should exist after Create")
	}

	if err := m.UpdateProgress(cp, 7, 0, 650); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	loaded, err := m.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Mode != "full" || loaded.LastPage != 7 || loaded.ItemsProcessed != 650 {
		t.Errorf("unexpected checkpoint: %+v", loaded)
	}

	if err := m.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.Exists() {
		t.Error("checkpoint should be gone after Delete")
	}
	// Deleting again is fine
	if err := m.Delete(); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m.Create("full"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "scrape.checkpoint.json")); err != nil {
		t.Errorf("checkpoint file missing: %v", err)
	}
}
