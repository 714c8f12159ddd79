package overlay

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScansOnlyPNGs(t *testing.T) {
	dir := t.TempDir()
	files := []string{"gold_frame.png", "neon-glow.PNG", "readme.txt", "thumb.jpg"}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	infos := reg.List()
	if len(infos) != 2 {
		t.Fatalf("templates = %d, want 2", len(infos))
	}
	if infos[0].ID != "gold_frame" || infos[0].Name != "Gold Frame" {
		t.Errorf("first = %s/%s, want gold_frame/Gold Frame", infos[0].ID, infos[0].Name)
	}
	if infos[1].ID != "neon-glow" || infos[1].Name != "Neon Glow" {
		t.Errorf("second = %s/%s, want neon-glow/Neon Glow", infos[1].ID, infos[1].Name)
	}

	tpl, ok := reg.Get("gold_frame")
	if !ok {
		t.Fatal("Get(gold_frame) missing")
	}
	if tpl.AssetPath != filepath.Join(dir, "gold_frame.png") {
		t.Errorf("AssetPath = %q", tpl.AssetPath)
	}
	if _, ok := reg.Get("readme"); ok {
		t.Error("non-PNG files must not be registered")
	}
}

func TestLoadMissingDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
