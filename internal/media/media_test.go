package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matjam/vidpaper/internal/types"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		path string
		kind types.MediaKind
		ok   bool
	}{
		{"a.jpg", types.MediaImage, true},
		{"a.JPEG", types.MediaImage, true},
		{"a.webp", types.MediaImage, true},
		{"a.gif", types.MediaImage, true},
		{"b.mp4", types.MediaVideo, true},
		{"b.MKV", types.MediaVideo, true},
		{"b.webm", types.MediaVideo, true},
		{"c.txt", "", false},
		{"noext", "", false},
	}
	for _, c := range cases {
		kind, ok := KindOf(c.path)
		if kind != c.kind || ok != c.ok {
			t.Errorf("KindOf(%q) = (%v, %v), want (%v, %v)", c.path, kind, ok, c.kind, c.ok)
		}
	}
}

func TestScanSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.png")
	touch(t, dir, "a.mp4")
	touch(t, dir, "readme.txt")
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	sources, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2: %+v", len(sources), sources)
	}
	if sources[0].Path != filepath.Join(dir, "a.mp4") || sources[0].Kind != types.MediaVideo {
		t.Errorf("first = %+v", sources[0])
	}
	if sources[1].Path != filepath.Join(dir, "b.png") || sources[1].Kind != types.MediaImage {
		t.Errorf("second = %+v", sources[1])
	}
}

func TestScanEmptyDirErrors(t *testing.T) {
	if _, err := Scan(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
	if _, err := Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	vid := touch(t, dir, "loop.mp4")

	src, err := Resolve(vid)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if src.Kind != types.MediaVideo {
		t.Errorf("kind = %v, want video", src.Kind)
	}

	if _, err := Resolve(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := touch(t, dir, "notes.txt")
	if _, err := Resolve(bad); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestPickRandomExcludesPrevious(t *testing.T) {
	dir := t.TempDir()
	prev := touch(t, dir, "a.png")
	touch(t, dir, "b.png")
	touch(t, dir, "c.png")

	for i := 0; i < 50; i++ {
		src, err := PickRandom(dir, prev)
		if err != nil {
			t.Fatalf("PickRandom: %v", err)
		}
		if src.Path == prev {
			t.Fatalf("picked previous %s on attempt %d", prev, i)
		}
	}
}

func TestPickRandomSingleCandidateRepeats(t *testing.T) {
	dir := t.TempDir()
	only := touch(t, dir, "only.jpg")

	src, err := PickRandom(dir, only)
	if err != nil {
		t.Fatalf("PickRandom: %v", err)
	}
	if src.Path != only {
		t.Fatalf("got %s, want %s", src.Path, only)
	}
}

func TestPickNextWraps(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.png")
	b := touch(t, dir, "b.png")

	src, err := PickNext(dir, a)
	if err != nil {
		t.Fatal(err)
	}
	if src.Path != b {
		t.Fatalf("after a: got %s, want %s", src.Path, b)
	}

	src, err = PickNext(dir, b)
	if err != nil {
		t.Fatal(err)
	}
	if src.Path != a {
		t.Fatalf("after b: got %s, want %s", src.Path, a)
	}

	src, err = PickNext(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if src.Path != a {
		t.Fatalf("fresh: got %s, want %s", src.Path, a)
	}
}
