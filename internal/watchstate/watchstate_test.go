package watchstate

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	snap := &Snapshot{
		Dirs: map[string]DirEntry{
			"/src": {Names: []string{"a.txt", "sub"}},
		},
		Files: map[string]FileEntry{
			"/src/a.txt": {ModTime: time.Unix(1000, 0), Size: 42, Mode: 0644},
		},
	}

	if err := store.Save("/src", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load("/src")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load: expected ok=true after Save")
	}
	if len(got.Dirs["/src"].Names) != 2 {
		t.Fatalf("Dirs mismatch: %+v", got.Dirs)
	}
	fe := got.Files["/src/a.txt"]
	if fe.Size != 42 || fe.Mode != 0644 || !fe.ModTime.Equal(snap.Files["/src/a.txt"].ModTime) {
		t.Fatalf("Files mismatch: %+v", fe)
	}
}

func TestLoadMissingRootReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Load("/never/saved")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("Load: expected ok=false for a root never saved")
	}
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	first := &Snapshot{Files: map[string]FileEntry{"a": {Size: 1}}}
	second := &Snapshot{Files: map[string]FileEntry{"b": {Size: 2}}}

	if err := store.Save("/src", first); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := store.Save("/src", second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	got, ok, err := store.Load("/src")
	if err != nil || !ok {
		t.Fatalf("Load: %v, ok=%v", err, ok)
	}
	if _, has := got.Files["a"]; has {
		t.Fatal("expected first snapshot's key to be gone after overwrite")
	}
	if got.Files["b"].Size != 2 {
		t.Fatalf("expected second snapshot's data, got %+v", got.Files)
	}
}

func TestDebugJSONProducesReadableOutput(t *testing.T) {
	snap := &Snapshot{Files: map[string]FileEntry{"a": {Size: 7}}}
	s, err := DebugJSON(snap)
	if err != nil {
		t.Fatalf("DebugJSON: %v", err)
	}
	if s == "" {
		t.Fatal("DebugJSON: expected non-empty output")
	}
}
