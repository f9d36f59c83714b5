package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// writeZip creates a zip archive at path with the given entries.
func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestListEntriesNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "book.cbz")
	writeZip(t, archivePath, map[string][]byte{
		"page10.png": []byte("j"),
		"page2.png":  []byte("b"),
		"Page1.png":  []byte("a"),
		"notes.txt":  []byte("n"),
	})

	m := NewManager(Config{})
	defer m.Close()

	entries, err := m.ListEntries(context.Background(), archivePath, true)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}

	want := []string{"notes.txt", "Page1.png", "page2.png", "page10.png"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, name := range want {
		if entries[i].Path != name {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Path, name)
		}
		if entries[i].EntryIndex != i {
			t.Errorf("entry %d index = %d, want %d", i, entries[i].EntryIndex, i)
		}
	}

	if entries[0].IsImage {
		t.Error("notes.txt flagged as image")
	}
	if !entries[1].IsImage {
		t.Error("Page1.png not flagged as image")
	}
}

func TestListEntriesUnsupportedFormat(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	_, err := m.ListEntries(context.Background(), "/tmp/file.txt", true)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestListEntriesCorruptArchiveYieldsEmptyListing(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "broken.zip")
	if err := os.WriteFile(archivePath, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(Config{})
	defer m.Close()

	entries, err := m.ListEntries(context.Background(), archivePath, true)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries from corrupt archive, want 0", len(entries))
	}
}

func TestListEntriesCacheServesStaleUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	writeZip(t, archivePath, map[string][]byte{"one.png": []byte("1")})

	m := NewManager(Config{})
	defer m.Close()

	ctx := context.Background()
	first, err := m.ListEntries(ctx, archivePath, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("got %d entries, want 1", len(first))
	}

	// Rewrite the archive behind the cache's back.
	writeZip(t, archivePath, map[string][]byte{
		"one.png": []byte("1"),
		"two.png": []byte("2"),
	})

	cached, err := m.ListEntries(ctx, archivePath, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 {
		t.Fatalf("cached listing has %d entries, want stale 1", len(cached))
	}

	m.Invalidate(archivePath)

	fresh, err := m.ListEntries(ctx, archivePath, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 2 {
		t.Fatalf("fresh listing has %d entries, want 2", len(fresh))
	}
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.cbz")
	payload := []byte("payload bytes")
	writeZip(t, archivePath, map[string][]byte{"img/pic.png": payload})

	m := NewManager(Config{})
	defer m.Close()

	ctx := context.Background()
	data, err := m.Extract(ctx, archivePath, "img/pic.png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("got %q, want %q", data, payload)
	}

	// Second read comes from the extract cache.
	if got := m.Stats().ExtractEntries; got != 1 {
		t.Fatalf("extract cache entries = %d, want 1", got)
	}
	again, err := m.Extract(ctx, archivePath, "img/pic.png")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, payload) {
		t.Fatal("cached payload differs")
	}

	// Backslash separators normalize to the same entry.
	norm, err := m.Extract(ctx, archivePath, `img\pic.png`)
	if err != nil {
		t.Fatalf("Extract with backslashes: %v", err)
	}
	if !bytes.Equal(norm, payload) {
		t.Fatal("normalized payload differs")
	}
}

func TestExtractErrors(t *testing.T) {
	dir := t.TempDir()
	goodPath := filepath.Join(dir, "good.zip")
	writeZip(t, goodPath, map[string][]byte{"a.png": []byte("a")})

	corruptPath := filepath.Join(dir, "corrupt.zip")
	if err := os.WriteFile(corruptPath, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(Config{})
	defer m.Close()
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		inner   string
		wantErr error
	}{
		{"unsupported format", filepath.Join(dir, "a.txt"), "x", ErrUnsupportedFormat},
		{"missing archive", filepath.Join(dir, "missing.zip"), "x", ErrNotFound},
		{"missing entry", goodPath, "nope.png", ErrNotFound},
		{"corrupt archive", corruptPath, "x", ErrCorruptArchive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Extract(ctx, tt.path, tt.inner)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractSurvivesArchiveRewrite(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	writeZip(t, archivePath, map[string][]byte{"old.png": []byte("old")})

	m := NewManager(Config{})
	defer m.Close()
	ctx := context.Background()

	if _, err := m.Extract(ctx, archivePath, "old.png"); err != nil {
		t.Fatal(err)
	}

	// Replace the archive on disk; the cached handle now points at a
	// stale inode. The zip reader retries with a fresh handle.
	writeZip(t, archivePath, map[string][]byte{"new.png": []byte("new")})

	data, err := m.Extract(ctx, archivePath, "new.png")
	if err != nil {
		t.Fatalf("Extract after rewrite: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("got %q, want %q", data, "new")
	}
}

func TestDeleteEntry(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.cbz")
	writeZip(t, archivePath, map[string][]byte{
		"1.png": []byte("one"),
		"2.png": []byte("two"),
		"3.png": []byte("three"),
	})

	m := NewManager(Config{})
	defer m.Close()
	ctx := context.Background()

	// Warm caches so the delete has stale state to drop.
	if _, err := m.ListEntries(ctx, archivePath, true); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Extract(ctx, archivePath, "2.png"); err != nil {
		t.Fatal(err)
	}

	if err := m.DeleteEntry(ctx, archivePath, "2.png"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	entries, err := m.ListEntries(ctx, archivePath, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries after delete, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Path == "2.png" {
			t.Fatal("deleted entry still listed")
		}
	}

	if _, err := m.Extract(ctx, archivePath, "2.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("extracting deleted entry: err = %v, want ErrNotFound", err)
	}
	if data, err := m.Extract(ctx, archivePath, "3.png"); err != nil || string(data) != "three" {
		t.Fatalf("surviving entry: data=%q err=%v", data, err)
	}

	// No rewrite temp left behind.
	matches, _ := filepath.Glob(filepath.Join(dir, ".neoview-rewrite-*"))
	if len(matches) != 0 {
		t.Fatalf("rewrite temp files left behind: %v", matches)
	}
}

func TestDeleteEntryMissingLeavesArchiveIntact(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	writeZip(t, archivePath, map[string][]byte{"keep.png": []byte("keep")})

	before, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}

	m := NewManager(Config{})
	defer m.Close()

	if err := m.DeleteEntry(context.Background(), archivePath, "nope.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	after, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("archive bytes changed by failed delete")
	}
}

func TestDeleteEntryNonZip(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	err := m.DeleteEntry(context.Background(), "/tmp/a.rar", "x")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtractToTempAndSweep(t *testing.T) {
	dir := t.TempDir()
	tempDir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	writeZip(t, archivePath, map[string][]byte{"pic.png": []byte("pixels")})

	m := NewManager(Config{TempDir: tempDir, TempTTL: 50 * time.Millisecond})
	defer m.Close()

	tmpPath, err := m.ExtractToTemp(context.Background(), archivePath, "pic.png")
	if err != nil {
		t.Fatalf("ExtractToTemp: %v", err)
	}
	if filepath.Ext(tmpPath) != ".png" {
		t.Errorf("temp file extension = %q, want .png", filepath.Ext(tmpPath))
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		t.Fatalf("reading temp file: %v", err)
	}
	if string(data) != "pixels" {
		t.Fatalf("temp file content = %q", data)
	}
	if got := m.temp.count(); got != 1 {
		t.Fatalf("registered temp files = %d, want 1", got)
	}

	time.Sleep(80 * time.Millisecond)
	m.SweepTemp()

	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Fatalf("temp file survived sweep: %v", err)
	}
}

func TestCloseReclaimsTempFiles(t *testing.T) {
	dir := t.TempDir()
	tempDir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	writeZip(t, archivePath, map[string][]byte{"pic.png": []byte("pixels")})

	m := NewManager(Config{TempDir: tempDir})

	tmpPath, err := m.ExtractToTemp(context.Background(), archivePath, "pic.png")
	if err != nil {
		t.Fatal(err)
	}

	m.Close()

	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Fatalf("temp file survived Close: %v", err)
	}
}

func TestInvalidateAllResetsStats(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "a.zip")
	writeZip(t, archivePath, map[string][]byte{"a.png": []byte("abc")})

	m := NewManager(Config{})
	defer m.Close()
	ctx := context.Background()

	if _, err := m.ListEntries(ctx, archivePath, true); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Extract(ctx, archivePath, "a.png"); err != nil {
		t.Fatal(err)
	}

	stats := m.Stats()
	if stats.IndexedArchives != 1 || stats.ExtractEntries != 1 || stats.ExtractBytes != 3 {
		t.Fatalf("unexpected stats before purge: %+v", stats)
	}

	m.InvalidateAll()

	stats = m.Stats()
	if stats.IndexedArchives != 0 || stats.ExtractEntries != 0 || stats.ExtractBytes != 0 {
		t.Fatalf("unexpected stats after purge: %+v", stats)
	}
}
