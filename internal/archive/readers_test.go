package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestZipReaderRetriesWithFreshHandleAfterRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.zip")
	writeZip(t, path, map[string][]byte{
		"1.png": []byte("one"),
		"2.png": []byte("two"),
	})

	z := &zipReader{handles: newHandleCache(4)}
	t.Cleanup(z.handles.evictAll)
	ctx := context.Background()

	// Warm the handle cache.
	data, err := z.read(ctx, path, "1.png")
	if err != nil || string(data) != "one" {
		t.Fatalf("initial read = %q, %v", data, err)
	}

	// Rewrite the archive behind the cached handle. The old handle's
	// central directory still lists 1.png and 2.png.
	writeZip(t, path, map[string][]byte{
		"1.png": []byte("fresh one"),
		"3.png": []byte("three"),
	})

	// 3.png exists only in the rewritten archive, so the stale handle
	// misses it; the reader must evict and retry with a fresh open.
	data, err = z.read(ctx, path, "3.png")
	if err != nil {
		t.Fatalf("read after rewrite: %v", err)
	}
	if string(data) != "three" {
		t.Fatalf("read after rewrite = %q, want %q", data, "three")
	}

	// The fresh handle is now cached; subsequent reads see the new
	// content directly.
	data, err = z.read(ctx, path, "1.png")
	if err != nil || string(data) != "fresh one" {
		t.Fatalf("read of rewritten entry = %q, %v", data, err)
	}
}

func TestZipReaderRetryFailureKeepsTaxonomy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.zip")
	writeZip(t, path, map[string][]byte{
		"1.png": []byte("one"),
		"2.png": []byte("two"),
	})

	z := &zipReader{handles: newHandleCache(4)}
	t.Cleanup(z.handles.evictAll)
	ctx := context.Background()

	if _, err := z.read(ctx, path, "1.png"); err != nil {
		t.Fatalf("warming handle: %v", err)
	}

	writeZip(t, path, map[string][]byte{
		"3.png": []byte("three"),
	})

	// 2.png exists in neither the stale listing's backing file nor the
	// rewritten archive: the retry also fails, and the sentinel must
	// survive the wrapping.
	_, err := z.read(ctx, path, "2.png")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
