package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/bodgit/sevenzip"
	"github.com/mholt/archives"
	"github.com/nwaples/rardecode/v2"
)

// reader is one extraction strategy. Strategies are tried in order
// until one succeeds; they share a uniform capability so the chain is
// independent of any particular backend's failure mode.
type reader interface {
	// name labels the strategy for logs and metrics.
	name() string
	// canRead reports whether the strategy handles the format.
	canRead(f Format) bool
	// read returns the uncompressed bytes of one inner entry.
	read(ctx context.Context, path, inner string) ([]byte, error)
}

// mapOpenErr converts backend open errors into the package taxonomy.
func mapOpenErr(path string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if errors.Is(err, zip.ErrFormat) {
		return fmt.Errorf("%w: %s", ErrCorruptArchive, path)
	}
	return err
}

// genericReader reads any supported format through the mholt/archives
// virtual filesystem. It is the fast first strategy in the chain.
type genericReader struct{}

func (genericReader) name() string { return "generic" }

func (genericReader) canRead(Format) bool { return true }

func (genericReader) read(ctx context.Context, path, inner string) ([]byte, error) {
	fsys, err := archives.FileSystem(ctx, path, nil)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}
	data, err := fs.ReadFile(fsys, inner)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, inner, path)
		}
		return nil, err
	}
	return data, nil
}

// zipReader extracts from zip archives using the shared handle cache to
// amortize repeated opens. If a cached handle fails (stale after
// external mutation) it is evicted and the read retried once with a
// freshly opened handle.
type zipReader struct {
	handles *handleCache
}

func (*zipReader) name() string { return "zip" }

func (*zipReader) canRead(f Format) bool { return f == FormatZip }

func (z *zipReader) read(_ context.Context, path, inner string) ([]byte, error) {
	rc, err := z.handles.get(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}

	data, err := readZipEntry(rc, inner)
	if err == nil {
		return data, nil
	}

	// Stale handle or missing entry: retry once against a fresh handle.
	z.handles.evict(path)
	rc, openErr := z.handles.get(path)
	if openErr != nil {
		return nil, mapOpenErr(path, openErr)
	}
	data, retryErr := readZipEntry(rc, inner)
	if retryErr != nil {
		return nil, fmt.Errorf("%w (retried with fresh handle): %s in %s", retryErr, inner, path)
	}
	return data, nil
}

func readZipEntry(rc *zip.ReadCloser, inner string) ([]byte, error) {
	for _, f := range rc.File {
		if normalizeInner(f.Name) != inner {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, ErrNotFound
}

// sevenZipReader extracts from 7z archives via bodgit/sevenzip. 7z
// solid blocks make cached handles less useful, so each read opens the
// archive fresh.
type sevenZipReader struct{}

func (sevenZipReader) name() string { return "7z" }

func (sevenZipReader) canRead(f Format) bool { return f == FormatSevenZip }

func (sevenZipReader) read(_ context.Context, path, inner string) ([]byte, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}
	defer rc.Close()

	for _, f := range rc.File {
		if normalizeInner(f.Name) != inner {
			continue
		}
		r, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, inner, path)
}

// rarReader extracts from rar archives via nwaples/rardecode. RAR is
// read sequentially; the decoder is advanced until the wanted entry.
type rarReader struct{}

func (rarReader) name() string { return "rar" }

func (rarReader) canRead(f Format) bool { return f == FormatRar }

func (rarReader) read(_ context.Context, path, inner string) ([]byte, error) {
	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, mapOpenErr(path, err)
	}
	defer rc.Close()

	for {
		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, inner, path)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		if hdr.IsDir || normalizeInner(hdr.Name) != inner {
			continue
		}
		return io.ReadAll(rc)
	}
}
