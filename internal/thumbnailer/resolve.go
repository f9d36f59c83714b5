package thumbnailer

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"neoview/internal/logging"
	"neoview/internal/mediatypes"

	"github.com/maruel/natural"
)

// Thumbnail source categories, stored alongside the blob so cache
// clearing and stats can slice by source kind.
const (
	CategoryFile    = "file"
	CategoryFolder  = "folder"
	CategoryArchive = "archive"
	CategoryVideo   = "video"
)

// resolve locates the representative image for a path and decodes it.
// It returns the decoded image and the source category.
func (g *Generator) resolve(ctx context.Context, path, inner string, maxSize int) (image.Image, string, error) {
	if inner != "" {
		img, err := g.resolveArchiveEntry(ctx, path, inner, maxSize)
		return img, CategoryArchive, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, CategoryFile, err
	}
	if fi.IsDir() {
		img, err := g.resolveFolder(ctx, path, maxSize)
		return img, CategoryFolder, err
	}

	switch mediatypes.GetFileType(strings.ToLower(filepath.Ext(path))) {
	case mediatypes.FileTypeImage:
		img, err := g.decodeFile(path, maxSize)
		return img, CategoryFile, err
	case mediatypes.FileTypeVideo:
		img, err := extractVideoFrame(path, g.videoSeek)
		return img, CategoryVideo, err
	case mediatypes.FileTypeArchive, mediatypes.FileTypeEpub:
		img, err := g.resolveArchiveFirstImage(ctx, path, maxSize)
		return img, CategoryArchive, err
	}
	return nil, CategoryFile, fmt.Errorf("%w: no representative image for %s", ErrNoThumbnail, path)
}

func (g *Generator) decodeFile(path string, maxSize int) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return g.decodeImage(data, maxSize)
}

// resolveArchiveEntry decodes one named entry inside an archive.
func (g *Generator) resolveArchiveEntry(ctx context.Context, path, inner string, maxSize int) (image.Image, error) {
	data, err := g.archives.Extract(ctx, path, inner)
	if err != nil {
		return nil, err
	}
	return g.decodeImage(data, maxSize)
}

// resolveArchiveFirstImage scans an archive's entries in natural order
// and returns the first one that decodes. The scan stops at the first
// success, so a comic archive costs one extraction, not a full unpack.
func (g *Generator) resolveArchiveFirstImage(ctx context.Context, path string, maxSize int) (image.Image, error) {
	entries, err := g.archives.ListEntries(ctx, path, true)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if !e.IsImage {
			continue
		}
		data, err := g.archives.Extract(ctx, path, e.Path)
		if err != nil {
			logging.Debug("Skipping archive entry %s::%s: %v", path, e.Path, err)
			continue
		}
		img, err := g.decodeImage(data, maxSize)
		if err != nil {
			logging.Debug("Skipping undecodable entry %s::%s: %v", path, e.Path, err)
			continue
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: no decodable image in %s", ErrNoThumbnail, path)
}

// resolveFolder picks a representative image for a directory from its
// immediate children in natural order: plain images first, then the
// first image of any archive child, then a frame from a video child.
func (g *Generator) resolveFolder(ctx context.Context, dir string, maxSize int) (image.Image, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		names = append(names, d.Name())
	}
	sort.SliceStable(names, func(i, j int) bool {
		return natural.Less(strings.ToLower(names[i]), strings.ToLower(names[j]))
	})

	classify := func(name string) mediatypes.FileType {
		return mediatypes.GetFileType(strings.ToLower(filepath.Ext(name)))
	}

	for _, name := range names {
		if classify(name) != mediatypes.FileTypeImage {
			continue
		}
		img, err := g.decodeFile(filepath.Join(dir, name), maxSize)
		if err == nil {
			return img, nil
		}
		logging.Debug("Skipping undecodable image %s in %s: %v", name, dir, err)
	}

	for _, name := range names {
		ft := classify(name)
		if ft != mediatypes.FileTypeArchive && ft != mediatypes.FileTypeEpub {
			continue
		}
		img, err := g.resolveArchiveFirstImage(ctx, filepath.Join(dir, name), maxSize)
		if err == nil {
			return img, nil
		}
		logging.Debug("Skipping archive %s in %s: %v", name, dir, err)
	}

	for _, name := range names {
		if classify(name) != mediatypes.FileTypeVideo {
			continue
		}
		img, err := extractVideoFrame(filepath.Join(dir, name), g.videoSeek)
		if err == nil {
			return img, nil
		}
		logging.Debug("Skipping video %s in %s: %v", name, dir, err)
	}

	return nil, fmt.Errorf("%w: no representative image in %s", ErrNoThumbnail, dir)
}
