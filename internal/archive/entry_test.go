package archive

import (
	"testing"
	"time"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"comic.cbz", FormatZip},
		{"photos.ZIP", FormatZip},
		{"book.cbr", FormatRar},
		{"old.rar", FormatRar},
		{"packed.7z", FormatSevenZip},
		{"comic.CB7", FormatSevenZip},
		{"book.epub", FormatZip},
		{"notes.txt", FormatUnsupported},
		{"image.png", FormatUnsupported},
		{"noext", FormatUnsupported},
		{"dir/archive.cbz", FormatZip},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSortEntriesNaturalCaseInsensitive(t *testing.T) {
	entries := []Entry{
		newEntry("Ch2/page10.png", 1, time.Time{}),
		newEntry("ch2/page9.png", 1, time.Time{}),
		newEntry("ch10/page1.png", 1, time.Time{}),
		newEntry("CH1/page1.png", 1, time.Time{}),
	}

	sortEntries(entries)

	want := []string{
		"CH1/page1.png",
		"ch2/page9.png",
		"Ch2/page10.png",
		"ch10/page1.png",
	}
	for i, w := range want {
		if entries[i].Path != w {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Path, w)
		}
		if entries[i].EntryIndex != i {
			t.Errorf("entry %d index = %d, want %d", i, entries[i].EntryIndex, i)
		}
	}
}

func TestNewEntryNormalizesSeparators(t *testing.T) {
	e := newEntry(`dir\sub\Pic.JPG`, 42, time.Time{})

	if e.Path != "dir/sub/Pic.JPG" {
		t.Errorf("Path = %q", e.Path)
	}
	if e.Name != "Pic.JPG" {
		t.Errorf("Name = %q", e.Name)
	}
	if !e.IsImage {
		t.Error("IsImage = false for .JPG")
	}
	if e.Modified != nil {
		t.Error("Modified set for zero time")
	}
	if e.Size != 42 {
		t.Errorf("Size = %d", e.Size)
	}
}
