package archive

import (
	"os"
	"path"
	"time"

	"neoview/internal/logging"

	gocache "github.com/patrickmn/go-cache"
)

// defaultTempTTL is how long an issued temp file lives before the sweep
// reclaims it.
const defaultTempTTL = time.Hour

// tempRegistry tracks every temp file issued by ExtractToTemp so the
// service owns their lifecycle instead of leaking them to callers. The
// registry's janitor expires entries after the TTL; eviction deletes
// the file from disk.
type tempRegistry struct {
	dir     string
	entries *gocache.Cache
}

func newTempRegistry(dir string, ttl time.Duration) *tempRegistry {
	if dir == "" {
		dir = os.TempDir()
	}
	if ttl <= 0 {
		ttl = defaultTempTTL
	}
	c := gocache.New(ttl, 10*time.Minute)
	c.OnEvicted(func(tempPath string, _ interface{}) {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("archive: removing temp file %s: %v", tempPath, err)
		}
	})
	return &tempRegistry{dir: dir, entries: c}
}

// create writes data to a new temp file whose extension mirrors the
// inner path, and registers it for sweeping.
func (t *tempRegistry) create(inner string, data []byte) (string, error) {
	f, err := os.CreateTemp(t.dir, "neoview-extract-*"+path.Ext(inner))
	if err != nil {
		return "", err
	}
	tempPath := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}

	t.entries.SetDefault(tempPath, time.Now())
	return tempPath, nil
}

// sweep deletes every registered temp file past its TTL. The janitor
// does this in the background too; sweep forces a pass.
func (t *tempRegistry) sweep() {
	t.entries.DeleteExpired()
}

// purgeAll deletes every registered temp file regardless of age.
// go-cache's Flush skips the eviction hook, so entries are deleted
// individually.
func (t *tempRegistry) purgeAll() {
	for tempPath := range t.entries.Items() {
		t.entries.Delete(tempPath)
	}
}

// count reports how many temp files are currently registered.
func (t *tempRegistry) count() int {
	return t.entries.ItemCount()
}
