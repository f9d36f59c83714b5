package database

import (
	"context"
	"database/sql"
	"time"

	"neoview/internal/metrics"
)

// ThumbnailRecord is one stored thumbnail with its validity tokens.
type ThumbnailRecord struct {
	Key      string
	Size     int64
	Date     int64
	Category string
	Value    []byte
}

// GetThumbnailIfValid returns the stored thumbnail bytes for key only
// while the stored (size, date) tokens match the live source's current
// attributes. Any divergence is a miss; the caller regenerates. A valid
// hit refreshes accessed_at.
func (s *Store) GetThumbnailIfValid(ctx context.Context, key string, size, date int64) ([]byte, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_thumbnail", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value []byte
	var storedSize, storedDate int64
	err = s.db.QueryRowContext(ctx,
		"SELECT value, size, date FROM thumbs WHERE key = ?", key,
	).Scan(&value, &storedSize, &storedDate)
	if err == sql.ErrNoRows {
		err = nil
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if storedSize != size || storedDate != date {
		return nil, false, nil
	}

	if _, touchErr := s.db.ExecContext(ctx,
		"UPDATE thumbs SET accessed_at = strftime('%s', 'now') WHERE key = ?", key,
	); touchErr != nil {
		// Access tracking only affects maintenance ordering.
		recordQuery("touch_thumbnail", start, touchErr)
	}

	return value, true, nil
}

// SaveThumbnail upserts a thumbnail record with refreshed validity
// tokens and category.
func (s *Store) SaveThumbnail(ctx context.Context, key string, value []byte, size, date int64, category string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_thumbnail", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thumbs (key, size, date, category, value, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, strftime('%s', 'now'), strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			size = excluded.size,
			date = excluded.date,
			category = excluded.category,
			value = excluded.value,
			accessed_at = strftime('%s', 'now')
	`, key, size, date, category, value)
	return err
}

// DeleteByPath removes thumbnail and failure records for a source path:
// the record keyed exactly by path plus every archive-entry record
// prefixed "path::".
func (s *Store) DeleteByPath(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_by_path", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	prefix := path + "::%"
	if _, err = s.db.ExecContext(ctx,
		"DELETE FROM thumbs WHERE key = ? OR key LIKE ?", path, prefix,
	); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM failed_thumbnails WHERE key = ? OR key LIKE ?", path, prefix,
	)
	return err
}

// ClearCache deletes thumbnail records. A non-empty category limits the
// delete to that category; an empty category clears everything,
// including failure records.
func (s *Store) ClearCache(ctx context.Context, category string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_cache", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if category != "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM thumbs WHERE category = ?", category)
		return err
	}
	if _, err = s.db.ExecContext(ctx, "DELETE FROM thumbs"); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM failed_thumbnails")
	return err
}

// DeleteOld removes records not accessed within maxAge, then trims the
// table to maxCount by oldest access. Used by periodic maintenance.
func (s *Store) DeleteOld(ctx context.Context, maxAge time.Duration, maxCount int) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_old", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx, "DELETE FROM thumbs WHERE accessed_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()

	if maxCount > 0 {
		var count int
		if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM thumbs").Scan(&count); err != nil {
			return removed, err
		}
		if count > maxCount {
			res, err = s.db.ExecContext(ctx, `
				DELETE FROM thumbs WHERE key IN (
					SELECT key FROM thumbs ORDER BY accessed_at ASC LIMIT ?
				)
			`, count-maxCount)
			if err != nil {
				return removed, err
			}
			trimmed, _ := res.RowsAffected()
			removed += trimmed
		}
	}
	return removed, nil
}

// CategoryStats summarizes stored thumbnails for one category.
type CategoryStats struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

// StoreStats summarizes the whole store.
type StoreStats struct {
	Count      int64                    `json:"count"`
	TotalBytes int64                    `json:"totalBytes"`
	ByCategory map[string]CategoryStats `json:"byCategory"`
	Failed     int64                    `json:"failed"`
}

// Stats reports record counts and blob bytes, grouped by category.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := StoreStats{ByCategory: make(map[string]CategoryStats)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(LENGTH(value)), 0)
		FROM thumbs GROUP BY category
	`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var cs CategoryStats
		if err = rows.Scan(&category, &cs.Count, &cs.Bytes); err != nil {
			return stats, err
		}
		stats.ByCategory[category] = cs
		stats.Count += cs.Count
		stats.TotalBytes += cs.Bytes
	}
	if err = rows.Err(); err != nil {
		return stats, err
	}
	metrics.DBThumbnailBytes.Set(float64(stats.TotalBytes))

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM failed_thumbnails").Scan(&stats.Failed)
	return stats, err
}
