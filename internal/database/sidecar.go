package database

import (
	"context"
	"database/sql"
	"time"
)

// Sidecar is user metadata associated with a content identity key:
// ratings and manual tags. It shares the key space with the thumbnail
// cache but lives in its own table with its own lifecycle — clearing
// the thumbnail cache never touches it.
type Sidecar struct {
	Key        string `json:"key"`
	Rating     string `json:"rating,omitempty"`
	ManualTags string `json:"manualTags,omitempty"`
}

// GetSidecar returns the sidecar metadata for key, or nil if none.
func (s *Store) GetSidecar(ctx context.Context, key string) (*Sidecar, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_sidecar", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var sc Sidecar
	var rating, tags sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT key, rating, manual_tags FROM sidecar WHERE key = ?", key,
	).Scan(&sc.Key, &rating, &tags)
	if err == sql.ErrNoRows {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sc.Rating = rating.String
	sc.ManualTags = tags.String
	return &sc, nil
}

// SetSidecar upserts sidecar metadata for key.
func (s *Store) SetSidecar(ctx context.Context, sc *Sidecar) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_sidecar", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sidecar (key, rating, manual_tags, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			rating = excluded.rating,
			manual_tags = excluded.manual_tags,
			updated_at = excluded.updated_at
	`, sc.Key, sc.Rating, sc.ManualTags)
	return err
}

// DeleteSidecar removes the sidecar metadata for key.
func (s *Store) DeleteSidecar(ctx context.Context, key string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_sidecar", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "DELETE FROM sidecar WHERE key = ?", key)
	return err
}
