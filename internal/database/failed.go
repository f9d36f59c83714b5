package database

import (
	"context"
	"database/sql"
	"time"
)

const (
	// MaxRetries marks a key permanently failed once reached.
	MaxRetries = 3
	// RetryCooldown gates retries of non-permanent failures.
	RetryCooldown = time.Hour
)

// Failure is one recorded generation failure.
type Failure struct {
	Key          string
	Reason       string
	RetryCount   int
	LastAttempt  time.Time
	ErrorMessage string
}

// Permanent reports whether the retry budget is exhausted. Permanent
// failures are skipped until explicitly cleared.
func (f *Failure) Permanent() bool {
	return f.RetryCount >= MaxRetries
}

// InCooldown reports whether the failure is still inside the retry
// cooldown window.
func (f *Failure) InCooldown(now time.Time) bool {
	return now.Sub(f.LastAttempt) < RetryCooldown
}

// GetFailure returns the failure record for key, or nil if none exists.
func (s *Store) GetFailure(ctx context.Context, key string) (*Failure, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_failure", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var f Failure
	var lastAttempt int64
	var errMsg sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT key, reason, retry_count, last_attempt, error_message
		FROM failed_thumbnails WHERE key = ?
	`, key).Scan(&f.Key, &f.Reason, &f.RetryCount, &lastAttempt, &errMsg)
	if err == sql.ErrNoRows {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.LastAttempt = time.Unix(lastAttempt, 0)
	f.ErrorMessage = errMsg.String
	return &f, nil
}

// MarkFailed records a failed generation attempt, incrementing the
// retry count of any existing record for the key.
func (s *Store) MarkFailed(ctx context.Context, key, reason, errorMessage string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_failed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO failed_thumbnails (key, reason, retry_count, last_attempt, error_message)
		VALUES (?, ?, 1, strftime('%s', 'now'), ?)
		ON CONFLICT(key) DO UPDATE SET
			reason = excluded.reason,
			retry_count = failed_thumbnails.retry_count + 1,
			last_attempt = excluded.last_attempt,
			error_message = excluded.error_message
	`, key, reason, errorMessage)
	return err
}

// ClearFailure removes the failure record for key, re-enabling
// generation attempts.
func (s *Store) ClearFailure(ctx context.Context, key string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_failure", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "DELETE FROM failed_thumbnails WHERE key = ?", key)
	return err
}

// CleanupFailures removes failure records whose last attempt is older
// than maxAge.
func (s *Store) CleanupFailures(ctx context.Context, maxAge time.Duration) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("cleanup_failures", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM failed_thumbnails WHERE last_attempt < ?", cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
