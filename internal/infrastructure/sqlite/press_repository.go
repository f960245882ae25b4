package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/stats"
)

// pressRepository implements stats.Repository.
type pressRepository struct {
	db *sql.DB
}

var _ stats.Repository = (*pressRepository)(nil)

// pressRow is a key_presses row; pressed_at is Unix milliseconds.
type pressRow struct {
	Profile   string
	Key       string
	Sound     string
	Fallback  bool
	PressedAt int64
}

func toRow(p stats.Press) pressRow {
	return pressRow{
		Profile:   p.Profile,
		Key:       p.Key.String(),
		Sound:     p.Sound,
		Fallback:  p.Fallback,
		PressedAt: p.At.UnixMilli(),
	}
}

// Record inserts presses in one transaction.
func (r *pressRepository) Record(ctx context.Context, presses ...stats.Press) (err error) {
	if len(presses) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO key_presses (profile, key_name, sound, fallback, pressed_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range presses {
		row := toRow(p)
		if _, err = stmt.ExecContext(ctx, row.Profile, row.Key, row.Sound, row.Fallback, row.PressedAt); err != nil {
			return fmt.Errorf("failed to insert key press: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit key presses: %w", err)
	}
	return nil
}

// TopKeys returns the most pressed keys, most frequent first, ties by name.
func (r *pressRepository) TopKeys(ctx context.Context, profile string, limit int) ([]stats.KeyCount, error) {
	if limit <= 0 {
		return nil, &stats.InvalidLimitError{Limit: limit}
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT key_name, count(*) AS n
		 FROM key_presses
		 WHERE ? = '' OR profile = ?
		 GROUP BY key_name
		 ORDER BY n DESC, key_name ASC
		 LIMIT ?`,
		profile, profile, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []stats.KeyCount
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan top keys: %w", err)
		}
		k, _ := keys.Parse(name)
		out = append(out, stats.KeyCount{Key: k, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top keys: %w", err)
	}
	return out, nil
}

// Total counts presses for profile.
func (r *pressRepository) Total(ctx context.Context, profile string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM key_presses WHERE ? = '' OR profile = ?`,
		profile, profile,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count key presses: %w", err)
	}
	return n, nil
}

// Profiles lists every profile with recorded presses, busiest first.
func (r *pressRepository) Profiles(ctx context.Context) ([]stats.ProfileCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT profile, count(*) AS n, max(pressed_at)
		 FROM key_presses
		 GROUP BY profile
		 ORDER BY n DESC, profile ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []stats.ProfileCount
	for rows.Next() {
		var (
			pc   stats.ProfileCount
			last int64
		)
		if err := rows.Scan(&pc.Profile, &pc.Count, &last); err != nil {
			return nil, fmt.Errorf("failed to scan profiles: %w", err)
		}
		pc.Last = time.UnixMilli(last)
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return out, nil
}

// Reset deletes presses for profile and returns how many were removed.
func (r *pressRepository) Reset(ctx context.Context, profile string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM key_presses WHERE ? = '' OR profile = ?`,
		profile, profile,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset key presses: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
