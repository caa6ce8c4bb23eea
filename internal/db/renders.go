package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fantasim/svgpages/internal/config"
)

// Render is one page request outcome as stored in the audit log.
type Render struct {
	ID        int64
	Page      string
	Outcome   string
	ErrorKind string
	Error     string
	Duration  time.Duration
	CreatedAt string
}

// OutcomeCount is the number of renders recorded for one outcome/error kind pair.
type OutcomeCount struct {
	Outcome   string
	ErrorKind string
	Count     int64
}

// RecordRender inserts a render outcome. Outcome is derived from ErrorKind.
func (d *DB) RecordRender(ctx context.Context, r Render) error {
	outcome := config.RenderOutcomeOK
	if r.ErrorKind != "" {
		outcome = config.RenderOutcomeFail
	}

	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO renders (page, outcome, error_kind, error, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		r.Page, outcome, r.ErrorKind, r.Error, r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert render for page %q: %w", r.Page, err)
	}

	slog.Debug("render recorded", "page", r.Page, "outcome", outcome, "errorKind", r.ErrorKind)
	return nil
}

// CountRenders returns render counts grouped by outcome and error kind.
func (d *DB) CountRenders(ctx context.Context) ([]OutcomeCount, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT outcome, error_kind, COUNT(*) FROM renders
		 GROUP BY outcome, error_kind
		 ORDER BY outcome, error_kind`,
	)
	if err != nil {
		return nil, fmt.Errorf("count renders: %w", err)
	}
	defer rows.Close()

	var counts []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Outcome, &c.ErrorKind, &c.Count); err != nil {
			return nil, fmt.Errorf("scan render count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render count rows: %w", err)
	}

	return counts, nil
}

// RecentFailures returns the most recent failed renders, newest first.
func (d *DB) RecentFailures(ctx context.Context, limit int) ([]Render, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, page, outcome, error_kind, error, duration_ms, created_at FROM renders
		 WHERE outcome = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		config.RenderOutcomeFail, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent failures: %w", err)
	}
	defer rows.Close()

	var renders []Render
	for rows.Next() {
		var (
			r  Render
			ms int64
		)
		if err := rows.Scan(&r.ID, &r.Page, &r.Outcome, &r.ErrorKind, &r.Error, &ms, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan render row: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		renders = append(renders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render rows: %w", err)
	}

	return renders, nil
}
