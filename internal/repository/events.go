package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// RecordEvent persists one accepted event. Each accepted report gets its own
// row: replays never reach this point, so no upsert is needed.
func (s *SQLiteDB) RecordEvent(ctx context.Context, ev *models.Event) error {
	var occurredAt any
	if ev.OccurredAt != nil {
		occurredAt = ev.OccurredAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			id, event_id, source, category, occurred_at,
			latitude, longitude, depth_km, magnitude, intensity, scale,
			place_name, headline, level, sequence, is_final, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ev.EventID, ev.SourceID, string(ev.Category), occurredAt,
		ev.Latitude, ev.Longitude, nullFloat(ev.DepthKm), nullFloat(ev.Magnitude),
		nullFloat(ev.Intensity), nullFloat(ev.Scale),
		ev.PlaceName, ev.Headline, ev.Level, ev.SequenceNumber, ev.IsFinal,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting event: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListEvents(ctx context.Context, opts Filter) ([]StoredEvent, error) {
	query := `
		SELECT id, event_id, source, category, occurred_at,
			latitude, longitude, depth_km, magnitude, intensity, scale,
			place_name, headline, level, sequence, is_final, created_at
		FROM events`

	var conds []string
	var args []any
	if opts.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}
	if opts.SourceID != nil {
		conds = append(conds, "source = ?")
		args = append(args, *opts.SourceID)
	}
	if opts.Category != nil {
		conds = append(conds, "category = ?")
		args = append(args, *opts.Category)
	}
	if opts.MinMagnitude != nil {
		conds = append(conds, "magnitude >= ?")
		args = append(args, *opts.MinMagnitude)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var occurredAt sql.NullTime
		var depth, mag, inten, scale sql.NullFloat64
		if err := rows.Scan(
			&ev.ID, &ev.EventID, &ev.SourceID, &ev.Category, &occurredAt,
			&ev.Latitude, &ev.Longitude, &depth, &mag, &inten, &scale,
			&ev.PlaceName, &ev.Headline, &ev.Level, &ev.Sequence, &ev.IsFinal,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}
		if occurredAt.Valid {
			t := occurredAt.Time
			ev.OccurredAt = &t
		}
		ev.DepthKm = floatPtr(depth)
		ev.Magnitude = floatPtr(mag)
		ev.Intensity = floatPtr(inten)
		ev.Scale = floatPtr(scale)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting events: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
