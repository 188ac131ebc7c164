package repository

import (
	"context"
	"time"
)

// Filter narrows ListEvents queries. Nil fields are ignored.
type Filter struct {
	Limit        int
	Offset       int
	Since        *time.Time
	SourceID     *string
	Category     *string
	MinMagnitude *float64
}

// StoredEvent is the persisted projection of a normalized event, flattened
// for querying. Extras are dropped on write; the push message already
// rendered them.
type StoredEvent struct {
	ID         string
	EventID    string
	SourceID   string
	Category   string
	OccurredAt *time.Time
	Latitude   float64
	Longitude  float64
	DepthKm    *float64
	Magnitude  *float64
	Intensity  *float64
	Scale      *float64
	PlaceName  string
	Headline   string
	Level      string
	Sequence   int
	IsFinal    bool
	CreatedAt  time.Time
}

type EventRepository interface {
	ListEvents(ctx context.Context, opts Filter) ([]StoredEvent, error)
	CountEvents(ctx context.Context) (int64, error)
}
