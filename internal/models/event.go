package models

import "time"

type Category string

const (
	CategoryQuakeWarning Category = "quake-warning"
	CategoryQuakeInfo    Category = "quake-info"
	CategoryTsunami      Category = "tsunami"
	CategoryWeather      Category = "weather"
)

// LocalEstimate holds the observer-local intensity estimate computed by the
// locality filter. It is attached once and never mutated afterwards.
type LocalEstimate struct {
	DistanceKm   float64
	Intensity    float64
	ObserverName string
}

// Event is the normalized shape every source handler produces. Immutable once
// built: handlers construct it, downstream stages only read it (except the
// locality filter, which attaches LocalEstimate exactly once before push).
type Event struct {
	ID       string // provider-native message id
	EventID  string // cross-report correlation id, may equal ID
	SourceID string // e.g. "cea_fanstudio", "jma_p2p"
	Category Category

	// OccurredAt is nil when the provider timestamp failed to parse. The
	// pipeline must tolerate that, not crash on it.
	OccurredAt *time.Time

	Latitude  float64
	Longitude float64
	DepthKm   *float64
	Magnitude *float64

	// Exactly one of Intensity (continuous, CEA/CENC/GlobalQuake style) or
	// Scale (stepped shindo grade, JMA/CWA style) is set for quake events.
	Intensity *float64
	Scale     *float64

	SequenceNumber int // 1-based report count, defaults to 1
	IsFinal        bool
	IsCancelled    bool

	// InfoType is the provider's qualitative status label (自动测定/正式测定,
	// automatic/reviewed). IssueType is the JMA info-type ladder position.
	InfoType  string
	IssueType string

	PlaceName string
	Headline  string // weather alarms
	Level     string // tsunami grade label

	LocalEstimate *LocalEstimate

	// Extras carries provider fields with no slot in the shared shape. Read
	// by formatters, never by dedup or gating logic.
	Extras map[string]any

	ReceivedAt time.Time
}

// HasCoordinates reports whether the event carries a usable epicenter.
func (e *Event) HasCoordinates() bool {
	return e.Latitude != 0 || e.Longitude != 0
}

// IsEarthquake covers both warning and info categories; only these go through
// the deduplicator and the report gate.
func (e *Event) IsEarthquake() bool {
	return e.Category == CategoryQuakeWarning || e.Category == CategoryQuakeInfo
}

// MagnitudeOrZero is a read helper for filters that treat nil as zero.
func (e *Event) MagnitudeOrZero() float64 {
	if e.Magnitude == nil {
		return 0
	}
	return *e.Magnitude
}

func (e *Event) DepthOrDefault(def float64) float64 {
	if e.DepthKm == nil {
		return def
	}
	return *e.DepthKm
}
