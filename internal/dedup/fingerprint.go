// Package dedup collapses the same physical earthquake arriving from
// multiple feeds into one logical stream. Events are keyed by a quantized
// fingerprint of location, magnitude and origin minute, and repeat arrivals
// only pass when they carry genuinely new information.
package dedup

import (
	"fmt"
	"math"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// Fingerprinter builds the cross-source identity key for earthquake events.
// Two reports of one quake from different agencies differ slightly in every
// field, so coordinates snap to a grid sized by the location tolerance,
// magnitude snaps to its tolerance step, and time truncates to the minute.
type Fingerprinter struct {
	locationToleranceKm float64
	magnitudeTolerance  float64
	now                 func() time.Time
}

func NewFingerprinter(locationToleranceKm, magnitudeTolerance float64, now func() time.Time) *Fingerprinter {
	return &Fingerprinter{
		locationToleranceKm: locationToleranceKm,
		magnitudeTolerance:  magnitudeTolerance,
		now:                 now,
	}
}

// Fingerprint returns the dedup key for ev. Sources with a stable global
// event id (GlobalQuake) key on that id directly; everything else uses the
// quantized tuple.
func (f *Fingerprinter) Fingerprint(spec models.SourceSpec, ev *models.Event) string {
	if spec.FingerprintPrefix != "" && ev.EventID != "" {
		return spec.FingerprintPrefix + "_" + ev.EventID
	}

	location := "unknown_location"
	if ev.HasCoordinates() {
		// Grid cells of roughly locationToleranceKm: one degree of
		// latitude is ~111 km.
		cells := 111.0 / f.locationToleranceKm
		latGrid := math.Round(ev.Latitude*cells) / cells
		lonGrid := math.Round(ev.Longitude*cells) / cells
		location = fmt.Sprintf("%.3f,%.3f", latGrid, lonGrid)
	}

	magnitude := "0.0"
	if ev.Magnitude != nil {
		step := f.magnitudeTolerance
		magnitude = fmt.Sprintf("%.1f", math.Round(*ev.Magnitude/step)*step)
	}

	// A missing origin time falls back to receipt time; within one dedup
	// window that lands in the same minute bucket nearly always.
	t := f.now()
	if ev.OccurredAt != nil {
		t = *ev.OccurredAt
	}
	minute := t.Format("200601021504")

	return location + "," + magnitude + "," + minute
}
