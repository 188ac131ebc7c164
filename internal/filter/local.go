package filter

import (
	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/intensity"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

// LocalObserver annotates earthquake events with the shaking expected at
// a fixed location. In strict mode it also suppresses events whose local
// estimate falls below the configured threshold.
type LocalObserver struct {
	cfg config.LocalObserverConfig
}

func NewLocalObserver(cfg config.LocalObserverConfig) *LocalObserver {
	return &LocalObserver{cfg: cfg}
}

func (o *LocalObserver) Enabled() bool {
	return o.cfg.Enabled
}

// Apply computes and attaches the local estimate to ev, returning false
// when strict mode says the event should be dropped. Events without
// coordinates cannot be estimated: strict mode drops them, otherwise they
// pass through unannotated.
func (o *LocalObserver) Apply(ev *models.Event) bool {
	if !o.cfg.Enabled || !ev.IsEarthquake() {
		return true
	}

	if !ev.HasCoordinates() {
		return !o.cfg.StrictMode
	}

	dist := intensity.HaversineKm(o.cfg.Latitude, o.cfg.Longitude, ev.Latitude, ev.Longitude)
	est := intensity.Estimate(ev.MagnitudeOrZero(), dist, ev.DepthOrDefault(10), ev.Longitude)

	ev.LocalEstimate = &models.LocalEstimate{
		DistanceKm:   dist,
		Intensity:    est,
		ObserverName: o.cfg.Name,
	}

	if o.cfg.StrictMode && est < o.cfg.Threshold {
		return false
	}
	return true
}
