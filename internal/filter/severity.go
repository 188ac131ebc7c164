package filter

import (
	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

// magnitudeUnknown marks feeds that report a placeholder magnitude on
// scale-based bulletins; it must not satisfy the magnitude branch.
const magnitudeUnknown = -1.0

// SeverityFilter holds the per-agency thresholds. Each check passes when
// ANY of its measures clears its threshold, so an event with a strong
// intensity reading but weak magnitude still goes out.
type SeverityFilter struct {
	cfg config.SeverityConfig
}

func NewSeverityFilter(cfg config.SeverityConfig) *SeverityFilter {
	return &SeverityFilter{cfg: cfg}
}

// Allow routes the event to the threshold set for its agency. A disabled
// check passes everything through.
func (f *SeverityFilter) Allow(spec models.SourceSpec, ev *models.Event) bool {
	switch spec.Agency {
	case models.AgencyGlobalQuake:
		return f.allowGlobalQuake(ev)
	case models.AgencyUSGS:
		return f.allowUSGS(ev)
	case models.AgencyJMA:
		return f.allowScale(ev)
	default:
		return f.allowIntensity(ev)
	}
}

func (f *SeverityFilter) allowIntensity(ev *models.Event) bool {
	if !f.cfg.IntensityEnabled {
		return true
	}
	if ev.Magnitude != nil && *ev.Magnitude >= f.cfg.IntensityMinMagnitude {
		return true
	}
	if ev.Intensity != nil && *ev.Intensity >= f.cfg.IntensityMinIntensity {
		return true
	}
	return false
}

func (f *SeverityFilter) allowScale(ev *models.Event) bool {
	if !f.cfg.ScaleEnabled {
		return true
	}
	if ev.Magnitude != nil && *ev.Magnitude != magnitudeUnknown && *ev.Magnitude >= f.cfg.ScaleMinMagnitude {
		return true
	}
	if ev.Scale != nil && *ev.Scale >= f.cfg.ScaleMinScale {
		return true
	}
	return false
}

func (f *SeverityFilter) allowUSGS(ev *models.Event) bool {
	if !f.cfg.USGSEnabled {
		return true
	}
	return ev.Magnitude != nil && *ev.Magnitude >= f.cfg.USGSMinMagnitude
}

func (f *SeverityFilter) allowGlobalQuake(ev *models.Event) bool {
	if !f.cfg.GQEnabled {
		return true
	}
	if ev.Magnitude != nil && *ev.Magnitude >= f.cfg.GQMinMagnitude {
		return true
	}
	if ev.Intensity != nil && *ev.Intensity >= f.cfg.GQMinIntensity {
		return true
	}
	return false
}
