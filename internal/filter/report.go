// Package filter decides which normalized events are worth forwarding:
// report-count gating for chatty warning feeds, severity thresholds per
// agency, a place-keyword allow-list for quakes, colour and province rules
// for weather alarms, and an optional observer-local intensity check.
package filter

import (
	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

// ReportGate throttles sources that emit a numbered report series for a
// single earthquake by letting through the first report, every Nth
// report, and (optionally) every final report.
type ReportGate struct {
	divisors        map[models.AgencyClass]int
	finalAlwaysPush bool
	ignoreNonFinal  bool
}

func NewReportGate(cfg config.ReportConfig) *ReportGate {
	return &ReportGate{
		divisors: map[models.AgencyClass]int{
			models.AgencyCEACWA:      cfg.CEACWAReportN,
			models.AgencyJMA:         cfg.JMAReportN,
			models.AgencyGlobalQuake: cfg.GlobalQuakeReportN,
		},
		finalAlwaysPush: cfg.FinalAlwaysForward,
		ignoreNonFinal:  cfg.IgnoreNonFinalReports,
	}
}

// Allow reports whether the event's report number clears the gate.
// Sources without report control always pass.
func (g *ReportGate) Allow(spec models.SourceSpec, ev *models.Event) bool {
	if !spec.NeedsReportControl {
		return true
	}

	isFinal := ev.IsFinal && spec.SupportsFinal

	if isFinal && g.finalAlwaysPush {
		return true
	}
	if ev.SequenceNumber == 1 {
		return true
	}
	if g.ignoreNonFinal && !isFinal {
		return false
	}

	n := g.divisors[spec.Agency]
	if n <= 0 {
		n = 1
	}
	return ev.SequenceNumber%n == 0
}
