package filter

import (
	"testing"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

func defaultReportConfig() config.ReportConfig {
	return config.ReportConfig{
		CEACWAReportN:      1,
		JMAReportN:         3,
		GlobalQuakeReportN: 5,
		FinalAlwaysForward: true,
	}
}

func jmaSpec() models.SourceSpec {
	return models.SourceSpec{
		ID:                 "jma_wolfx",
		Agency:             models.AgencyJMA,
		NeedsReportControl: true,
		SupportsFinal:      true,
	}
}

func TestReportGateEveryNth(t *testing.T) {
	gate := NewReportGate(defaultReportConfig())
	spec := jmaSpec()

	// First report always passes, then every third.
	want := map[int]bool{1: true, 2: false, 3: true, 4: false, 5: false, 6: true}
	for seq, expect := range want {
		ev := &models.Event{SequenceNumber: seq}
		if got := gate.Allow(spec, ev); got != expect {
			t.Errorf("Allow(seq=%d) = %v, want %v", seq, got, expect)
		}
	}
}

func TestReportGateFinalAlwaysForwards(t *testing.T) {
	gate := NewReportGate(defaultReportConfig())
	ev := &models.Event{SequenceNumber: 7, IsFinal: true}
	if !gate.Allow(jmaSpec(), ev) {
		t.Error("final report should always forward")
	}
}

func TestReportGateFinalIgnoredWhenUnsupported(t *testing.T) {
	gate := NewReportGate(defaultReportConfig())
	spec := models.SourceSpec{
		ID:                 "cea_wolfx",
		Agency:             models.AgencyCEACWA,
		NeedsReportControl: true,
		SupportsFinal:      false,
	}
	// CEA feeds never mark finals; the flag must not create a bypass,
	// but N=1 forwards everything anyway.
	ev := &models.Event{SequenceNumber: 4, IsFinal: true}
	if !gate.Allow(spec, ev) {
		t.Error("CEA with N=1 should forward every report")
	}
}

func TestReportGateIgnoreNonFinal(t *testing.T) {
	cfg := defaultReportConfig()
	cfg.IgnoreNonFinalReports = true
	gate := NewReportGate(cfg)
	spec := jmaSpec()

	if gate.Allow(spec, &models.Event{SequenceNumber: 3}) {
		t.Error("non-final report should be dropped when only finals are wanted")
	}
	if !gate.Allow(spec, &models.Event{SequenceNumber: 1}) {
		t.Error("first report should still pass")
	}
	if !gate.Allow(spec, &models.Event{SequenceNumber: 4, IsFinal: true}) {
		t.Error("final report should still pass")
	}
}

func TestReportGateZeroDivisorCoerced(t *testing.T) {
	cfg := defaultReportConfig()
	cfg.JMAReportN = 0
	gate := NewReportGate(cfg)

	if !gate.Allow(jmaSpec(), &models.Event{SequenceNumber: 2}) {
		t.Error("a zero divisor should behave like N=1")
	}
}

func TestReportGateBypassForUncontrolledSources(t *testing.T) {
	gate := NewReportGate(defaultReportConfig())
	spec := models.SourceSpec{ID: "usgs_fanstudio", Agency: models.AgencyUSGS}

	if !gate.Allow(spec, &models.Event{SequenceNumber: 17}) {
		t.Error("sources without report control must pass unchanged")
	}
}
