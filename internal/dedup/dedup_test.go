package dedup

import (
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

func f64(v float64) *float64 { return &v }

func testDedup(t *testing.T) (*Deduplicator, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cfg := config.DedupConfig{
		TimeWindow:          time.Minute,
		LocationToleranceKm: 20,
		MagnitudeTolerance:  0.5,
	}
	return New(cfg, clock, slog.Default()), clock
}

func quakeEvent(source string, seq int, occurred time.Time) *models.Event {
	return &models.Event{
		SourceID:       source,
		Category:       models.CategoryQuakeWarning,
		Latitude:       30.12,
		Longitude:      103.85,
		Magnitude:      f64(5.6),
		SequenceNumber: seq,
		OccurredAt:     &occurred,
	}
}

func spec(id string) models.SourceSpec {
	return models.SourceSpec{ID: id, Category: models.CategoryQuakeWarning, Agency: models.AgencyCEACWA}
}

func TestFingerprintMergesNearbyReports(t *testing.T) {
	fp := NewFingerprinter(20, 0.5, time.Now)
	occurred := time.Date(2026, 5, 12, 14, 28, 30, 0, time.UTC)

	a := quakeEvent("cea_fanstudio", 1, occurred)
	b := quakeEvent("cea_wolfx", 1, occurred.Add(20*time.Second))
	b.Latitude = 30.15 // ~3 km away, inside the 20 km grid cell
	b.Magnitude = f64(5.4)

	if fp.Fingerprint(spec("cea_fanstudio"), a) != fp.Fingerprint(spec("cea_wolfx"), b) {
		t.Error("two agencies reporting the same quake should share a fingerprint")
	}

	far := quakeEvent("cea_wolfx", 1, occurred)
	far.Latitude = 31.5
	if fp.Fingerprint(spec("cea_fanstudio"), a) == fp.Fingerprint(spec("cea_wolfx"), far) {
		t.Error("a quake 150 km away must not share a fingerprint")
	}
}

func TestFingerprintGlobalEventID(t *testing.T) {
	fp := NewFingerprinter(20, 0.5, time.Now)
	gqSpec := models.SourceSpec{ID: "global_quake", FingerprintPrefix: "gq"}
	ev := &models.Event{EventID: "abc123", Category: models.CategoryQuakeWarning}

	if got := fp.Fingerprint(gqSpec, ev); got != "gq_abc123" {
		t.Errorf("Fingerprint = %q, want gq_abc123", got)
	}
}

func TestFingerprintMissingLocation(t *testing.T) {
	fp := NewFingerprinter(20, 0.5, time.Now)
	occurred := time.Date(2026, 5, 12, 14, 28, 0, 0, time.UTC)
	ev := &models.Event{SourceID: "cenc_wolfx", OccurredAt: &occurred, Magnitude: f64(4.2)}

	got := fp.Fingerprint(spec("cenc_wolfx"), ev)
	want := "unknown_location,4.0,202605121428"
	if got != want {
		t.Errorf("Fingerprint = %q, want %q", got, want)
	}
}

func TestShouldForwardSequenceReplay(t *testing.T) {
	d, clock := testDedup(t)
	s := spec("cea_fanstudio")
	occurred := clock.Now()

	if !d.ShouldForward(s, quakeEvent("cea_fanstudio", 1, occurred)) {
		t.Error("first report must forward")
	}
	if !d.ShouldForward(s, quakeEvent("cea_fanstudio", 2, occurred)) {
		t.Error("a new report number must forward")
	}
	if d.ShouldForward(s, quakeEvent("cea_fanstudio", 2, occurred)) {
		t.Error("a replayed report number must be suppressed")
	}
}

func TestShouldForwardSecondSource(t *testing.T) {
	d, clock := testDedup(t)
	occurred := clock.Now()

	d.ShouldForward(spec("cea_fanstudio"), quakeEvent("cea_fanstudio", 1, occurred))
	if !d.ShouldForward(spec("cea_wolfx"), quakeEvent("cea_wolfx", 1, occurred)) {
		t.Error("the first report from a second feed must forward")
	}
	if d.ShouldForward(spec("cea_wolfx"), quakeEvent("cea_wolfx", 1, occurred)) {
		t.Error("the same feed repeating itself must be suppressed")
	}
}

func TestShouldForwardFinalUpgrade(t *testing.T) {
	d, clock := testDedup(t)
	s := spec("jma_wolfx")
	occurred := clock.Now()

	d.ShouldForward(s, quakeEvent("jma_wolfx", 3, occurred))

	final := quakeEvent("jma_wolfx", 3, occurred)
	final.IsFinal = true
	if !d.ShouldForward(s, final) {
		t.Error("the final flag turning on is an upgrade")
	}
	if d.ShouldForward(s, final) {
		t.Error("repeating the final report must be suppressed")
	}
}

func TestShouldForwardInfoTypeUpgrades(t *testing.T) {
	d, clock := testDedup(t)
	occurred := clock.Now()

	auto := quakeEvent("cenc_wolfx", 1, occurred)
	auto.InfoType = "自动测定"
	d.ShouldForward(spec("cenc_wolfx"), auto)

	formal := quakeEvent("cenc_wolfx", 1, occurred)
	formal.InfoType = "正式测定"
	if !d.ShouldForward(spec("cenc_wolfx"), formal) {
		t.Error("automatic to formal determination is an upgrade")
	}

	reviewedBefore := quakeEvent("usgs_fanstudio", 1, occurred)
	reviewedBefore.InfoType = "automatic"
	d.ShouldForward(spec("usgs_fanstudio"), reviewedBefore)

	reviewed := quakeEvent("usgs_fanstudio", 1, occurred)
	reviewed.InfoType = "reviewed"
	if !d.ShouldForward(spec("usgs_fanstudio"), reviewed) {
		t.Error("automatic to reviewed is an upgrade")
	}
}

func TestShouldForwardIssueLadder(t *testing.T) {
	d, clock := testDedup(t)
	s := spec("jma_p2p_info")
	occurred := clock.Now()

	prompt := quakeEvent("jma_p2p_info", 1, occurred)
	prompt.IssueType = "ScalePrompt"
	d.ShouldForward(s, prompt)

	detail := quakeEvent("jma_p2p_info", 1, occurred)
	detail.IssueType = "DetailScale"
	if !d.ShouldForward(s, detail) {
		t.Error("moving up the bulletin ladder is an upgrade")
	}

	downgrade := quakeEvent("jma_p2p_info", 1, occurred)
	downgrade.IssueType = "ScalePrompt"
	if d.ShouldForward(s, downgrade) {
		t.Error("moving down the bulletin ladder is not an upgrade")
	}
}

func TestShouldForwardWindowLapse(t *testing.T) {
	d, clock := testDedup(t)
	s := spec("cea_fanstudio")
	occurred := clock.Now()

	ev := quakeEvent("cea_fanstudio", 1, occurred)
	d.ShouldForward(s, ev)
	if d.ShouldForward(s, quakeEvent("cea_fanstudio", 1, occurred)) {
		t.Fatal("replay inside the window must be suppressed")
	}

	clock.Advance(2 * time.Minute)
	if !d.ShouldForward(s, quakeEvent("cea_fanstudio", 1, occurred)) {
		t.Error("after the window lapses the same report starts a fresh cycle")
	}
}

func TestShouldForwardNonEarthquake(t *testing.T) {
	d, _ := testDedup(t)
	ev := &models.Event{SourceID: "china_weather_fanstudio", Category: models.CategoryWeather}
	s := models.SourceSpec{ID: "china_weather_fanstudio", Category: models.CategoryWeather}

	for i := 0; i < 3; i++ {
		if !d.ShouldForward(s, ev) {
			t.Fatal("non-earthquake events are never deduplicated")
		}
	}
}

func TestCleanup(t *testing.T) {
	d, clock := testDedup(t)
	occurred := clock.Now()

	d.ShouldForward(spec("cea_fanstudio"), quakeEvent("cea_fanstudio", 1, occurred))
	if d.Size() != 1 {
		t.Fatalf("Size = %d, want 1", d.Size())
	}

	clock.Advance(time.Minute)
	if removed := d.Cleanup(); removed != 0 {
		t.Errorf("Cleanup removed %d entries before expiry", removed)
	}

	clock.Advance(2 * time.Minute)
	if removed := d.Cleanup(); removed != 1 {
		t.Errorf("Cleanup = %d, want 1", removed)
	}
	if d.Size() != 0 {
		t.Errorf("Size after cleanup = %d, want 0", d.Size())
	}
}

func TestCleanupKeepsEntriesSeenAgain(t *testing.T) {
	d, clock := testDedup(t)
	occurred := clock.Now()

	d.ShouldForward(spec("cea_fanstudio"), quakeEvent("cea_fanstudio", 1, occurred))
	d.ShouldForward(spec("jma_wolfx"), quakeEvent("jma_wolfx", 1, occurred.Add(time.Hour)))

	// A replay refreshes lastSeen, so an active quake survives a sweep
	// that removes its silent neighbor.
	clock.Advance(90 * time.Second)
	d.ShouldForward(spec("jma_wolfx"), quakeEvent("jma_wolfx", 1, occurred.Add(time.Hour)))

	clock.Advance(time.Minute)
	if removed := d.Cleanup(); removed != 1 {
		t.Errorf("Cleanup = %d, want 1 (only the silent fingerprint)", removed)
	}
	if d.Size() != 1 {
		t.Errorf("Size after cleanup = %d, want 1", d.Size())
	}
}
