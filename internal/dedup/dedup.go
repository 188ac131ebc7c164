package dedup

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/models"
)

// jmaIssueLadder orders JMA bulletin kinds from least to most detailed. A
// repeat arrival is an upgrade only when it moves up the ladder.
var jmaIssueLadder = map[string]int{
	"ScalePrompt":         0,
	"Destination":         1,
	"ScaleAndDestination": 2,
	"DetailScale":         3,
}

// sourceState tracks what one source has already told us about one quake.
type sourceState struct {
	lastSeen  time.Time
	sequences map[int]struct{}
	isFinal   bool
	infoType  string
	issueType string
}

// Deduplicator is the cross-source gate for earthquake events. Safe for
// concurrent use by every feed connection.
type Deduplicator struct {
	mu            sync.Mutex
	clock         clockwork.Clock
	window        time.Duration
	fingerprinter *Fingerprinter
	log           *slog.Logger

	// fingerprint -> source id -> state
	entries map[string]map[string]*sourceState
}

func New(cfg config.DedupConfig, clock clockwork.Clock, log *slog.Logger) *Deduplicator {
	d := &Deduplicator{
		clock:   clock,
		window:  cfg.TimeWindow,
		log:     log,
		entries: make(map[string]map[string]*sourceState),
	}
	d.fingerprinter = NewFingerprinter(cfg.LocationToleranceKm, cfg.MagnitudeTolerance, clock.Now)
	return d
}

// ShouldForward decides whether ev carries new information. Non-earthquake
// events are never deduplicated. The decision and the bookkeeping happen
// atomically so two connections racing on the same quake cannot both pass
// an identical report.
func (d *Deduplicator) ShouldForward(spec models.SourceSpec, ev *models.Event) bool {
	if !ev.IsEarthquake() {
		return true
	}

	fp := d.fingerprinter.Fingerprint(spec, ev)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	sources, seen := d.entries[fp]
	if !seen {
		d.entries[fp] = map[string]*sourceState{ev.SourceID: newState(now, ev)}
		return true
	}

	state, seenSource := sources[ev.SourceID]
	if !seenSource {
		// Corroboration from a second feed is new information.
		sources[ev.SourceID] = newState(now, ev)
		return true
	}

	if now.Sub(state.lastSeen) > d.window {
		// The window lapsed; treat this as a fresh reporting cycle.
		sources[ev.SourceID] = newState(now, ev)
		return true
	}

	if upgrade := d.upgradeReason(state, ev); upgrade != "" {
		state.absorb(now, ev)
		d.log.Debug("forwarding updated report",
			"fingerprint", fp, "source", ev.SourceID, "upgrade", upgrade)
		return true
	}

	state.lastSeen = now
	return false
}

// upgradeReason returns a non-empty label when ev improves on what this
// source already reported inside the window.
func (d *Deduplicator) upgradeReason(state *sourceState, ev *models.Event) string {
	if _, dup := state.sequences[ev.SequenceNumber]; !dup && ev.SequenceNumber > 0 {
		return "new_sequence"
	}
	if ev.IsFinal && !state.isFinal {
		return "final"
	}
	if state.infoType == "automatic" && ev.InfoType == "reviewed" {
		return "reviewed"
	}
	if prev, ok := jmaIssueLadder[state.issueType]; ok {
		if next, ok := jmaIssueLadder[ev.IssueType]; ok && next > prev {
			return "issue_ladder"
		}
	}
	if strings.Contains(state.infoType, "自动") && strings.Contains(ev.InfoType, "正式") {
		return "formal"
	}
	return ""
}

// Cleanup drops fingerprints whose every source entry is older than twice
// the dedup window. Candidates are collected first, then deleted one lock
// acquisition at a time with a re-check, so connections calling
// ShouldForward are never blocked for the whole pass. Returns the number of
// fingerprints removed.
func (d *Deduplicator) Cleanup() int {
	cutoff := d.clock.Now().Add(-2 * d.window)

	d.mu.Lock()
	stale := make([]string, 0)
	for fp, sources := range d.entries {
		if allExpired(sources, cutoff) {
			stale = append(stale, fp)
		}
	}
	d.mu.Unlock()

	removed := 0
	for _, fp := range stale {
		d.mu.Lock()
		// A fresh report may have landed between the scan and this
		// delete; keep any entry that was seen again.
		if sources, ok := d.entries[fp]; ok && allExpired(sources, cutoff) {
			delete(d.entries, fp)
			removed++
		}
		d.mu.Unlock()
	}
	return removed
}

func allExpired(sources map[string]*sourceState, cutoff time.Time) bool {
	for _, state := range sources {
		if state.lastSeen.After(cutoff) {
			return false
		}
	}
	return true
}

// Size reports the number of tracked fingerprints, for the status endpoint.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func newState(now time.Time, ev *models.Event) *sourceState {
	s := &sourceState{
		lastSeen:  now,
		sequences: make(map[int]struct{}),
	}
	s.absorb(now, ev)
	return s
}

func (s *sourceState) absorb(now time.Time, ev *models.Event) {
	s.lastSeen = now
	s.sequences[ev.SequenceNumber] = struct{}{}
	if ev.IsFinal {
		s.isFinal = true
	}
	s.infoType = ev.InfoType
	s.issueType = ev.IssueType
}
