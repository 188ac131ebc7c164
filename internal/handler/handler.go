// Package handler normalizes raw feed frames into the shared Event shape.
// Each upstream family speaks its own dialect: FAN Studio wraps payloads in
// an envelope, Wolfx tags frames with a type string, P2P dispatches on a
// numeric code, GlobalQuake sends flat JSON. One handler covers one source
// id; a connection carrying several kinds of data gets several handlers and
// each returns (nil, nil) for frames that are not its kind.
package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// Handler parses one source's raw frames. A (nil, nil) return means the
// frame was valid but carries nothing to forward: a heartbeat, a frame for
// a different handler on the same connection, or a cancelled bulletin.
type Handler interface {
	SourceID() string
	Parse(raw []byte) (*models.Event, error)
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006/01/02 15:04:05.999999",
	"2006/01/02 15:04",
	"2006-01-02 15:04",
}

// parseTime tries the layouts the feeds are known to use. Providers send
// naive local timestamps, so the result is pinned to UTC and the staleness
// check applies the source's offset later. Unparsable input yields nil, not
// an error; a bad timestamp must not kill the whole event.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// flexFloat decodes JSON numbers that some feeds send as strings, including
// suffixed forms like "20km". Null, empty and garbage all decode as unset.
type flexFloat struct {
	value float64
	ok    bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	f.ok = false
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(b, &unquoted); err != nil {
			return nil
		}
		s = strings.TrimSuffix(strings.TrimSpace(unquoted), "km")
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	f.value = v
	f.ok = true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.value
	return &v
}

func (f flexFloat) or(def float64) float64 {
	if !f.ok {
		return def
	}
	return f.value
}

// rounded returns a pointer to the value at one decimal place, matching the
// precision the measured-quake feeds are displayed at.
func (f flexFloat) rounded() *float64 {
	if !f.ok {
		return nil
	}
	v := math.Round(f.value*10) / 10
	return &v
}

// flexString decodes ids that arrive as either strings or numbers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) >= 2 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(bytes.TrimSpace(b))
	return nil
}

func (s flexString) String() string { return string(s) }

var shindoPattern = regexp.MustCompile(`(\d+)(弱|強)?`)

// parseShindo converts a JMA or CWA intensity grade label to its numeric
// value: "5弱" is 4.5, "5強" is 5.5, plain digits map to themselves.
func parseShindo(s string) *float64 {
	m := shindoPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	base, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	v := float64(base)
	switch m[2] {
	case "弱":
		v -= 0.5
	case "強":
		v += 0.5
	}
	return &v
}

// heartbeatGate rate-limits the cost of heartbeat inspection: a connection
// that pings every few seconds only gets fully inspected twice a minute.
type heartbeatGate struct {
	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func newHeartbeatGate(now func() time.Time) *heartbeatGate {
	return &heartbeatGate{now: now}
}

// shouldInspect reports whether a full heartbeat check is due. Frames that
// skip the check are treated as real payloads.
func (g *heartbeatGate) shouldInspect() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastCheck) < 30*time.Second {
		return false
	}
	g.lastCheck = now
	return true
}

// warnLimiter suppresses repeats of the same warning for an hour so a feed
// stuck in a bad state cannot flood the log.
type warnLimiter struct {
	mu   sync.Mutex
	seen map[string]warnEntry
	now  func() time.Time
}

type warnEntry struct {
	at      time.Time
	message string
}

func newWarnLimiter(now func() time.Time) *warnLimiter {
	return &warnLimiter{seen: make(map[string]warnEntry), now: now}
}

func (w *warnLimiter) allow(kind, message string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if e, ok := w.seen[kind]; ok && e.message == message && now.Sub(e.at) < time.Hour {
		return false
	}
	w.seen[kind] = warnEntry{at: now, message: message}
	return true
}

// logMissing emits one structured warning naming the required fields absent
// from a payload. Handlers call it and keep going; a partial bulletin still
// beats no bulletin.
func logMissing(log *slog.Logger, source string, fields map[string]bool) {
	var missing []string
	for name, present := range fields {
		if !present {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}
	log.Warn("payload missing fields", "source", source, "fields", fmt.Sprint(missing))
}

// mostlyEmpty reports whether at least half of the listed critical values
// are blank, the signature of a keep-alive frame dressed as a payload.
func mostlyEmpty(values ...string) bool {
	empty := 0
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			empty++
		}
	}
	return empty*2 >= len(values)
}
