package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// FrameParser turns one raw frame into zero or more normalized events.
// Leaf handlers parse a single payload shape; connections carrying several
// agencies wrap their handlers in a router or a sequence.
type FrameParser interface {
	Parse(raw []byte) ([]*models.Event, error)
}

// Single adapts one leaf handler to the frame parser contract.
func Single(h Handler) FrameParser { return single{h} }

type single struct{ h Handler }

func (s single) Parse(raw []byte) ([]*models.Event, error) {
	ev, err := s.h.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.h.SourceID(), err)
	}
	if ev == nil {
		return nil, nil
	}
	return []*models.Event{ev}, nil
}

// Sequence offers the frame to each handler in order and stops at the
// first one that claims it. Suits connections like P2P where a frame code
// makes the handlers mutually exclusive.
func Sequence(handlers ...Handler) FrameParser { return sequence(handlers) }

type sequence []Handler

func (seq sequence) Parse(raw []byte) ([]*models.Event, error) {
	var errs []error
	for _, h := range seq {
		ev, err := h.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.SourceID(), err))
			continue
		}
		if ev != nil {
			return []*models.Event{ev}, nil
		}
	}
	return nil, errors.Join(errs...)
}

// FanStudioRouter dispatches frames from the multiplexed FAN Studio
// connection to exactly one agency handler. Frames tagged type:"update"
// route by their source field, initial_all snapshots carry one payload per
// source tag at the top level, and legacy untagged frames fall back to
// field-shape detection.
type FanStudioRouter struct {
	log    *slog.Logger
	order  []string
	routes map[string]Handler
}

func NewFanStudioRouter(log *slog.Logger) *FanStudioRouter {
	return &FanStudioRouter{
		log:   log,
		order: []string{"weatheralarm", "tsunami", "cenc", "cea", "jma", "cwa", "usgs"},
		routes: map[string]Handler{
			"weatheralarm": NewWeatherHandler(log),
			"tsunami":      NewChinaTsunamiHandler(log),
			"cenc":         NewCENCInfoHandler(log),
			"cea":          NewCEAWarningHandler(log),
			"jma":          NewJMAWarningHandler(log),
			"cwa":          NewCWAWarningHandler(log),
			"usgs":         NewUSGSInfoHandler(log),
		},
	}
}

func (r *FanStudioRouter) Parse(raw []byte) ([]*models.Event, error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("fanstudio frame: %w", err)
	}

	if jsonString(frame["type"]) == "initial_all" {
		return r.parseSnapshot(frame)
	}

	// A tagged frame routes by its source field alone. An unknown tag is a
	// source we do not carry, not a detection candidate.
	if _, tagged := frame["source"]; tagged {
		tag := jsonString(frame["source"])
		if h, ok := r.routes[tag]; ok {
			return r.run(h, raw)
		}
		r.log.Debug("frame from unrouted source", "source", tag)
		return nil, nil
	}

	payload := unwrapDeep(raw)
	tag := detectSource(payload)
	if tag == "" {
		return nil, nil
	}
	return r.run(r.routes[tag], payload)
}

func (r *FanStudioRouter) run(h Handler, raw []byte) ([]*models.Event, error) {
	ev, err := h.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.SourceID(), err)
	}
	if ev == nil {
		return nil, nil
	}
	return []*models.Event{ev}, nil
}

// parseSnapshot walks an initial_all frame, which carries the latest
// payload of every source keyed by its tag, and parses each one we route.
func (r *FanStudioRouter) parseSnapshot(frame map[string]json.RawMessage) ([]*models.Event, error) {
	var out []*models.Event
	var errs []error
	for _, tag := range r.order {
		payload, ok := frame[tag]
		if !ok || !isPresent(payload) {
			continue
		}
		events, err := r.run(r.routes[tag], payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, events...)
	}
	return out, errors.Join(errs...)
}

// detectSource identifies an untagged payload by the fields only one agency
// sends. The rules are checked most-specific first; a payload that matches
// none belongs to no source we carry.
func detectSource(payload json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	has := func(key string) bool {
		v, ok := fields[key]
		return ok && !bytes.Equal(v, []byte("null"))
	}

	if has("headline") && has("type") {
		return "weatheralarm"
	}
	if has("warningInfo") && has("code") {
		return "tsunami"
	}
	name := jsonString(fields["infoTypeName"])
	if strings.Contains(name, "正式测定") || strings.Contains(name, "自动测定") {
		return "cenc"
	}
	if has("infoTypeName") && has("final") && isJSONString(fields["epiIntensity"]) {
		return "jma"
	}
	if has("epiIntensity") && has("createTime") && has("shockTime") && !has("infoTypeName") {
		return "cwa"
	}
	if has("epiIntensity") && has("eventId") && has("updates") {
		return "cea"
	}
	if strings.Contains(jsonString(fields["url"]), "usgs.gov") {
		return "usgs"
	}
	return ""
}

// unwrapDeep peels nested data envelopes, which the relay stacks a few
// levels deep on replayed frames.
func unwrapDeep(raw []byte) json.RawMessage {
	payload := json.RawMessage(raw)
	for i := 0; i < 3; i++ {
		inner := unwrapEnvelope(payload)
		if bytes.Equal(inner, payload) {
			break
		}
		payload = inner
	}
	return payload
}

func jsonString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}
