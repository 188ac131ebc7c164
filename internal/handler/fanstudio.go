package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// FAN Studio multiplexes every agency over one connection and wraps each
// payload in an envelope whose data key is spelled "Data" or "data"
// depending on the agency. unwrapEnvelope returns the inner payload, or the
// frame itself when no envelope is present.
func unwrapEnvelope(raw []byte) json.RawMessage {
	var env struct {
		Upper json.RawMessage `json:"Data"`
		Lower json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if isPresent(env.Upper) {
		return env.Upper
	}
	if isPresent(env.Lower) {
		return env.Lower
	}
	return raw
}

func isPresent(m json.RawMessage) bool {
	return len(m) > 0 && !bytes.Equal(m, []byte("null")) && !bytes.Equal(m, []byte("{}"))
}

// hasKey probes the payload for a discriminator field. FAN Studio frames
// carry no type tag, so each handler recognizes its own payloads by the
// fields only its agency sends.
func hasKey(raw json.RawMessage, key string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	_, ok := probe[key]
	return ok
}

// fanStudioQuake is the quake payload shared by the CEA, CWA, JMA, CENC and
// USGS streams; each stream fills a different subset of it.
type fanStudioQuake struct {
	ID           flexString `json:"id"`
	EventID      flexString `json:"eventId"`
	ShockTime    string     `json:"shockTime"`
	CreateTime   string     `json:"createTime"`
	UpdateTime   string     `json:"updateTime"`
	Latitude     flexFloat  `json:"latitude"`
	Longitude    flexFloat  `json:"longitude"`
	Depth        flexFloat  `json:"depth"`
	Magnitude    flexFloat  `json:"magnitude"`
	EpiIntensity flexFloat  `json:"epiIntensity"`
	MaxIntensity flexFloat  `json:"maxIntensity"`
	PlaceName    string     `json:"placeName"`
	Updates      int        `json:"updates"`
	IsFinal      bool       `json:"isFinal"`
	Final        bool       `json:"final"`
	Cancel       bool       `json:"cancel"`
	InfoTypeName string     `json:"infoTypeName"`
}

func (q *fanStudioQuake) sequence() int {
	if q.Updates <= 0 {
		return 1
	}
	return q.Updates
}

// CEAWarningHandler parses 中国地震预警网 early warnings from FAN Studio.
type CEAWarningHandler struct {
	log *slog.Logger
}

func NewCEAWarningHandler(log *slog.Logger) *CEAWarningHandler {
	return &CEAWarningHandler{log: log}
}

func (h *CEAWarningHandler) SourceID() string { return "cea_fanstudio" }

func (h *CEAWarningHandler) Parse(raw []byte) (*models.Event, error) {
	payload := unwrapEnvelope(raw)
	if !hasKey(payload, "epiIntensity") {
		return nil, nil
	}

	var q fanStudioQuake
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("cea payload: %w", err)
	}

	return &models.Event{
		ID:             q.ID.String(),
		EventID:        q.EventID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeWarning,
		OccurredAt:     parseTime(q.ShockTime),
		Latitude:       q.Latitude.or(0),
		Longitude:      q.Longitude.or(0),
		DepthKm:        q.Depth.ptr(),
		Magnitude:      q.Magnitude.ptr(),
		Intensity:      q.EpiIntensity.ptr(),
		PlaceName:      q.PlaceName,
		SequenceNumber: q.sequence(),
		IsFinal:        q.IsFinal,
		ReceivedAt:     time.Now(),
	}, nil
}

// CWAWarningHandler parses Taiwan CWA early warnings from FAN Studio. The
// stream reports a stepped intensity grade rather than the continuous CEA
// value, carried numerically in maxIntensity.
type CWAWarningHandler struct {
	log *slog.Logger
}

func NewCWAWarningHandler(log *slog.Logger) *CWAWarningHandler {
	return &CWAWarningHandler{log: log}
}

func (h *CWAWarningHandler) SourceID() string { return "cwa_fanstudio" }

func (h *CWAWarningHandler) Parse(raw []byte) (*models.Event, error) {
	payload := unwrapEnvelope(raw)
	if !hasKey(payload, "maxIntensity") || !hasKey(payload, "createTime") {
		return nil, nil
	}

	var q fanStudioQuake
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("cwa payload: %w", err)
	}

	return &models.Event{
		ID:             q.ID.String(),
		EventID:        q.EventID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeWarning,
		OccurredAt:     parseTime(q.ShockTime),
		Latitude:       q.Latitude.or(0),
		Longitude:      q.Longitude.or(0),
		DepthKm:        q.Depth.ptr(),
		Magnitude:      q.Magnitude.ptr(),
		Scale:          q.MaxIntensity.ptr(),
		PlaceName:      q.PlaceName,
		SequenceNumber: q.sequence(),
		IsFinal:        q.IsFinal,
		ReceivedAt:     time.Now(),
	}, nil
}

// JMAWarningHandler parses JMA emergency warnings from FAN Studio.
// Cancellation bulletins flow through marked cancelled so subscribers who
// saw the warning see it withdrawn.
type JMAWarningHandler struct {
	log *slog.Logger
}

func NewJMAWarningHandler(log *slog.Logger) *JMAWarningHandler {
	return &JMAWarningHandler{log: log}
}

func (h *JMAWarningHandler) SourceID() string { return "jma_fanstudio" }

func (h *JMAWarningHandler) Parse(raw []byte) (*models.Event, error) {
	payload := unwrapEnvelope(raw)
	if !hasKey(payload, "epiIntensity") && !hasKey(payload, "infoTypeName") {
		return nil, nil
	}

	var q fanStudioQuake
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("jma payload: %w", err)
	}

	if q.Cancel {
		h.log.Info("warning cancelled", "source", h.SourceID(), "id", q.ID.String())
	}

	return &models.Event{
		ID:             q.ID.String(),
		EventID:        q.ID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeWarning,
		OccurredAt:     parseTime(q.ShockTime),
		Latitude:       q.Latitude.or(0),
		Longitude:      q.Longitude.or(0),
		DepthKm:        q.Depth.ptr(),
		Magnitude:      q.Magnitude.ptr(),
		Scale:          q.EpiIntensity.ptr(),
		PlaceName:      q.PlaceName,
		SequenceNumber: q.sequence(),
		IsFinal:        q.Final,
		IsCancelled:    q.Cancel,
		InfoType:       q.InfoTypeName,
		ReceivedAt:     time.Now(),
	}, nil
}

// CENCInfoHandler parses measured quake determinations from 中国地震台网.
// Magnitude and depth are rounded to one decimal for display.
type CENCInfoHandler struct {
	log *slog.Logger
}

func NewCENCInfoHandler(log *slog.Logger) *CENCInfoHandler {
	return &CENCInfoHandler{log: log}
}

func (h *CENCInfoHandler) SourceID() string { return "cenc_fanstudio" }

func (h *CENCInfoHandler) Parse(raw []byte) (*models.Event, error) {
	payload := unwrapEnvelope(raw)
	if !hasKey(payload, "infoTypeName") || !hasKey(payload, "eventId") {
		return nil, nil
	}

	var q fanStudioQuake
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("cenc payload: %w", err)
	}

	return &models.Event{
		ID:             q.ID.String(),
		EventID:        q.EventID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeInfo,
		OccurredAt:     parseTime(q.ShockTime),
		Latitude:       q.Latitude.or(0),
		Longitude:      q.Longitude.or(0),
		DepthKm:        q.Depth.rounded(),
		Magnitude:      q.Magnitude.rounded(),
		PlaceName:      q.PlaceName,
		SequenceNumber: 1,
		InfoType:       q.InfoTypeName,
		ReceivedAt:     time.Now(),
	}, nil
}

// USGSInfoHandler parses USGS quake reports relayed through FAN Studio.
// The relay is sloppy about field casing and interleaves keep-alive frames,
// so fields fall back to their capitalized spelling and obviously empty
// payloads are silently discarded.
type USGSInfoHandler struct {
	log        *slog.Logger
	heartbeats *heartbeatGate
	warnings   *warnLimiter
}

func NewUSGSInfoHandler(log *slog.Logger) *USGSInfoHandler {
	return &USGSInfoHandler{
		log:        log,
		heartbeats: newHeartbeatGate(time.Now),
		warnings:   newWarnLimiter(time.Now),
	}
}

func (h *USGSInfoHandler) SourceID() string { return "usgs_fanstudio" }

func (h *USGSInfoHandler) Parse(raw []byte) (*models.Event, error) {
	payload := unwrapEnvelope(raw)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("usgs payload: %w", err)
	}

	id := fieldString(probe, "id")
	placeName := fieldString(probe, "placeName")
	magnitude := fieldFloat(probe, "magnitude")
	latitude := fieldFloat(probe, "latitude")
	longitude := fieldFloat(probe, "longitude")

	magnitudeMark := ""
	if magnitude.ok {
		magnitudeMark = "set"
	}
	if h.heartbeats.shouldInspect() && mostlyEmpty(id, magnitudeMark, placeName) {
		return nil, nil
	}

	if id == "" {
		if h.warnings.allow("missing_id", "usgs report without id") {
			h.log.Warn("usgs report without id, skipping")
		}
		return nil, nil
	}
	if latitude.or(0) == 0 && longitude.or(0) == 0 {
		return nil, nil
	}
	if placeName == "" && !magnitude.ok {
		if h.warnings.allow("missing_content", "usgs report without place or magnitude") {
			h.log.Warn("usgs report without place or magnitude, skipping")
		}
		return nil, nil
	}

	return &models.Event{
		ID:             id,
		EventID:        id,
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeInfo,
		OccurredAt:     parseTime(fieldString(probe, "shockTime")),
		Latitude:       latitude.or(0),
		Longitude:      longitude.or(0),
		DepthKm:        fieldFloat(probe, "depth").rounded(),
		Magnitude:      magnitude.rounded(),
		PlaceName:      placeName,
		SequenceNumber: 1,
		InfoType:       fieldString(probe, "infoTypeName"),
		ReceivedAt:     time.Now(),
	}, nil
}

// fieldString reads a string value tolerating the relay's inconsistent
// casing: "placeName" one day, "PlaceName" the next.
func fieldString(probe map[string]json.RawMessage, name string) string {
	for _, key := range []string{name, capitalize(name)} {
		if raw, ok := probe[key]; ok {
			var s flexString
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s.String()
			}
		}
	}
	return ""
}

func fieldFloat(probe map[string]json.RawMessage, name string) flexFloat {
	for _, key := range []string{name, capitalize(name)} {
		if raw, ok := probe[key]; ok {
			var f flexFloat
			if err := json.Unmarshal(raw, &f); err == nil && f.ok {
				return f
			}
		}
	}
	return flexFloat{}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
