package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// Wolfx frames are a tagged union: every payload carries a "type" string
// and each websocket endpoint emits exactly one type plus heartbeats. A
// handler ignores frames tagged for anyone else.

type wolfxEEW struct {
	Type         string     `json:"type"`
	ID           flexString `json:"ID"`
	EventID      flexString `json:"EventID"`
	OriginTime   string     `json:"OriginTime"`
	Latitude     flexFloat  `json:"Latitude"`
	Longitude    flexFloat  `json:"Longitude"`
	Depth        flexFloat  `json:"Depth"`
	Magnitude    flexFloat  `json:"Magnitude"`
	Magunitude   flexFloat  `json:"Magunitude"` // sic: the JMA and CWA feeds misspell the key
	MaxIntensity flexString `json:"MaxIntensity"`
	HypoCenter   string     `json:"HypoCenter"`
	Hypocenter   string     `json:"Hypocenter"`
	ReportNum    flexFloat  `json:"ReportNum"`
	IsFinal      bool       `json:"isFinal"`
	IsCancel     bool       `json:"isCancel"`
}

func (w *wolfxEEW) magnitude() *float64 {
	if w.Magunitude.ok {
		return w.Magunitude.ptr()
	}
	return w.Magnitude.ptr()
}

func (w *wolfxEEW) place() string {
	if w.HypoCenter != "" {
		return w.HypoCenter
	}
	return w.Hypocenter
}

func (w *wolfxEEW) sequence() int {
	if n := int(w.ReportNum.or(0)); n > 0 {
		return n
	}
	return 1
}

// WolfxEEWHandler covers the three Wolfx early-warning endpoints. The type
// tag, the source id and the intensity interpretation vary per agency; the
// rest of the frame is identical.
type WolfxEEWHandler struct {
	log      *slog.Logger
	sourceID string
	typeTag  string
	agency   models.AgencyClass
}

func NewWolfxCENCEEWHandler(log *slog.Logger) *WolfxEEWHandler {
	return &WolfxEEWHandler{log: log, sourceID: "cea_wolfx", typeTag: "cenc_eew", agency: models.AgencyCENC}
}

func NewWolfxCWAEEWHandler(log *slog.Logger) *WolfxEEWHandler {
	return &WolfxEEWHandler{log: log, sourceID: "cwa_wolfx", typeTag: "cwa_eew", agency: models.AgencyCEACWA}
}

func NewWolfxJMAEEWHandler(log *slog.Logger) *WolfxEEWHandler {
	return &WolfxEEWHandler{log: log, sourceID: "jma_wolfx", typeTag: "jma_eew", agency: models.AgencyJMA}
}

func (h *WolfxEEWHandler) SourceID() string { return h.sourceID }

func (h *WolfxEEWHandler) Parse(raw []byte) (*models.Event, error) {
	var frame wolfxEEW
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("wolfx frame: %w", err)
	}
	if frame.Type != h.typeTag {
		return nil, nil
	}
	if frame.IsCancel {
		h.log.Info("dropping cancelled warning", "source", h.sourceID, "id", frame.ID.String())
		return nil, nil
	}

	ev := &models.Event{
		ID:             frame.ID.String(),
		EventID:        frame.EventID.String(),
		SourceID:       h.sourceID,
		Category:       models.CategoryQuakeWarning,
		OccurredAt:     parseTime(frame.OriginTime),
		Latitude:       frame.Latitude.or(0),
		Longitude:      frame.Longitude.or(0),
		DepthKm:        frame.Depth.ptr(),
		Magnitude:      frame.magnitude(),
		PlaceName:      frame.place(),
		SequenceNumber: frame.sequence(),
		IsFinal:        frame.IsFinal,
		ReceivedAt:     time.Now(),
	}
	if ev.ID == "" {
		ev.ID = ev.EventID
	}

	// CENC reports a continuous intensity; CWA and JMA report a stepped
	// grade, sometimes as a label like "5強".
	if h.agency == models.AgencyCENC {
		ev.Intensity = safeFloat(frame.MaxIntensity.String())
	} else {
		ev.Scale = parseShindo(frame.MaxIntensity.String())
	}

	return ev, nil
}

// wolfxList is the eqlist frame: numbered entries "No1".."No50" plus the
// type tag. Only the newest entry (lowest number) is forwarded.
type wolfxListEntry struct {
	MD5       string     `json:"md5"`
	Time      string     `json:"time"`
	Latitude  flexFloat  `json:"latitude"`
	Longitude flexFloat  `json:"longitude"`
	Depth     flexFloat  `json:"depth"`
	Magnitude flexFloat  `json:"magnitude"`
	Intensity flexFloat  `json:"intensity"`
	Shindo    flexString `json:"shindo"`
	Location  string     `json:"location"`
	InfoType  string     `json:"type"`
}

// WolfxListHandler covers the cenc_eqlist and jma_eqlist endpoints, which
// push the full recent-quakes table on every update.
type WolfxListHandler struct {
	log      *slog.Logger
	sourceID string
	typeTag  string
	agency   models.AgencyClass
}

func NewWolfxCENCListHandler(log *slog.Logger) *WolfxListHandler {
	return &WolfxListHandler{log: log, sourceID: "cenc_wolfx", typeTag: "cenc_eqlist", agency: models.AgencyCENC}
}

func NewWolfxJMAListHandler(log *slog.Logger) *WolfxListHandler {
	return &WolfxListHandler{log: log, sourceID: "jma_wolfx_info", typeTag: "jma_eqlist", agency: models.AgencyJMA}
}

func (h *WolfxListHandler) SourceID() string { return h.sourceID }

func (h *WolfxListHandler) Parse(raw []byte) (*models.Event, error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("wolfx list frame: %w", err)
	}

	var typeTag string
	if rawType, ok := frame["type"]; ok {
		_ = json.Unmarshal(rawType, &typeTag)
	}
	if typeTag != h.typeTag {
		return nil, nil
	}

	entry := newestListEntry(frame)
	if entry == nil {
		return nil, nil
	}

	ev := &models.Event{
		ID:             entry.MD5,
		EventID:        entry.MD5,
		SourceID:       h.sourceID,
		Category:       models.CategoryQuakeInfo,
		OccurredAt:     parseTime(entry.Time),
		Latitude:       entry.Latitude.or(0),
		Longitude:      entry.Longitude.or(0),
		DepthKm:        entry.Depth.ptr(),
		Magnitude:      entry.Magnitude.ptr(),
		PlaceName:      entry.Location,
		SequenceNumber: 1,
		InfoType:       entry.InfoType,
		ReceivedAt:     time.Now(),
	}

	if h.agency == models.AgencyCENC {
		ev.Intensity = entry.Intensity.ptr()
	} else {
		ev.Scale = parseShindo(entry.Shindo.String())
	}

	return ev, nil
}

// newestListEntry picks the lowest-numbered "No*" object from an eqlist
// frame. "No1" is the usual case; anything else falls back to key order.
func newestListEntry(frame map[string]json.RawMessage) *wolfxListEntry {
	decode := func(raw json.RawMessage) *wolfxListEntry {
		var e wolfxListEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil
		}
		return &e
	}

	if raw, ok := frame["No1"]; ok {
		if e := decode(raw); e != nil {
			return e
		}
	}

	var keys []string
	for key := range frame {
		if strings.HasPrefix(key, "No") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if e := decode(frame[key]); e != nil {
			return e
		}
	}
	return nil
}

// safeFloat parses a float out of a string that may be empty or suffixed
// with a unit, returning nil rather than an error.
func safeFloat(s string) *float64 {
	var f flexFloat
	quoted, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	if err := f.UnmarshalJSON(quoted); err != nil {
		return nil
	}
	return f.ptr()
}
