package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// P2P (p2pquake.net) multiplexes bulletin kinds over one connection and
// tags every frame with a numeric code: 551 quake information, 552 tsunami
// forecast, 554 EEW detection (noise, ignored), 556 EEW warning.
const (
	p2pCodeQuakeInfo    = 551
	p2pCodeTsunami      = 552
	p2pCodeEEWDetection = 554
	p2pCodeEEWWarning   = 556
)

type p2pFrame struct {
	Code      int        `json:"code"`
	ID        flexString `json:"id"`
	Time      string     `json:"time"`
	Cancelled bool       `json:"cancelled"`
	Test      bool       `json:"test"`

	Issue struct {
		EventID flexString `json:"eventId"`
		Serial  flexString `json:"serial"`
		Source  string     `json:"source"`
		Time    string     `json:"time"`
		Type    string     `json:"type"`
	} `json:"issue"`

	Earthquake struct {
		Time       string    `json:"time"`
		OriginTime string    `json:"originTime"`
		MaxScale   flexFloat `json:"maxScale"`

		Hypocenter struct {
			Name      string    `json:"name"`
			Latitude  flexFloat `json:"latitude"`
			Longitude flexFloat `json:"longitude"`
			Depth     flexFloat `json:"depth"`
			Magnitude flexFloat `json:"magnitude"`
		} `json:"hypocenter"`

		DomesticTsunami string `json:"domesticTsunami"`
	} `json:"earthquake"`

	Areas []p2pArea `json:"areas"`
}

type p2pArea struct {
	Name      string    `json:"name"`
	Grade     string    `json:"grade"`
	Immediate bool      `json:"immediate"`
	ScaleFrom flexFloat `json:"scaleFrom"`
	ScaleTo   flexFloat `json:"scaleTo"`

	FirstHeight struct {
		ArrivalTime string `json:"arrivalTime"`
		Condition   string `json:"condition"`
	} `json:"firstHeight"`

	MaxHeight struct {
		Description string    `json:"description"`
		Value       flexFloat `json:"value"`
	} `json:"maxHeight"`
}

// p2pScale converts P2P's encoded intensity to the standard grade. 45 is
// 5-lower, 46 is "at least 5-lower, detail pending", 50 is 5-upper and so
// on; -1 means no reading.
func p2pScale(raw flexFloat) *float64 {
	if !raw.ok {
		return nil
	}
	mapping := map[int]float64{
		0: 0.0, 10: 1.0, 20: 2.0, 30: 3.0, 40: 4.0,
		45: 4.5, 46: 4.6, 50: 5.0, 55: 5.5, 60: 6.0, 70: 7.0,
	}
	if v, ok := mapping[int(raw.value)]; ok {
		return &v
	}
	return nil
}

// maxScaleOf reads the frame's top intensity, falling back to the per-area
// grades when the summary field is absent.
func maxScaleOf(frame *p2pFrame) flexFloat {
	if frame.Earthquake.MaxScale.ok {
		return frame.Earthquake.MaxScale
	}
	best := flexFloat{}
	for _, area := range frame.Areas {
		scale := area.ScaleFrom
		if scale.or(0) <= 0 {
			scale = area.ScaleTo
		}
		if scale.or(0) > 0 && scale.value > best.or(0) {
			best = scale
		}
	}
	return best
}

func (f *p2pFrame) originTime() *time.Time {
	if t := parseTime(f.Earthquake.Time); t != nil {
		return t
	}
	return parseTime(f.Earthquake.OriginTime)
}

// P2PEEWHandler parses code 556 emergency warnings.
type P2PEEWHandler struct {
	log *slog.Logger
}

func NewP2PEEWHandler(log *slog.Logger) *P2PEEWHandler {
	return &P2PEEWHandler{log: log}
}

func (h *P2PEEWHandler) SourceID() string { return "jma_p2p" }

func (h *P2PEEWHandler) Parse(raw []byte) (*models.Event, error) {
	var frame p2pFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("p2p frame: %w", err)
	}
	if frame.Code != p2pCodeEEWWarning {
		return nil, nil
	}

	hypo := frame.Earthquake.Hypocenter
	logMissing(h.log, h.SourceID(), map[string]bool{
		"latitude":  hypo.Latitude.ok,
		"longitude": hypo.Longitude.ok,
		"name":      hypo.Name != "",
	})

	if frame.Test {
		h.log.Info("test-mode warning received", "id", frame.ID.String())
	}

	sequence := 1
	if n, err := strconv.Atoi(frame.Issue.Serial.String()); err == nil && n > 0 {
		sequence = n
	}

	place := hypo.Name
	if place == "" {
		place = "不明"
	}

	return &models.Event{
		ID:             frame.ID.String(),
		EventID:        frame.Issue.EventID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeWarning,
		OccurredAt:     frame.originTime(),
		Latitude:       hypo.Latitude.or(0),
		Longitude:      hypo.Longitude.or(0),
		DepthKm:        hypo.Depth.ptr(),
		Magnitude:      hypo.Magnitude.ptr(),
		Scale:          p2pScale(maxScaleOf(&frame)),
		PlaceName:      place,
		SequenceNumber: sequence,
		IsCancelled:    frame.Cancelled,
		ReceivedAt:     time.Now(),
	}, nil
}

// P2PQuakeInfoHandler parses code 551 measured quake reports. Unlike the
// warning stream these must carry a solved magnitude and epicenter, so a
// frame without them is a parse error rather than a skip.
type P2PQuakeInfoHandler struct {
	log *slog.Logger
}

func NewP2PQuakeInfoHandler(log *slog.Logger) *P2PQuakeInfoHandler {
	return &P2PQuakeInfoHandler{log: log}
}

func (h *P2PQuakeInfoHandler) SourceID() string { return "jma_p2p_info" }

func (h *P2PQuakeInfoHandler) Parse(raw []byte) (*models.Event, error) {
	var frame p2pFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("p2p frame: %w", err)
	}
	if frame.Code != p2pCodeQuakeInfo {
		return nil, nil
	}

	hypo := frame.Earthquake.Hypocenter
	if !hypo.Magnitude.ok {
		return nil, fmt.Errorf("quake info without magnitude")
	}
	if !hypo.Latitude.ok || !hypo.Longitude.ok {
		return nil, fmt.Errorf("quake info without epicenter")
	}

	place := hypo.Name
	if place == "" {
		place = "不明"
	}

	extras := map[string]any{}
	if frame.Earthquake.DomesticTsunami != "" {
		extras["domesticTsunami"] = frame.Earthquake.DomesticTsunami
	}

	return &models.Event{
		ID:             frame.ID.String(),
		EventID:        frame.ID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeInfo,
		OccurredAt:     parseTime(frame.Earthquake.Time),
		Latitude:       hypo.Latitude.value,
		Longitude:      hypo.Longitude.value,
		DepthKm:        hypo.Depth.ptr(),
		Magnitude:      hypo.Magnitude.ptr(),
		Scale:          p2pScale(frame.Earthquake.MaxScale),
		PlaceName:      place,
		SequenceNumber: 1,
		IssueType:      frame.Issue.Type,
		Extras:         extras,
		ReceivedAt:     time.Now(),
	}, nil
}

// P2PTsunamiHandler parses code 552 tsunami forecasts. A cancelled frame
// becomes an all-clear event; otherwise the worst grade across the forecast
// areas sets the level.
type P2PTsunamiHandler struct {
	log *slog.Logger
}

func NewP2PTsunamiHandler(log *slog.Logger) *P2PTsunamiHandler {
	return &P2PTsunamiHandler{log: log}
}

func (h *P2PTsunamiHandler) SourceID() string { return "jma_tsunami_p2p" }

var tsunamiGradeTitles = map[string]string{
	"MajorWarning": "大津波警報",
	"Warning":      "津波警報",
	"Watch":        "津波注意報",
	"Unknown":      "津波予報",
}

func (h *P2PTsunamiHandler) Parse(raw []byte) (*models.Event, error) {
	var frame p2pFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("p2p frame: %w", err)
	}
	if frame.Code != p2pCodeTsunami {
		return nil, nil
	}

	if frame.Cancelled {
		return &models.Event{
			ID:             frame.ID.String(),
			EventID:        frame.ID.String(),
			SourceID:       h.SourceID(),
			Category:       models.CategoryTsunami,
			OccurredAt:     parseTime(frame.Time),
			Headline:       "津波予報解除",
			Level:          "解除",
			IsCancelled:    true,
			SequenceNumber: 1,
			ReceivedAt:     time.Now(),
		}, nil
	}

	if len(frame.Areas) == 0 {
		h.log.Warn("tsunami forecast without areas", "id", frame.ID.String())
		return nil, nil
	}

	logMissing(h.log, h.SourceID(), map[string]bool{
		"issue.source": frame.Issue.Source != "",
		"issue.time":   frame.Issue.Time != "",
		"issue.type":   frame.Issue.Type != "",
	})

	grade := "Unknown"
	var forecasts []map[string]any
	for _, area := range frame.Areas {
		if area.Name == "" {
			continue
		}
		forecast := map[string]any{
			"name":      area.Name,
			"grade":     area.Grade,
			"immediate": area.Immediate,
		}
		if area.FirstHeight.ArrivalTime != "" {
			forecast["estimatedArrivalTime"] = area.FirstHeight.ArrivalTime
		}
		if area.FirstHeight.Condition != "" {
			forecast["condition"] = area.FirstHeight.Condition
		}
		if area.MaxHeight.Description != "" {
			forecast["maxWaveHeight"] = area.MaxHeight.Description
		}
		forecasts = append(forecasts, forecast)

		grade = worseTsunamiGrade(grade, area.Grade)
	}

	if len(forecasts) == 0 {
		h.log.Warn("tsunami forecast without named areas", "id", frame.ID.String())
		return nil, nil
	}

	occurred := parseTime(frame.Issue.Time)
	if occurred == nil {
		occurred = parseTime(frame.Time)
	}

	source := frame.Issue.Source
	if source == "" {
		source = "気象庁"
	}

	return &models.Event{
		ID:             frame.ID.String(),
		EventID:        frame.ID.String(),
		SourceID:       h.SourceID(),
		Category:       models.CategoryTsunami,
		OccurredAt:     occurred,
		Headline:       tsunamiGradeTitles[grade],
		Level:          grade,
		Extras:         map[string]any{"forecasts": forecasts, "orgUnit": source},
		SequenceNumber: 1,
		ReceivedAt:     time.Now(),
	}, nil
}

var tsunamiGradeRank = map[string]int{"Unknown": 0, "Watch": 1, "Warning": 2, "MajorWarning": 3}

func worseTsunamiGrade(current, candidate string) string {
	if tsunamiGradeRank[candidate] > tsunamiGradeRank[current] {
		return candidate
	}
	return current
}
