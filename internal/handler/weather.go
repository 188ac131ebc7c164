package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// WeatherHandler parses 中国气象局 weather alarms from FAN Studio. The relay
// replays recent alarms after every reconnect, so a short ring of processed
// ids absorbs the replays before they reach the pipeline.
type WeatherHandler struct {
	log        *slog.Logger
	heartbeats *heartbeatGate
	warnings   *warnLimiter

	mu     sync.Mutex
	recent []string // newest last, capped at recentWeatherIDs
}

const recentWeatherIDs = 10

func NewWeatherHandler(log *slog.Logger) *WeatherHandler {
	return &WeatherHandler{
		log:        log,
		heartbeats: newHeartbeatGate(time.Now),
		warnings:   newWarnLimiter(time.Now),
	}
}

func (h *WeatherHandler) SourceID() string { return "china_weather_fanstudio" }

type weatherAlarm struct {
	ID          flexString `json:"id"`
	Headline    string     `json:"headline"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Effective   string     `json:"effective"`
	Latitude    flexFloat  `json:"latitude"`
	Longitude   flexFloat  `json:"longitude"`
}

func (h *WeatherHandler) Parse(raw []byte) (*models.Event, error) {
	payload := unwrapEnvelope(raw)
	if !hasKey(payload, "headline") && !hasKey(payload, "description") {
		return nil, nil
	}

	var alarm weatherAlarm
	if err := json.Unmarshal(payload, &alarm); err != nil {
		return nil, fmt.Errorf("weather payload: %w", err)
	}

	if h.heartbeats.shouldInspect() && mostlyEmpty(alarm.Headline, alarm.Description) {
		return nil, nil
	}

	id := alarm.ID.String()
	if id != "" && h.alreadySeen(id) {
		h.log.Debug("dropping replayed weather alarm", "id", id)
		return nil, nil
	}

	if alarm.Headline == "" && alarm.Title == "" && alarm.Description == "" {
		if h.warnings.allow("empty_alarm", "weather alarm without text") {
			h.log.Debug("weather alarm without text, skipping")
		}
		return nil, nil
	}

	occurred := issueTimeFromID(id)
	if occurred == nil {
		occurred = parseTime(alarm.Effective)
	}

	if id != "" {
		h.remember(id)
	}

	return &models.Event{
		ID:         id,
		EventID:    id,
		SourceID:   h.SourceID(),
		Category:   models.CategoryWeather,
		OccurredAt: occurred,
		Latitude:   alarm.Latitude.or(0),
		Longitude:  alarm.Longitude.or(0),
		Headline:   alarm.Headline,
		PlaceName:  alarm.Title,
		Extras: map[string]any{
			"description": alarm.Description,
			"alarmType":   alarm.Type,
		},
		SequenceNumber: 1,
		ReceivedAt:     time.Now(),
	}, nil
}

func (h *WeatherHandler) alreadySeen(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, seen := range h.recent {
		if seen == id {
			return true
		}
	}
	return false
}

func (h *WeatherHandler) remember(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, id)
	if len(h.recent) > recentWeatherIDs {
		h.recent = h.recent[len(h.recent)-recentWeatherIDs:]
	}
}

// issueTimeFromID digs the issue timestamp out of alarm ids shaped like
// "23010041600000_20260826093000". Falls back to nil when the suffix is not
// a timestamp.
func issueTimeFromID(id string) *time.Time {
	idx := strings.LastIndexByte(id, '_')
	if idx < 0 {
		return nil
	}
	suffix := id[idx+1:]
	if len(suffix) >= 14 {
		if t, err := time.ParseInLocation("20060102150405", suffix[:14], time.UTC); err == nil {
			return &t
		}
	}
	if len(suffix) >= 12 {
		if t, err := time.ParseInLocation("200601021504", suffix[:12], time.UTC); err == nil {
			return &t
		}
	}
	return nil
}
