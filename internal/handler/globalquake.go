package handler

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/models"
)

// GlobalQuakeHandler parses the crowd-sensed Global Quake feed. Frames are
// flat JSON; anything that is not JSON is a status line and is dropped.
type GlobalQuakeHandler struct {
	log *slog.Logger
}

func NewGlobalQuakeHandler(log *slog.Logger) *GlobalQuakeHandler {
	return &GlobalQuakeHandler{log: log}
}

func (h *GlobalQuakeHandler) SourceID() string { return "global_quake" }

type globalQuakeFrame struct {
	ID        flexString `json:"id"`
	EventID   flexString `json:"event_id"`
	Time      string     `json:"time"`
	Latitude  flexFloat  `json:"latitude"`
	Longitude flexFloat  `json:"longitude"`
	Depth     flexFloat  `json:"depth"`
	Magnitude flexFloat  `json:"magnitude"`
	Intensity flexFloat  `json:"intensity"`
	Location  string     `json:"location"`
	Revision  flexFloat  `json:"revision"`
}

func (h *GlobalQuakeHandler) Parse(raw []byte) (*models.Event, error) {
	var frame globalQuakeFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.log.Debug("non-json frame", "source", h.SourceID())
		return nil, nil
	}

	sequence := int(frame.Revision.or(1))
	if sequence < 1 {
		sequence = 1
	}

	eventID := frame.EventID.String()
	if eventID == "" {
		eventID = frame.ID.String()
	}

	return &models.Event{
		ID:             frame.ID.String(),
		EventID:        eventID,
		SourceID:       h.SourceID(),
		Category:       models.CategoryQuakeWarning,
		OccurredAt:     parseTime(frame.Time),
		Latitude:       frame.Latitude.or(0),
		Longitude:      frame.Longitude.or(0),
		DepthKm:        frame.Depth.ptr(),
		Magnitude:      frame.Magnitude.ptr(),
		Intensity:      frame.Intensity.ptr(),
		PlaceName:      frame.Location,
		SequenceNumber: sequence,
		ReceivedAt:     time.Now(),
	}, nil
}
