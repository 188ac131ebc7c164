// Package api serves the HTTP surface: event queries as GeoJSON, feed
// connection status, a live event stream and Prometheus metrics.
package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kx501/go-disaster-warning/internal/ingest"
	"github.com/Kx501/go-disaster-warning/internal/models"
	"github.com/Kx501/go-disaster-warning/internal/push"
	"github.com/Kx501/go-disaster-warning/internal/repository"
)

// FeedStatus exposes the ingest manager's connection snapshots.
type FeedStatus interface {
	Status() []ingest.Snapshot
}

// DedupStatus exposes the deduplicator's live entry count.
type DedupStatus interface {
	Size() int
}

type Handler struct {
	repo        repository.EventRepository
	feeds       FeedStatus
	dedup       DedupStatus
	broadcaster *push.Broadcaster
	metrics     http.Handler
}

func NewHandler(repo repository.EventRepository, feeds FeedStatus, dedup DedupStatus, broadcaster *push.Broadcaster, metrics http.Handler) *Handler {
	return &Handler{
		repo:        repo,
		feeds:       feeds,
		dedup:       dedup,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/events", h.getEvents)
	r.GET("/api/status", h.getStatus)
	r.GET("/api/stream", h.stream)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getEvents(c *gin.Context) {
	filter := repository.Filter{
		Limit: 20, // Default to 20 events if limit param not supplied
	}

	if s := c.Query("source"); s != "" {
		filter.SourceID = &s
	}
	if cat := c.Query("category"); cat != "" {
		filter.Category = &cat
	}
	if m := c.Query("min_magnitude"); m != "" {
		if mag, err := strconv.ParseFloat(m, 64); err == nil {
			filter.MinMagnitude = &mag
		}
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}

	events, err := h.repo.ListEvents(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch events",
		})
		return
	}

	fc := toGeoJSON(events)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getStatus(c *gin.Context) {
	total, err := h.repo.CountEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to count events",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connections":   h.feeds.Status(),
		"dedup_entries": h.dedup.Size(),
		"events_stored": total,
		"subscribers":   h.broadcaster.SubscriberCount(),
	})
}

// stream sends each accepted event as a server-sent event until the client
// disconnects or the broadcaster shuts down.
func (h *Handler) stream(c *gin.Context) {
	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("event", eventJSON(ev))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func eventJSON(ev *models.Event) gin.H {
	out := gin.H{
		"event_id":  ev.EventID,
		"source":    ev.SourceID,
		"category":  string(ev.Category),
		"latitude":  ev.Latitude,
		"longitude": ev.Longitude,
		"place":     ev.PlaceName,
		"sequence":  ev.SequenceNumber,
		"final":     ev.IsFinal,
	}
	if ev.OccurredAt != nil {
		out["occurred_at"] = ev.OccurredAt
	}
	if ev.Magnitude != nil {
		out["magnitude"] = *ev.Magnitude
	}
	if ev.Intensity != nil {
		out["intensity"] = *ev.Intensity
	}
	if ev.Scale != nil {
		out["scale"] = *ev.Scale
	}
	if ev.Headline != "" {
		out["headline"] = ev.Headline
	}
	if ev.Level != "" {
		out["level"] = ev.Level
	}
	return out
}
