package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Kx501/go-disaster-warning/internal/models"
	"github.com/Kx501/go-disaster-warning/internal/observability"
	"github.com/Kx501/go-disaster-warning/internal/worker"
)

// DeliveryRecord is the persisted outcome of one delivery attempt.
type DeliveryRecord struct {
	ID          string
	EventID     string
	SourceID    string
	Destination string
	Succeeded   bool
	Error       string
	At          time.Time
}

// Recorder persists accepted events and delivery outcomes. Implemented by
// the sqlite repository; tests plug in fakes.
type Recorder interface {
	RecordEvent(ctx context.Context, ev *models.Event) error
	RecordDelivery(ctx context.Context, rec DeliveryRecord) error
}

type webhookPayload struct {
	DeliveryID string `json:"delivery_id"`
	EventID    string `json:"event_id"`
	Source     string `json:"source"`
	Text       string `json:"text"`
}

// WebhookNotifier POSTs rendered messages to webhook destinations. Its
// Deliver method is the worker pool's DeliverFunc; a failed destination is
// logged and recorded, never retried here.
type WebhookNotifier struct {
	client  *http.Client
	rec     Recorder
	metrics *observability.Metrics
	clock   clockwork.Clock
	log     *slog.Logger
}

func NewWebhookNotifier(timeout time.Duration, rec Recorder, metrics *observability.Metrics, clock clockwork.Clock, log *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		client:  &http.Client{Timeout: timeout},
		rec:     rec,
		metrics: metrics,
		clock:   clock,
		log:     log,
	}
}

func (n *WebhookNotifier) Deliver(ctx context.Context, d worker.Delivery) error {
	record := DeliveryRecord{
		ID:          uuid.NewString(),
		EventID:     d.EventID,
		SourceID:    d.SourceID,
		Destination: d.Destination,
		At:          n.clock.Now().UTC(),
	}

	err := n.post(ctx, record.ID, d)
	if err != nil {
		record.Error = err.Error()
		n.metrics.DeliveryFailures.WithLabelValues(d.Destination).Inc()
		n.log.Error("push delivery failed",
			"destination", d.Destination,
			"event_id", d.EventID,
			"error", err)
	} else {
		record.Succeeded = true
		n.metrics.PushesDelivered.WithLabelValues(d.Destination).Inc()
	}

	if recErr := n.rec.RecordDelivery(ctx, record); recErr != nil {
		n.log.Error("failed to record delivery", "delivery_id", record.ID, "error", recErr)
	}

	return err
}

func (n *WebhookNotifier) post(ctx context.Context, deliveryID string, d worker.Delivery) error {
	body, err := json.Marshal(webhookPayload{
		DeliveryID: deliveryID,
		EventID:    d.EventID,
		Source:     d.SourceID,
		Text:       d.Body,
	})
	if err != nil {
		return fmt.Errorf("error marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Destination, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("destination returned status %d", resp.StatusCode)
	}

	return nil
}
