// Package push decides which normalized events reach subscribers and
// destinations. Every event from the ingest layer passes through the
// deduplicator, the staleness check and the per-category filters before it
// is rendered and fanned out.
package push

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/dedup"
	"github.com/Kx501/go-disaster-warning/internal/filter"
	"github.com/Kx501/go-disaster-warning/internal/models"
	"github.com/Kx501/go-disaster-warning/internal/observability"
	"github.com/Kx501/go-disaster-warning/internal/worker"
)

// Orchestrator is the pipeline between feed connections and deliveries. It
// implements the ingest sink: Consume is called once per normalized event,
// from the connection goroutines.
type Orchestrator struct {
	registry     *models.Registry
	dedup        *dedup.Deduplicator
	severity     *filter.SeverityFilter
	gate         *filter.ReportGate
	keyword      *filter.QuakeKeywordFilter
	local        *filter.LocalObserver
	weather      *filter.WeatherFilter
	staleness    time.Duration
	destinations []string

	pool        *worker.Pool
	broadcaster *Broadcaster
	recorder    Recorder
	metrics     *observability.Metrics
	clock       clockwork.Clock
	log         *slog.Logger
}

func NewOrchestrator(
	cfg *config.Config,
	registry *models.Registry,
	dd *dedup.Deduplicator,
	pool *worker.Pool,
	broadcaster *Broadcaster,
	recorder Recorder,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		dedup:        dd,
		severity:     filter.NewSeverityFilter(cfg.Severity),
		gate:         filter.NewReportGate(cfg.Report),
		keyword:      filter.NewQuakeKeywordFilter(cfg.Keyword),
		local:        filter.NewLocalObserver(cfg.Local),
		weather:      filter.NewWeatherFilter(cfg.Weather),
		staleness:    cfg.Push.StalenessThreshold,
		destinations: cfg.Push.Destinations,
		pool:         pool,
		broadcaster:  broadcaster,
		recorder:     recorder,
		metrics:      metrics,
		clock:        clock,
		log:          log,
	}
}

func (o *Orchestrator) Consume(ev *models.Event) {
	spec := o.registry.Lookup(ev.SourceID)

	if !o.dedup.ShouldForward(spec, ev) {
		o.suppress(ev, observability.ReasonDuplicate)
		return
	}
	if o.isStale(spec, ev) {
		o.suppress(ev, observability.ReasonStale)
		return
	}

	switch ev.Category {
	case models.CategoryWeather:
		if !o.weather.Allow(ev) {
			o.suppress(ev, observability.ReasonKeyword)
			return
		}
	case models.CategoryTsunami:
		// tsunami bulletins, cancellations included, always go out
	default:
		if ev.IsCancelled {
			// A retraction must reach everyone who saw the warning, and
			// it carries no magnitude left for the gates to measure.
			break
		}
		if !o.severity.Allow(spec, ev) {
			o.suppress(ev, observability.ReasonSeverity)
			return
		}
		if !o.gate.Allow(spec, ev) {
			o.suppress(ev, observability.ReasonReport)
			return
		}
		if !o.keyword.Allow(ev) {
			o.suppress(ev, observability.ReasonKeyword)
			return
		}
		if !o.local.Apply(ev) {
			o.suppress(ev, observability.ReasonLocal)
			return
		}
	}

	o.accept(spec, ev)
}

// isStale rejects events whose origin time is too far in the past. Provider
// timestamps are naive local clock readings parsed as UTC, so the source's
// offset shifts them back to the real instant first.
func (o *Orchestrator) isStale(spec models.SourceSpec, ev *models.Event) bool {
	if ev.OccurredAt == nil {
		return false
	}
	occurredUTC := ev.OccurredAt.Add(-time.Duration(spec.UTCOffsetHours) * time.Hour)
	return o.clock.Now().UTC().Sub(occurredUTC) > o.staleness
}

func (o *Orchestrator) suppress(ev *models.Event, reason string) {
	o.metrics.EventsSuppressed.WithLabelValues(ev.SourceID, reason).Inc()
	o.log.Debug("event suppressed", "source", ev.SourceID, "event_id", ev.EventID, "reason", reason)
}

func (o *Orchestrator) accept(spec models.SourceSpec, ev *models.Event) {
	o.metrics.EventsAccepted.WithLabelValues(ev.SourceID).Inc()

	if err := o.recorder.RecordEvent(context.Background(), ev); err != nil {
		o.log.Error("failed to record event", "source", ev.SourceID, "event_id", ev.EventID, "error", err)
	}

	o.broadcaster.Broadcast(ev)

	body := Render(spec, ev)
	o.log.Info("event accepted",
		"source", ev.SourceID,
		"event_id", ev.EventID,
		"category", string(ev.Category),
		"destinations", len(o.destinations))

	for _, dest := range o.destinations {
		o.pool.Submit(worker.Delivery{
			Destination: dest,
			EventID:     ev.EventID,
			SourceID:    ev.SourceID,
			Body:        body,
		})
	}
}

// RunCleanup periodically drops expired dedup entries. Runs until ctx is
// cancelled; meant to be started once from main.
func (o *Orchestrator) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := o.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if removed := o.dedup.Cleanup(); removed > 0 {
				o.log.Info("dedup cleanup", "removed", removed, "remaining", o.dedup.Size())
			}
		}
	}
}
