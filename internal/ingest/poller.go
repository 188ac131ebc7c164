package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/handler"
	"github.com/Kx501/go-disaster-warning/internal/observability"
)

// Poller fetches the Wolfx recent-quake list APIs on a fixed interval as a
// safety net: a quake missed during a websocket outage still surfaces on the
// next poll, and the dedup layer absorbs the overlap when it was not missed.
type Poller struct {
	interval time.Duration
	targets  []pollTarget
	sink     Sink
	rawLog   RawLogger
	metrics  *observability.Metrics
	client   *http.Client
	log      *slog.Logger
}

type pollTarget struct {
	name    string
	url     string
	handler handler.Handler
}

func NewPoller(
	cfg *config.Config,
	sink Sink,
	rawLog RawLogger,
	metrics *observability.Metrics,
	log *slog.Logger,
) *Poller {
	return &Poller{
		interval: cfg.Feeds.PollInterval,
		targets: []pollTarget{
			{name: "http_wolfx_cenc", url: cfg.Feeds.CENCListURL, handler: handler.NewWolfxCENCListHandler(log)},
			{name: "http_wolfx_jma", url: cfg.Feeds.JMAListURL, handler: handler.NewWolfxJMAListHandler(log)},
		},
		sink:    sink,
		rawLog:  rawLog,
		metrics: metrics,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

func (p *Poller) Run(ctx context.Context) {
	p.log.Info("starting poller", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial poll
	p.pollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller shutting down")
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	for _, target := range p.targets {
		if err := p.poll(ctx, target); err != nil {
			p.log.Error("poll failed", "target", target.name, "error", err)
		}
	}
}

func (p *Poller) poll(ctx context.Context, target pollTarget) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	p.metrics.MessagesReceived.WithLabelValues(target.name).Inc()
	if p.rawLog != nil {
		p.rawLog.AppendRaw(target.name, body)
	}

	ev, err := target.handler.Parse(body)
	if err != nil {
		p.metrics.ParseFailures.WithLabelValues(target.name).Inc()
		return fmt.Errorf("parsing: %w", err)
	}
	if ev != nil {
		p.sink.Consume(ev)
	}

	p.log.Debug("poll complete", "target", target.name, "forwarded", ev != nil)
	return nil
}
