package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/handler"
	"github.com/Kx501/go-disaster-warning/internal/observability"
)

// Manager builds the connection set from configuration and runs every
// enabled feed plus the HTTP poller until shutdown.
type Manager struct {
	cfg         *config.Config
	sink        Sink
	rawLog      RawLogger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	log         *slog.Logger
	connections []*Connection
	poller      *Poller
	wg          sync.WaitGroup
}

func NewManager(
	cfg *config.Config,
	sink Sink,
	rawLog RawLogger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	log *slog.Logger,
) *Manager {
	m := &Manager{
		cfg:     cfg,
		sink:    sink,
		rawLog:  rawLog,
		metrics: metrics,
		clock:   clock,
		log:     log,
	}
	m.buildConnections()
	if cfg.Feeds.PollEnabled {
		m.poller = NewPoller(cfg, sink, rawLog, metrics, log)
	}
	return m
}

func (m *Manager) buildConnections() {
	feeds := m.cfg.Feeds
	connect := m.cfg.Connect

	add := func(name, primary, backup string, parser handler.FrameParser) {
		conn := NewConnection(name, primary, backup, connect, parser,
			m.sink, m.rawLog, m.metrics, m.clock, m.log)
		m.connections = append(m.connections, conn)
	}

	if feeds.FanStudioEnabled {
		add("fanstudio", feeds.FanStudioURL, feeds.FanStudioBackupURL, handler.ForFanStudio(m.log))
	}
	if feeds.P2PEnabled {
		add("p2p", feeds.P2PURL, "", handler.ForP2P(m.log))
	}
	if feeds.WolfxEnabled {
		for name, parser := range handler.ForWolfx(m.log) {
			url, ok := feeds.WolfxURLs[name]
			if !ok || url == "" {
				continue
			}
			add(name, url, "", parser)
		}
	}
	if feeds.GlobalQuakeEnabled {
		add("global_quake", feeds.GlobalQuakeURL, "", handler.Single(handler.NewGlobalQuakeHandler(m.log)))
	}
}

// Connections exposes the built set so callers can tweak dialers before
// Start; tests use this.
func (m *Manager) Connections() []*Connection {
	return m.connections
}

func (m *Manager) Start(ctx context.Context) {
	for _, conn := range m.connections {
		m.wg.Add(1)
		go func(c *Connection) {
			defer m.wg.Done()
			c.Run(ctx)
		}(conn)
	}
	if m.poller != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.poller.Run(ctx)
		}()
	}
	m.log.Info("ingest manager started", "connections", len(m.connections))
}

// Stop blocks until every connection goroutine has exited. Cancel the Start
// context first.
func (m *Manager) Stop() {
	m.wg.Wait()
	m.log.Info("ingest manager stopped")
}

// Status reports a snapshot per connection for the status endpoint.
func (m *Manager) Status() []Snapshot {
	out := make([]Snapshot, 0, len(m.connections))
	for _, conn := range m.connections {
		out = append(out, conn.Status())
	}
	return out
}
