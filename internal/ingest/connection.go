// Package ingest owns the upstream side of the pipeline: one websocket
// connection per feed endpoint, a shared HTTP poller for the list APIs, and
// the dispatch of every received frame to the endpoint's parser.
package ingest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Kx501/go-disaster-warning/internal/config"
	"github.com/Kx501/go-disaster-warning/internal/handler"
	"github.com/Kx501/go-disaster-warning/internal/models"
	"github.com/Kx501/go-disaster-warning/internal/observability"
)

// State is one step of a connection's lifecycle. Transitions only move
// forward through Connecting/Connected/Backoff cycles until Dead, which is
// terminal until a restart.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateBackoff    State = "backoff"
	StateDead       State = "dead"
)

// Conn is the slice of *websocket.Conn the read loop needs; tests inject
// fakes through DialFunc.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// DialFunc opens one websocket connection. The default implementation wraps
// gorilla's dialer; tests swap it to script failures.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func gorillaDial(handshakeTimeout time.Duration) DialFunc {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, url string) (Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
			}
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		return conn, nil
	}
}

// Sink receives every normalized event a connection produces.
type Sink interface {
	Consume(ev *models.Event)
}

// RawLogger persists raw frames for replay and debugging. May be nil.
type RawLogger interface {
	AppendRaw(connection string, frame []byte)
}

// Snapshot is the externally visible state of one connection.
type Snapshot struct {
	Name      string `json:"name"`
	State     State  `json:"state"`
	ActiveURL string `json:"activeUrl"`
	Retries   int    `json:"retries"`
}

// Connection drives one feed endpoint: dial, read until failure, back off,
// redial; fail over to the backup URL after repeated primary failures; give
// up for good after the backup fails as often.
type Connection struct {
	name       string
	primaryURL string
	backupURL  string
	cfg        config.ConnectConfig
	dial       DialFunc
	parser     handler.FrameParser
	sink       Sink
	rawLog     RawLogger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	log        *slog.Logger

	mu        sync.Mutex
	state     State
	activeURL string
	retries   int
}

func NewConnection(
	name, primaryURL, backupURL string,
	cfg config.ConnectConfig,
	parser handler.FrameParser,
	sink Sink,
	rawLog RawLogger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	log *slog.Logger,
) *Connection {
	return &Connection{
		name:       name,
		primaryURL: primaryURL,
		backupURL:  backupURL,
		cfg:        cfg,
		dial:       gorillaDial(cfg.HandshakeTimeout),
		parser:     parser,
		sink:       sink,
		rawLog:     rawLog,
		metrics:    metrics,
		clock:      clock,
		log:        log,
		state:      StateIdle,
		activeURL:  primaryURL,
	}
}

// SetDialFunc replaces the dialer. Call before Run.
func (c *Connection) SetDialFunc(dial DialFunc) {
	c.dial = dial
}

func (c *Connection) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Name: c.name, State: c.state, ActiveURL: c.activeURL, Retries: c.retries}
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run blocks until the context is cancelled or the connection is declared
// dead.
func (c *Connection) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.setState(StateIdle)
			return
		}

		c.setState(StateConnecting)
		url := c.currentURL()
		conn, err := c.dial(ctx, url)
		if err != nil {
			c.metrics.ReconnectAttempts.WithLabelValues(c.name).Inc()
			if !c.handleDialFailure(ctx, url, err) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.state = StateConnected
		c.retries = 0
		c.mu.Unlock()
		c.metrics.ConnectionsActive.Inc()
		c.log.Info("connected", "connection", c.name, "url", url)

		c.readLoop(ctx, conn)
		conn.Close()
		c.metrics.ConnectionsActive.Dec()

		if ctx.Err() != nil {
			c.setState(StateIdle)
			return
		}

		// A broken stream redials after the same interval as a failed
		// dial, so a flapping upstream cannot spin us.
		c.setState(StateBackoff)
		select {
		case <-ctx.Done():
			c.setState(StateIdle)
			return
		case <-c.clock.After(c.cfg.ReconnectInterval):
		}
	}
}

func (c *Connection) currentURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeURL
}

// handleDialFailure updates retry bookkeeping and reports whether Run
// should keep trying. Certificate and authorization failures never heal on
// retry, so they kill the connection immediately.
func (c *Connection) handleDialFailure(ctx context.Context, url string, err error) bool {
	if isPermanentError(err) {
		c.log.Error("permanent failure, giving up", "connection", c.name, "url", url, "error", err)
		c.setState(StateDead)
		return false
	}

	c.mu.Lock()
	c.retries++
	retries := c.retries
	onPrimary := c.activeURL == c.primaryURL
	c.mu.Unlock()

	c.log.Warn("dial failed",
		"connection", c.name, "url", url, "attempt", retries, "error", err)

	if retries >= c.cfg.MaxRetries {
		if onPrimary && c.backupURL != "" {
			c.mu.Lock()
			c.activeURL = c.backupURL
			c.retries = 0
			c.mu.Unlock()
			c.log.Warn("failing over to backup", "connection", c.name, "backup", c.backupURL)
		} else {
			c.log.Error("retries exhausted, connection dead", "connection", c.name)
			c.setState(StateDead)
			return false
		}
	}

	c.setState(StateBackoff)
	select {
	case <-ctx.Done():
		c.setState(StateIdle)
		return false
	case <-c.clock.After(c.cfg.ReconnectInterval):
		return true
	}
}

// readLoop pumps frames until the connection breaks or ctx ends. Every
// frame gets a fresh read deadline; a silent upstream is indistinguishable
// from a dead TCP path, so silence past the timeout forces a reconnect.
func (c *Connection) readLoop(ctx context.Context, conn Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.MessageTimeout)); err != nil {
			return
		}
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("read failed", "connection", c.name, "error", err)
			}
			return
		}

		c.metrics.MessagesReceived.WithLabelValues(c.name).Inc()
		if c.rawLog != nil {
			c.rawLog.AppendRaw(c.name, frame)
		}
		c.dispatch(frame)
	}
}

// dispatch hands the frame to this connection's parser. A panic in a
// handler must not take the read loop down with it.
func (c *Connection) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panic", "connection", c.name, "panic", fmt.Sprint(r))
		}
	}()

	events, err := c.parser.Parse(frame)
	if err != nil {
		c.metrics.ParseFailures.WithLabelValues(c.name).Inc()
		c.log.Warn("parse failed", "connection", c.name, "error", err)
	}
	for _, ev := range events {
		c.sink.Consume(ev)
	}
}

func isPermanentError(err error) bool {
	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "x509") ||
		strings.Contains(msg, "certificate") ||
		strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403")
}
