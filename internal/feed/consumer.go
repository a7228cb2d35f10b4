// Package feed consumes the live cluster topology feed and hands changed snapshots to
// the topology service.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/apimachinery/pkg/api/equality"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/metrics"
)

const (
	defaultReconnectInterval = 5 * time.Second
	defaultMaxMessageBytes   = 32 << 20
	handshakeTimeout         = 10 * time.Second
)

// Message results recorded in metrics.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
	resultError     = "error"
)

// ApplyFunc receives every snapshot that differs from the previously applied one.
type ApplyFunc func(ctx context.Context, snapshots []models.ClusterSnapshot) error

// Config configures the feed consumer.
type Config struct {
	URL               string
	ReconnectInterval time.Duration
	MaxMessageBytes   int64
}

// Consumer reads snapshot arrays from a websocket and applies the ones that changed.
type Consumer struct {
	cfg    Config
	dialer *websocket.Dialer
	apply  ApplyFunc
	log    *slog.Logger

	mu   sync.Mutex
	last []models.ClusterSnapshot
	seen bool
}

// NewConsumer creates a consumer that calls apply for changed snapshots.
func NewConsumer(cfg Config, apply ApplyFunc, log *slog.Logger) *Consumer {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		apply:  apply,
		log:    log,
	}
}

// Run connects to the feed and keeps reconnecting until ctx is cancelled. It returns nil
// on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("topology feed disconnected", "url", c.cfg.URL, "error", err, "retry_in", c.cfg.ReconnectInterval)
		metrics.FeedReconnectsTotal.Inc()

		timer := time.NewTimer(c.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(c.cfg.MaxMessageBytes)
	c.log.Info("topology feed connected", "url", c.cfg.URL)

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if _, err := c.Handle(ctx, data); err != nil {
			c.log.Warn("topology feed message rejected", "error", err)
		}
	}
}

// Handle decodes one feed message and applies it when it differs from the last applied
// snapshot. It reports whether apply was called successfully.
func (c *Consumer) Handle(ctx context.Context, data []byte) (bool, error) {
	var snapshots []models.ClusterSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		metrics.FeedMessagesTotal.WithLabelValues(resultInvalid).Inc()
		return false, fmt.Errorf("decode feed message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen && equality.Semantic.DeepEqual(c.last, snapshots) {
		metrics.FeedMessagesTotal.WithLabelValues(resultDuplicate).Inc()
		return false, nil
	}
	if c.apply == nil {
		return false, errors.New("feed consumer has no apply function")
	}
	if err := c.apply(ctx, snapshots); err != nil {
		metrics.FeedMessagesTotal.WithLabelValues(resultError).Inc()
		return false, fmt.Errorf("apply feed snapshot: %w", err)
	}
	c.last = snapshots
	c.seen = true
	metrics.FeedMessagesTotal.WithLabelValues(resultApplied).Inc()
	return true, nil
}
