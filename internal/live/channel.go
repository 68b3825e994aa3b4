package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/snapshot"
)

// TopicPrice is the topic price ticks are delivered on.
const TopicPrice = "price"

// Status describes the shared connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Handler receives one tick per event.
type Handler func(model.Tick)

// Config holds live channel configuration.
type Config struct {
	URL                string        // stream URL; asset ids are appended as a query parameter
	AssetIDs           []string      // assets to subscribe to
	ReconnectBaseDelay time.Duration // default: 1s
	ReconnectMaxDelay  time.Duration // default: 60s
	BufferSize         int
}

// subscriber is one registered handler with its registration token.
type subscriber struct {
	id uuid.UUID
	fn Handler
}

// Channel owns the process-wide stream connection and the topic fan-out.
type Channel struct {
	cfg    Config
	snap   *snapshot.Snapshot
	logger *slog.Logger

	mu      sync.RWMutex
	subs    map[string][]subscriber // topic → handlers in registration order
	status  Status
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChannel creates a live channel. snap may be shared with the monitor.
func NewChannel(cfg Config, snap *snapshot.Snapshot, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = time.Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = 60 * time.Second
	}

	return &Channel{
		cfg:    cfg,
		snap:   snap,
		logger: logger,
		subs:   make(map[string][]subscriber),
		status: StatusDisconnected,
	}
}

// Connect starts the connection loop. Calling it while already running has
// no effect.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.status = StatusConnecting
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.connectionLoop()

	c.logger.Info("live channel started", "url", c.cfg.URL, "assets", len(c.cfg.AssetIDs))
	return nil
}

// Close stops the connection loop and drops the connection.
func (c *Channel) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.setStatus(StatusDisconnected)
		c.logger.Info("live channel stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler under topic and returns its unsubscribe
// function. Unsubscribing twice is a no-op; removing the last handler for
// a topic leaves the connection open.
func (c *Channel) Subscribe(topic string, h Handler) func() {
	sub := subscriber{id: uuid.New(), fn: h}

	c.mu.Lock()
	c.subs[topic] = append(c.subs[topic], sub)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		handlers := c.subs[topic]
		for i, s := range handlers {
			if s.id == sub.id {
				c.subs[topic] = append(handlers[:i], handlers[i+1:]...)
				return
			}
		}
	}
}

// Status returns the current connection state.
func (c *Channel) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SubscriberCount returns how many handlers are registered for topic.
func (c *Channel) SubscriberCount(topic string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs[topic])
}

// connectionLoop dials, pumps messages, and reconnects with exponential
// backoff until the channel is closed.
func (c *Channel) connectionLoop() {
	defer c.wg.Done()

	delay := c.cfg.ReconnectBaseDelay
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		client := NewClient(ClientConfig{
			URL:        c.streamURL(),
			BufferSize: c.cfg.BufferSize,
		}, c.logger)

		c.setStatus(StatusConnecting)
		if err := client.Connect(c.ctx); err != nil {
			c.logger.Warn("stream connect failed", "error", err, "retry_in", delay)
			c.setStatus(StatusDisconnected)
			if !c.sleep(delay) {
				return
			}
			delay = backoff(delay, c.cfg.ReconnectMaxDelay)
			continue
		}

		c.setStatus(StatusConnected)
		delay = c.cfg.ReconnectBaseDelay

		c.pump(client)
		client.Close()
		c.setStatus(StatusDisconnected)
	}
}

// pump forwards stream messages to the fan-out until the connection drops.
func (c *Channel) pump(client *Client) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case err := <-client.Errors():
			c.logger.Warn("stream connection lost", "error", err)
			return
		case msg := <-client.Messages():
			c.handleMessage(msg)
		}
	}
}

// handleMessage parses one price event frame and delivers its ticks.
// Frames are flat JSON objects mapping asset id to a decimal price string.
func (c *Channel) handleMessage(msg TimestampedMessage) {
	var prices map[string]string
	if err := json.Unmarshal(msg.Data, &prices); err != nil {
		c.logger.Warn("undecodable stream frame", "error", err)
		return
	}

	for id, raw := range prices {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		tick := model.Tick{
			AssetID:    id,
			PriceUSD:   price,
			ReceivedAt: msg.ReceivedAt,
		}
		if c.snap != nil {
			c.snap.ApplyTick(tick)
		}
		c.deliver(TopicPrice, tick)
	}
}

// deliver invokes every handler for topic in registration order. A
// panicking handler is isolated so the rest still run.
func (c *Channel) deliver(topic string, tick model.Tick) {
	c.mu.RLock()
	handlers := make([]subscriber, len(c.subs[topic]))
	copy(handlers, c.subs[topic])
	c.mu.RUnlock()

	for _, s := range handlers {
		c.invoke(s, tick)
	}
}

func (c *Channel) invoke(s subscriber, tick model.Tick) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked", "panic", r)
		}
	}()
	s.fn(tick)
}

func (c *Channel) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// sleep waits for d, returning false if the channel was closed meanwhile.
func (c *Channel) sleep(d time.Duration) bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// streamURL appends the subscribed asset ids to the configured URL.
func (c *Channel) streamURL() string {
	if len(c.cfg.AssetIDs) == 0 {
		return c.cfg.URL
	}
	sep := "?"
	if strings.Contains(c.cfg.URL, "?") {
		sep = "&"
	}
	return c.cfg.URL + sep + "assets=" + url.QueryEscape(strings.Join(c.cfg.AssetIDs, ","))
}

func backoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
