package live

import (
	"sync"
	"testing"
	"time"

	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/snapshot"
)

func TestSubscribeDeliveryOrder(t *testing.T) {
	c := NewChannel(Config{URL: "wss://example.test"}, nil, nil)

	var mu sync.Mutex
	var order []string
	c.Subscribe(TopicPrice, func(model.Tick) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	c.Subscribe(TopicPrice, func(model.Tick) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	})

	c.deliver(TopicPrice, model.Tick{AssetID: "bitcoin", PriceUSD: 100})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("delivery order = %v, want [first second]", order)
	}
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	c := NewChannel(Config{URL: "wss://example.test"}, nil, nil)

	delivered := 0
	c.Subscribe(TopicPrice, func(model.Tick) {
		panic("handler bug")
	})
	c.Subscribe(TopicPrice, func(model.Tick) {
		delivered++
	})

	c.deliver(TopicPrice, model.Tick{AssetID: "bitcoin", PriceUSD: 100})

	if delivered != 1 {
		t.Errorf("later subscriber received %d ticks, want 1", delivered)
	}
}

func TestUnsubscribe(t *testing.T) {
	c := NewChannel(Config{URL: "wss://example.test"}, nil, nil)

	delivered := 0
	unsubscribe := c.Subscribe(TopicPrice, func(model.Tick) {
		delivered++
	})

	c.deliver(TopicPrice, model.Tick{AssetID: "bitcoin"})
	unsubscribe()
	c.deliver(TopicPrice, model.Tick{AssetID: "bitcoin"})

	if delivered != 1 {
		t.Errorf("subscriber received %d ticks after unsubscribe, want 1", delivered)
	}

	// A second unsubscribe is a no-op.
	unsubscribe()
	if got := c.SubscriberCount(TopicPrice); got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}
}

func TestUnsubscribeRemovesOnlyOwnHandler(t *testing.T) {
	c := NewChannel(Config{URL: "wss://example.test"}, nil, nil)

	first := c.Subscribe(TopicPrice, func(model.Tick) {})
	c.Subscribe(TopicPrice, func(model.Tick) {})

	first()
	first() // repeated call must not touch the remaining handler

	if got := c.SubscriberCount(TopicPrice); got != 1 {
		t.Errorf("SubscriberCount = %d, want 1", got)
	}
}

func TestHandleMessageParsesPriceFrame(t *testing.T) {
	snap := snapshot.New()
	snap.ReplaceAll([]model.Asset{
		{ID: "bitcoin", PriceUSD: 100},
		{ID: "ethereum", PriceUSD: 50},
	})

	c := NewChannel(Config{URL: "wss://example.test"}, snap, nil)

	var mu sync.Mutex
	ticks := make(map[string]float64)
	c.Subscribe(TopicPrice, func(tk model.Tick) {
		mu.Lock()
		ticks[tk.AssetID] = tk.PriceUSD
		mu.Unlock()
	})

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.handleMessage(TimestampedMessage{
		Data:       []byte(`{"bitcoin":"64523.12","ethereum":"3201.5"}`),
		ReceivedAt: at,
	})

	if ticks["bitcoin"] != 64523.12 {
		t.Errorf("bitcoin tick = %v, want 64523.12", ticks["bitcoin"])
	}
	if ticks["ethereum"] != 3201.5 {
		t.Errorf("ethereum tick = %v, want 3201.5", ticks["ethereum"])
	}

	// The shared snapshot is patched before delivery.
	a, _ := snap.Get("bitcoin")
	if a.PriceUSD != 64523.12 {
		t.Errorf("snapshot bitcoin price = %v, want 64523.12", a.PriceUSD)
	}
	if !a.UpdatedAt.Equal(at) {
		t.Errorf("snapshot UpdatedAt = %v, want %v", a.UpdatedAt, at)
	}
}

func TestHandleMessageSkipsBadValues(t *testing.T) {
	c := NewChannel(Config{URL: "wss://example.test"}, nil, nil)

	delivered := 0
	c.Subscribe(TopicPrice, func(model.Tick) {
		delivered++
	})

	// Undecodable frame: dropped whole.
	c.handleMessage(TimestampedMessage{Data: []byte("not json")})
	// Unparseable price: that entry is skipped, the rest delivered.
	c.handleMessage(TimestampedMessage{Data: []byte(`{"bitcoin":"oops","ethereum":"3201.5"}`)})

	if delivered != 1 {
		t.Errorf("delivered %d ticks, want 1", delivered)
	}
}

func TestStatusLifecycle(t *testing.T) {
	c := NewChannel(Config{URL: "wss://example.test"}, nil, nil)

	if got := c.Status(); got != StatusDisconnected {
		t.Errorf("Status = %q before Connect, want %q", got, StatusDisconnected)
	}
}
