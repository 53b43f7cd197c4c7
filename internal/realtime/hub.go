// Package realtime fans analysis status updates out to connected observers.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/target/esg-pipeline/internal/core"
	"github.com/target/esg-pipeline/internal/domain/model"
)

const defaultBuffer = 16

// HubOptions configure NewHub.
type HubOptions struct {
	// Buffer is the per-subscriber queue length. Updates beyond it are dropped.
	Buffer int
	Logger *slog.Logger
}

// Hub delivers each published update to every current subscriber without
// blocking on slow ones. There is no replay: a subscriber sees only updates
// published after it subscribed.
type Hub struct {
	buffer  int
	logger  *slog.Logger
	dropped atomic.Int64

	mu     sync.Mutex
	subs   map[chan model.StatusUpdate]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(opts HubOptions) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		buffer: opts.Buffer,
		logger: logger.With("component", "realtime_hub"),
		subs:   make(map[chan model.StatusUpdate]struct{}),
	}
}

// Subscribe registers an observer. The returned func removes it and closes
// the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (func(), <-chan model.StatusUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.StatusUpdate, h.buffer)
	if h.closed {
		close(ch)
		return func() {}, ch
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	return func() { once.Do(func() { h.remove(ch) }) }, ch
}

// Publish delivers update to every subscriber whose queue has room.
func (h *Hub) Publish(ctx context.Context, update model.StatusUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped int
	for ch := range h.subs {
		select {
		case ch <- update:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.dropped.Add(int64(dropped))
		h.logger.WarnContext(ctx, "status update dropped for slow subscribers",
			"analysis_id", update.AnalysisID, "dropped", dropped)
	}
}

// Deliver is Publish without a caller context, for relays.
func (h *Hub) Deliver(update model.StatusUpdate) {
	h.Publish(context.Background(), update)
}

// Subscribers returns the number of connected observers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns the number of per-subscriber deliveries skipped so far.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every subscriber. Later subscriptions receive a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) remove(ch chan model.StatusUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

var _ core.StatusBroadcaster = (*Hub)(nil)
