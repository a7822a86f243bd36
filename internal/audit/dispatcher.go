package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of making
	// the caller wait.
	DropIfFull bool
	// BlockTimeout caps the wait when DropIfFull is off. Zero means the
	// caller waits until its context ends.
	BlockTimeout time.Duration
}

const dropWarnInterval = 10 * time.Second

// Dispatcher relays events to a sink from a single background goroutine.
// A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger
	warn   rate.Sometimes

	// mu guards queue against a send racing with Close.
	mu     sync.RWMutex
	closed bool
	queue  chan Event

	stopped chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts the relay goroutine. It returns nil when cfg is
// disabled.
func NewDispatcher(cfg Config, sink Sink, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		logger:  logger,
		warn:    rate.Sometimes{First: 1, Interval: dropWarnInterval},
		queue:   make(chan Event, cfg.BufferSize),
		stopped: make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.stopped)
	for ev := range d.queue {
		d.sink.Emit(context.Background(), ev)
	}
}

// Emit queues ev, making Dispatcher usable as a [Sink].
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	d.Offer(ctx, ev)
}

// Offer queues ev and reports whether it was accepted. Events offered after
// Close are discarded without counting as drops.
func (d *Dispatcher) Offer(ctx context.Context, ev Event) bool {
	if d == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- ev:
		return true
	default:
	}
	if d.cfg.DropIfFull {
		d.drop(ev)
		return false
	}

	var timeout <-chan time.Time
	if d.cfg.BlockTimeout > 0 {
		t := time.NewTimer(d.cfg.BlockTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case d.queue <- ev:
		return true
	case <-ctx.Done():
	case <-timeout:
	}
	d.drop(ev)
	return false
}

func (d *Dispatcher) drop(ev Event) {
	total := d.dropped.Add(1)
	d.warn.Do(func() {
		d.logger.Warn("audit buffer full, dropping events",
			slog.String("event_type", ev.EventType),
			slog.Uint64("dropped_total", total),
			slog.Int("buffer_size", d.cfg.BufferSize))
	})
}

// Close stops accepting events and waits until the sink has received
// everything already queued. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped reports events lost to a full buffer or an expired wait.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
