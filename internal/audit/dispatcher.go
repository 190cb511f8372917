package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher scrubs events and hands them to a sink from one goroutine.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue    chan Event
	stop     chan struct{}
	stopped  atomic.Bool
	stopOnce sync.Once
	worker   sync.WaitGroup

	dropped  atomic.Uint64
	redacted atomic.Uint64
}

// NewDispatcher starts a dispatcher goroutine. It returns nil when cfg is
// disabled; every method is safe to call on a nil *Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
	}
	d.worker.Add(1)
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer d.worker.Done()
	for {
		select {
		case event := <-d.queue:
			d.sink.Emit(context.Background(), event)
		case <-d.stop:
			for {
				select {
				case event := <-d.queue:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit scrubs event and queues it. With DropIfFull a full queue drops the
// event and counts it; otherwise Emit waits for room until ctx ends.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.stopped.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event = d.scrub(event)

	if d.dropIfFull {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// scrub copies Metadata, so later caller writes cannot race delivery, and
// removes entries that could carry credentials: keys naming a password, hash,
// secret or token, and values shaped like a stored hash or a signed token.
func (d *Dispatcher) scrub(event Event) Event {
	if len(event.Metadata) == 0 {
		event.Metadata = nil
		return event
	}
	clean := make(map[string]string, len(event.Metadata))
	for k, v := range event.Metadata {
		if sensitiveKey(k) || sensitiveValue(v) {
			d.redacted.Add(1)
			continue
		}
		clean[k] = v
	}
	event.Metadata = clean
	if sensitiveValue(event.Reason) {
		d.redacted.Add(1)
		event.Reason = "redacted"
	}
	return event
}

var sensitiveKeyParts = []string{"password", "passwd", "hash", "secret", "token"}

func sensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(k, part) {
			return true
		}
	}
	return false
}

// sensitiveValue matches modular-crypt hashes ($2a$..., $argon2id$...) and
// compact JWS strings (header.payload.signature with a JSON header).
func sensitiveValue(v string) bool {
	if strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") ||
		strings.HasPrefix(v, "$2y$") || strings.HasPrefix(v, "$argon2") {
		return true
	}
	return strings.HasPrefix(v, "eyJ") && strings.Count(v, ".") == 2
}

// Close stops accepting events, drains what is queued, and waits for the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stop)
		d.worker.Wait()
	})
}

// Dropped returns the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Redacted returns how many metadata entries or reasons were scrubbed.
func (d *Dispatcher) Redacted() uint64 {
	if d == nil {
		return 0
	}
	return d.redacted.Load()
}
