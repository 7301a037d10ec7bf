// Package monitor fans bus telegrams out to external observers. A
// Broadcaster is fed synchronously from the device's single-threaded task
// loop (its Publish method must never block on a slow network peer), and
// hands each telegram off to whatever Sinks are registered — a WebSocket
// hub, a QUIC stream server, or a test double. Sinks are free to use
// ordinary goroutines and channels internally; only the core driver and
// device packages are held to the lock-free, single-threaded model.
package monitor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

// TelegramEvent is the JSON-serializable record published to every sink.
// Kind is "telegram" for a received frame and "reset" or
// "reception_error" for the link driver's other two observable events,
// which carry no telegram fields.
type TelegramEvent struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Source  string    `json:"source,omitempty"`
	Target  string    `json:"target,omitempty"`
	Group   bool      `json:"group,omitempty"`
	Command string    `json:"command,omitempty"`
	Payload []byte    `json:"payload,omitempty"`
}

// newTelegramEvent captures the observable fields of tg at the moment of
// receipt, copying the payload so the event does not share tg's buffer.
func newTelegramEvent(tg *telegram.Telegram) TelegramEvent {
	ev := TelegramEvent{
		Time:    time.Now(),
		Kind:    "telegram",
		Source:  tg.Source().String(),
		Group:   tg.Multicast(),
		Command: commandName(tg.Command()),
		Payload: append([]byte(nil), tg.Payload()...),
	}
	if ev.Group {
		ev.Target = tg.TargetGroup().String()
	} else {
		ev.Target = tg.TargetPhysical().String()
	}
	return ev
}

func commandName(c telegram.Command) string {
	switch c {
	case telegram.CommandValueRead:
		return "read"
	case telegram.CommandValueResponse:
		return "response"
	case telegram.CommandValueWrite:
		return "write"
	case telegram.CommandMemoryWrite:
		return "memory_write"
	default:
		return "unknown"
	}
}

// Sink receives every published telegram event. Implementations must not
// block; a slow or disconnected sink should drop events rather than
// stall the broadcaster.
type Sink interface {
	Publish(TelegramEvent)
	Close() error
}

// Broadcaster fans out telegram events to a dynamic set of sinks.
type Broadcaster struct {
	mu    sync.RWMutex
	sinks map[Sink]struct{}
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{sinks: make(map[Sink]struct{})}
}

// Add registers a sink.
func (b *Broadcaster) Add(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[s] = struct{}{}
}

// Remove unregisters a sink.
func (b *Broadcaster) Remove(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, s)
}

// Publish hands tg to every registered sink. Called from the device's
// task loop on every received, addressed, checksum-valid telegram; it
// must return promptly, so it only snapshots the sink set under lock and
// calls each sink's own non-blocking Publish.
func (b *Broadcaster) Publish(tg *telegram.Telegram) {
	b.broadcast(newTelegramEvent(tg))
}

// PublishReset notifies every sink that the link driver reported a chip
// reset. Called from the device's task loop on EventReset.
func (b *Broadcaster) PublishReset() {
	b.broadcast(TelegramEvent{Time: time.Now(), Kind: "reset"})
}

// PublishReceptionError notifies every sink that the link driver dropped
// an offending frame. Called from the device's task loop on
// EventReceptionError.
func (b *Broadcaster) PublishReceptionError() {
	b.broadcast(TelegramEvent{Time: time.Now(), Kind: "reception_error"})
}

func (b *Broadcaster) broadcast(ev TelegramEvent) {
	b.mu.RLock()
	sinks := make([]Sink, 0, len(b.sinks))
	for s := range b.sinks {
		sinks = append(sinks, s)
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Publish(ev)
	}
}

// Close closes every registered sink.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.sinks {
		s.Close()
	}
	b.sinks = make(map[Sink]struct{})
}

// MarshalJSON is used by sinks that need the wire encoding directly
// (e.g. to size a write) without round-tripping through json.Marshal at
// the call site.
func (e TelegramEvent) MarshalJSON() ([]byte, error) {
	type wire struct {
		Time    time.Time `json:"time"`
		Kind    string    `json:"kind"`
		Source  string    `json:"source,omitempty"`
		Target  string    `json:"target,omitempty"`
		Group   bool      `json:"group,omitempty"`
		Command string    `json:"command,omitempty"`
		Payload []byte    `json:"payload,omitempty"`
	}
	return json.Marshal(wire(e))
}
