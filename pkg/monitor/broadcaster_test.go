package monitor

import (
	"testing"

	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

type recordingSink struct {
	events []TelegramEvent
	closed bool
}

func (r *recordingSink) Publish(ev TelegramEvent) { r.events = append(r.events, ev) }
func (r *recordingSink) Close() error             { r.closed = true; return nil }

func buildTestTelegram() *telegram.Telegram {
	tg := telegram.New()
	tg.SetSource(telegram.NewPhysicalAddress(1, 1, 12))
	tg.SetTargetGroup(telegram.NewGroupAddress(2, 7, 1))
	tg.SetMulticast(true)
	tg.SetCommand(telegram.CommandValueWrite)
	tg.SetPayload(1, nil)
	tg.Update()
	return tg
}

func TestBroadcasterFansOutToAllSinks(t *testing.T) {
	b := NewBroadcaster()
	s1, s2 := &recordingSink{}, &recordingSink{}
	b.Add(s1)
	b.Add(s2)

	b.Publish(buildTestTelegram())

	if len(s1.events) != 1 || len(s2.events) != 1 {
		t.Fatalf("s1=%d s2=%d events, want 1 each", len(s1.events), len(s2.events))
	}
	if s1.events[0].Target != "2/7/1" {
		t.Errorf("Target = %q, want 2/7/1", s1.events[0].Target)
	}
	if s1.events[0].Source != "1.1.12" {
		t.Errorf("Source = %q, want 1.1.12", s1.events[0].Source)
	}
	if s1.events[0].Command != "write" {
		t.Errorf("Command = %q, want write", s1.events[0].Command)
	}
}

func TestBroadcasterRemoveStopsDelivery(t *testing.T) {
	b := NewBroadcaster()
	s := &recordingSink{}
	b.Add(s)
	b.Remove(s)

	b.Publish(buildTestTelegram())

	if len(s.events) != 0 {
		t.Errorf("events after Remove = %d, want 0", len(s.events))
	}
}

func TestBroadcasterPublishResetAndReceptionError(t *testing.T) {
	b := NewBroadcaster()
	s := &recordingSink{}
	b.Add(s)

	b.PublishReset()
	b.PublishReceptionError()

	if len(s.events) != 2 {
		t.Fatalf("events = %d, want 2", len(s.events))
	}
	if s.events[0].Kind != "reset" {
		t.Errorf("events[0].Kind = %q, want reset", s.events[0].Kind)
	}
	if s.events[1].Kind != "reception_error" {
		t.Errorf("events[1].Kind = %q, want reception_error", s.events[1].Kind)
	}
}

func TestBroadcasterCloseClosesSinks(t *testing.T) {
	b := NewBroadcaster()
	s := &recordingSink{}
	b.Add(s)

	b.Close()

	if !s.closed {
		t.Errorf("sink was not closed")
	}
}
