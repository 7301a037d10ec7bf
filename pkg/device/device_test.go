package device

import (
	"testing"
	"time"

	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/monitor"
	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

type fakeUART struct {
	inbound  []byte
	outbound [][]byte
}

func (f *fakeUART) Reopen() error { return nil }
func (f *fakeUART) Close() error  { return nil }

func (f *fakeUART) Write(p []byte) (int, error) {
	f.outbound = append(f.outbound, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeUART) ReadByte() (byte, bool, error) {
	if len(f.inbound) == 0 {
		return 0, false, nil
	}
	b := f.inbound[0]
	f.inbound = f.inbound[1:]
	return b, true, nil
}

func (f *fakeUART) feed(bytes ...byte) { f.inbound = append(f.inbound, bytes...) }

func newTestDevice(t *testing.T, u *fakeUART) *Device {
	t.Helper()
	u.feed(0x03) // ResetIndication
	d := New(u, logger.NewNoOpLogger())
	own := telegram.NewPhysicalAddress(1, 1, 12)
	groups := []telegram.GroupAddress{telegram.NewGroupAddress(2, 7, 1)}
	if err := d.Init(own, groups); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	return d
}

func TestGroupWriteBoolDrainsToWire(t *testing.T) {
	u := &fakeUART{}
	d := newTestDevice(t, u)

	if !d.GroupWriteBool(false, telegram.NewGroupAddress(2, 7, 1), true) {
		t.Fatalf("GroupWriteBool() = false, want true")
	}

	// Force past the rx/tx tick gates so one Task call fully drains the send.
	d.lastRxTick = time.Now().Add(-time.Second)
	d.lastTxTick = time.Now().Add(-time.Second)
	d.Task()

	// The frame goes out as 2-byte (control, data) pairs; expect the final
	// DataEndReq pair among them.
	found := false
	for _, w := range u.outbound {
		if len(w) == 2 && w[0]&0x40 != 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("outbound = %v, want a DataEndReq pair", u.outbound)
	}
}

func TestReceivedTelegramInvokesCallback(t *testing.T) {
	u := &fakeUART{}
	d := newTestDevice(t, u)

	var got *telegram.Telegram
	d.OnTelegram(func(tg *telegram.Telegram) { got = tg })

	frame := []byte{0xBC, 0x00, 0x01, 0x17, 0x01, 0xE1, 0x00, 0x81, 0x34}
	u.feed(frame...)

	d.lastRxTick = time.Now().Add(-time.Second)
	for i := 0; i < len(frame); i++ {
		d.lastRxTick = time.Now().Add(-time.Second)
		d.Task()
	}

	if got == nil {
		t.Fatalf("OnTelegram callback was not invoked")
	}
	if got.TargetGroup() != telegram.NewGroupAddress(2, 7, 1) {
		t.Errorf("target = %s, want 2/7/1", got.TargetGroup())
	}
}

type recordingSink struct {
	events []monitor.TelegramEvent
}

func (r *recordingSink) Publish(ev monitor.TelegramEvent) { r.events = append(r.events, ev) }
func (r *recordingSink) Close() error                     { return nil }

func TestReceivedTelegramAlsoReachesBroadcaster(t *testing.T) {
	u := &fakeUART{}
	d := newTestDevice(t, u)

	b := monitor.NewBroadcaster()
	sink := &recordingSink{}
	b.Add(sink)
	d.SetBroadcaster(b)

	frame := []byte{0xBC, 0x00, 0x01, 0x17, 0x01, 0xE1, 0x00, 0x81, 0x34}
	u.feed(frame...)

	for i := 0; i < len(frame); i++ {
		d.lastRxTick = time.Now().Add(-time.Second)
		d.Task()
	}

	if len(sink.events) != 1 {
		t.Fatalf("sink events = %d, want 1", len(sink.events))
	}
	if sink.events[0].Kind != "telegram" {
		t.Errorf("Kind = %q, want telegram", sink.events[0].Kind)
	}
	if sink.events[0].Target != "2/7/1" {
		t.Errorf("Target = %q, want 2/7/1", sink.events[0].Target)
	}
}

func TestQueueFullReturnsFalse(t *testing.T) {
	u := &fakeUART{}
	d := newTestDevice(t, u)

	target := telegram.NewGroupAddress(2, 7, 1)
	ok := true
	for i := 0; i < 16 && ok; i++ {
		ok = d.GroupWriteBool(false, target, true)
	}
	if !ok {
		t.Fatalf("expected 16 pushes to succeed before the queue fills")
	}
	if d.GroupWriteBool(false, target, true) {
		t.Errorf("GroupWriteBool() on a full queue = true, want false")
	}
}
