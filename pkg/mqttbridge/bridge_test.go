package mqttbridge

import (
	"testing"

	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/dpt"
	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

type recordingReceiver struct {
	calls []struct {
		target telegram.GroupAddress
		id     dpt.DPTIdentifier
		value  float64
	}
	result bool
	err    error
}

func (r *recordingReceiver) GroupWrite(answer bool, target telegram.GroupAddress, id dpt.DPTIdentifier, value float64) (bool, error) {
	r.calls = append(r.calls, struct {
		target telegram.GroupAddress
		id     dpt.DPTIdentifier
		value  float64
	}{target, id, value})
	return r.result, r.err
}

func newTestBridge() *Bridge {
	return &Bridge{
		log:         logger.NewNoOpLogger(),
		topicPrefix: "knx/",
		points:      make(map[telegram.GroupAddress]dpt.DPTIdentifier),
	}
}

func TestHandleWriteCommandIssuesGroupWrite(t *testing.T) {
	b := newTestBridge()
	recv := &recordingReceiver{result: true}

	b.handleWriteCommand(recv, []byte(`{"group":"2/7/1","value":1}`))

	if len(recv.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(recv.calls))
	}
	if recv.calls[0].target != telegram.NewGroupAddress(2, 7, 1) {
		t.Errorf("target = %s, want 2/7/1", recv.calls[0].target)
	}
	if recv.calls[0].id != dpt.DPT1_001 {
		t.Errorf("id = %s, want 1.001 (no point configured)", recv.calls[0].id)
	}
	if recv.calls[0].value != 1 {
		t.Errorf("value = %v, want 1", recv.calls[0].value)
	}
}

func TestHandleWriteCommandUsesConfiguredDPT(t *testing.T) {
	b := newTestBridge()
	target := telegram.NewGroupAddress(2, 7, 3)
	b.SetPoints(map[telegram.GroupAddress]dpt.DPTIdentifier{target: dpt.DPT9_001})
	recv := &recordingReceiver{result: true}

	b.handleWriteCommand(recv, []byte(`{"group":"2/7/3","value":21.5}`))

	if len(recv.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(recv.calls))
	}
	if recv.calls[0].id != dpt.DPT9_001 {
		t.Errorf("id = %s, want 9.001", recv.calls[0].id)
	}
	if recv.calls[0].value != 21.5 {
		t.Errorf("value = %v, want 21.5", recv.calls[0].value)
	}
}

func TestHandleWriteCommandRejectsInvalidJSON(t *testing.T) {
	b := newTestBridge()
	recv := &recordingReceiver{result: true}

	b.handleWriteCommand(recv, []byte(`not json`))

	if len(recv.calls) != 0 {
		t.Errorf("calls = %d, want 0 for invalid payload", len(recv.calls))
	}
}

func TestHandleWriteCommandRejectsMissingValue(t *testing.T) {
	b := newTestBridge()
	recv := &recordingReceiver{result: true}

	b.handleWriteCommand(recv, []byte(`{"group":"2/7/1"}`))

	if len(recv.calls) != 0 {
		t.Errorf("calls = %d, want 0 when value is absent", len(recv.calls))
	}
}

func TestHandleWriteCommandRejectsBadGroupAddress(t *testing.T) {
	b := newTestBridge()
	recv := &recordingReceiver{result: true}

	b.handleWriteCommand(recv, []byte(`{"group":"nope","value":1}`))

	if len(recv.calls) != 0 {
		t.Errorf("calls = %d, want 0 for malformed group address", len(recv.calls))
	}
}

func TestDptForDefaultsToSwitch(t *testing.T) {
	b := newTestBridge()
	target := telegram.NewGroupAddress(2, 7, 1)
	if got := b.dptFor(target); got != dpt.DPT1_001 {
		t.Errorf("dptFor() with no configured point = %s, want 1.001", got)
	}
}

func TestDptForConfiguredPoint(t *testing.T) {
	b := newTestBridge()
	target := telegram.NewGroupAddress(2, 7, 2)
	b.SetPoints(map[telegram.GroupAddress]dpt.DPTIdentifier{target: dpt.DPT14_001})
	if got := b.dptFor(target); got != dpt.DPT14_001 {
		t.Errorf("dptFor() = %s, want 14.001", got)
	}
}

func TestCommandNameMapping(t *testing.T) {
	cases := []struct {
		c    telegram.Command
		want string
	}{
		{telegram.CommandValueRead, "read"},
		{telegram.CommandValueResponse, "response"},
		{telegram.CommandValueWrite, "write"},
		{telegram.CommandMemoryWrite, "memory_write"},
	}
	for _, tc := range cases {
		if got := commandName(tc.c); got != tc.want {
			t.Errorf("commandName(%v) = %q, want %q", tc.c, got, tc.want)
		}
	}
}
