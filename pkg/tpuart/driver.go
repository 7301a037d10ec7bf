package tpuart

import (
	"fmt"
	"sort"
	"time"

	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

// Driver runs the TPUART reset handshake and the coupled RX/TX state
// machines. It is single-threaded and non-blocking by construction: every
// exported method except Reset returns immediately, and Reset's only
// waiting is the bounded reset-handshake retry loop. Callers drive it by
// calling RxTask and TxTask repeatedly, typically from pkg/device's
// cooperative task loop.
type Driver struct {
	uart UART
	log  logger.Logger

	physicalAddress telegram.PhysicalAddress
	groups          []telegram.GroupAddress // kept sorted for binary search

	rxState RxState
	txState TxState

	rxBytes       [telegram.MaxFrameSize]byte
	readBytes     int
	expectedLen   int
	lastByteTime  time.Time
	lastReceived  *telegram.Telegram

	sendBuf     *telegram.Telegram
	sendIndex   int
	sendTime    time.Time

	callback EventCallback
}

// New constructs a Driver bound to uart. Call Reset then Init before
// RxTask/TxTask.
func New(uart UART, log logger.Logger) *Driver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Driver{
		uart:    uart,
		log:     log.WithComponent("tpuart"),
		rxState: RxReset,
		txState: TxReset,
	}
}

// SetEventCallback registers the single callback invoked for EventReset,
// EventReceivedTelegram, and EventReceptionError.
func (d *Driver) SetEventCallback(cb EventCallback) { d.callback = cb }

// emit invokes the registered callback, if any.
func (d *Driver) emit(ev Event) {
	if d.callback != nil {
		d.callback(ev)
	}
}

// Reset closes and reopens the UART, then repeatedly requests a reset
// from the chip until it answers or the retry budget (10 attempts, up to
// 1s each) is exhausted.
func (d *Driver) Reset() error {
	if err := d.uart.Reopen(); err != nil {
		return fmt.Errorf("tpuart: reopen uart: %w", err)
	}

	for attempt := 0; attempt < resetMaxAttempts; attempt++ {
		if _, err := d.uart.Write([]byte{ctrlResetReq}); err != nil {
			d.uart.Close()
			return fmt.Errorf("tpuart: write reset request: %w", err)
		}
		deadline := time.Now().Add(resetAttemptWindow)
		for time.Now().Before(deadline) {
			b, ok, err := d.uart.ReadByte()
			if err != nil {
				d.uart.Close()
				return fmt.Errorf("tpuart: read during reset: %w", err)
			}
			if ok && b == chipResetIndication {
				d.rxState = RxInit
				d.txState = TxInit
				return nil
			}
			time.Sleep(resetPollInterval)
		}
		d.log.Warn("reset attempt %d/%d timed out waiting for ResetIndication", attempt+1, resetMaxAttempts)
	}

	d.uart.Close()
	return fmt.Errorf("tpuart: chip did not answer reset after %d attempts", resetMaxAttempts)
}

// Init transitions both state machines to their idle states and stores
// this device's physical address and subscribed group table. Both sides
// must already be in their Init state (i.e. Reset succeeded).
func (d *Driver) Init(physicalAddress telegram.PhysicalAddress, groups []telegram.GroupAddress) error {
	if d.rxState != RxInit || d.txState != TxInit {
		return fmt.Errorf("tpuart: init called before a successful reset (rx=%s tx=%s)", d.rxState, d.txState)
	}
	d.physicalAddress = physicalAddress
	d.groups = append([]telegram.GroupAddress(nil), groups...)
	sort.Slice(d.groups, func(i, j int) bool { return d.groups[i] < d.groups[j] })

	d.rxState = RxIdleWaitingCtrl
	d.txState = TxIdle
	return nil
}

// IsRxActive reports whether RX is in the middle of assembling a frame.
func (d *Driver) IsRxActive() bool { return d.rxState != RxIdleWaitingCtrl }

// RxState returns the receive state machine's current state.
func (d *Driver) RxState() RxState { return d.rxState }

// TxState returns the transmit state machine's current state.
func (d *Driver) TxState() TxState { return d.txState }

// IsActive reports whether either state machine is doing more than idling
// — the condition pkg/device's task loop uses to decide whether to keep
// draining this pass.
func (d *Driver) IsActive() bool {
	return d.rxState != RxIdleWaitingCtrl || d.txState != TxIdle
}

// LastReceived returns the most recently completed, addressed, and
// checksum-valid telegram. Each reception allocates a new Telegram, so a
// later reception changes what LastReceived returns but never modifies a
// telegram already returned.
func (d *Driver) LastReceived() *telegram.Telegram { return d.lastReceived }

// subscribed reports whether g is in the device's group table.
func (d *Driver) subscribed(g telegram.GroupAddress) bool {
	i := sort.Search(len(d.groups), func(i int) bool { return d.groups[i] >= g })
	return i < len(d.groups) && d.groups[i] == g
}

// Close releases the driver's hold on the UART.
func (d *Driver) Close() error {
	return d.uart.Close()
}

// SendTelegram stamps t's source address, computes its checksum, and
// hands it to the TX state machine. It never blocks; the actual bytes go
// out over subsequent TxTask calls. It returns false if TX is not Idle
// (a send is already in flight).
func (d *Driver) SendTelegram(t *telegram.Telegram) bool {
	if d.txState != TxIdle {
		return false
	}
	t.SetSource(d.physicalAddress)
	t.Update()
	d.sendBuf = t
	d.sendIndex = 0
	d.txState = TxSending
	return true
}
