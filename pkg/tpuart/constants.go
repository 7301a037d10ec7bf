// Package tpuart drives a TPUART transceiver chip over a byte-oriented
// UART: it runs the reset handshake, and two coupled non-blocking state
// machines (RX, TX) that translate chip control bytes and inline KNX
// frame bytes into telegram.Telegram events. The core never blocks and
// never spawns a goroutine — it is driven by repeated calls to RxTask and
// TxTask from a single cooperative loop, matching the single-threaded
// model the reference driver assumes of its host.
package tpuart

import "time"

// Host-to-chip control bytes.
const (
	ctrlResetReq             byte = 0x01
	ctrlStateReq             byte = 0x02
	ctrlAckAddressed         byte = 0x11
	ctrlAckNotAddressed      byte = 0x10
	ctrlDataStartContinueReq byte = 0x80 // | i, byte index within the telegram
	ctrlDataEndReq           byte = 0x40 // | i, byte index within the telegram
)

// Chip-to-host control bytes.
const (
	chipResetIndication    byte = 0x03
	chipDataConfirmSuccess byte = 0x8B
	chipDataConfirmFailed  byte = 0x0B

	// stateIndicationMask/Pattern recognizes a state indication byte:
	// (b & 0x07) == 0x07.
	stateIndicationMask    byte = 0x07
	stateIndicationPattern byte = 0x07

	// controlFieldMask/Pattern recognizes the start of a KNX frame on the
	// wire: (b & 0xD3) == 0x90.
	controlFieldMask    byte = 0xD3
	controlFieldPattern byte = 0x90

	// routingLengthMask isolates the routing byte's LLLL length field,
	// mirroring telegram's routingLengthMask.
	routingLengthMask byte = 0x0F
)

// Timing constants from the host-observable protocol. These are spec
// requirements on the driver's behavior, not on the wall clock resolution
// the host happens to call task() at.
const (
	resetPollInterval  = 1 * time.Millisecond
	resetAttemptWindow = 1000 * time.Millisecond
	resetMaxAttempts   = 10

	ackDeadline = 1700 * time.Microsecond
	eopTimeout  = 50000 * time.Microsecond
	ackTimeout  = 500 * time.Millisecond

	rxTickInterval = 400 * time.Microsecond
	txTickInterval = 800 * time.Microsecond
)

// RxState is the receive-side state machine's current state.
type RxState int

const (
	RxReset RxState = iota
	RxStopped
	RxInit
	RxIdleWaitingCtrl
	RxRecvStarted
	RxRecvAddressed
	RxRecvLengthInvalid
	RxRecvNotAddressed
)

func (s RxState) String() string {
	switch s {
	case RxReset:
		return "Reset"
	case RxStopped:
		return "Stopped"
	case RxInit:
		return "Init"
	case RxIdleWaitingCtrl:
		return "IdleWaitingCtrl"
	case RxRecvStarted:
		return "RecvStarted"
	case RxRecvAddressed:
		return "RecvAddressed"
	case RxRecvLengthInvalid:
		return "RecvLengthInvalid"
	case RxRecvNotAddressed:
		return "RecvNotAddressed"
	default:
		return "Unknown"
	}
}

// TxState is the transmit-side state machine's current state.
type TxState int

const (
	TxReset TxState = iota
	TxStopped
	TxInit
	TxIdle
	TxSending
	TxWaitingAck
)

func (s TxState) String() string {
	switch s {
	case TxReset:
		return "Reset"
	case TxStopped:
		return "Stopped"
	case TxInit:
		return "Init"
	case TxIdle:
		return "Idle"
	case TxSending:
		return "Sending"
	case TxWaitingAck:
		return "WaitingAck"
	default:
		return "Unknown"
	}
}

// EventKind identifies the driver's three observable event kinds.
type EventKind int

const (
	EventReset EventKind = iota
	EventReceivedTelegram
	EventReceptionError
)

func (k EventKind) String() string {
	switch k {
	case EventReset:
		return "Reset"
	case EventReceivedTelegram:
		return "ReceivedTelegram"
	case EventReceptionError:
		return "ReceptionError"
	default:
		return "Unknown"
	}
}
