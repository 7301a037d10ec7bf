package tpuart

import "github.com/knxtpuart/go-tpuart/pkg/telegram"

// UART is the byte-oriented transport the driver owns exclusively between
// Reset and Close. Implementations must never block: ReadByte polls for
// at most one already-buffered byte and returns immediately if none is
// available. See transport/uart for the go.bug.st/serial-backed
// implementation used outside of tests.
type UART interface {
	// Reopen closes (if open) then reopens the port at 19200 baud, 8 data
	// bits, even parity, 1 stop bit.
	Reopen() error
	Close() error
	Write(p []byte) (int, error)
	// ReadByte returns the next buffered byte. ok is false if none is
	// currently available; it is not an error condition.
	ReadByte() (b byte, ok bool, err error)
}

// Event is the payload delivered to the driver's registered callback.
// Telegram is populated only for EventReceivedTelegram, and is a
// snapshot safe to retain past the next received frame.
type Event struct {
	Kind     EventKind
	Telegram *telegram.Telegram
}

// EventCallback receives driver events. It must not block and must not
// call back into the driver that invoked it.
type EventCallback func(Event)
