// Package uart adapts a real serial port to pkg/tpuart.UART using
// go.bug.st/serial. It is the only part of this module that talks to an
// actual device; everything above it works against the interface.
package uart

import (
	"errors"
	"time"

	"go.bug.st/serial"
)

// pollTimeout bounds how long a single ReadByte call may wait for a byte
// before reporting "none available". It must stay well under the TPUART
// driver's own timing budgets (the tightest being the ~1.7ms ACK
// deadline) so a caller spinning RxTask never stalls behind it.
const pollTimeout = 200 * time.Microsecond

// Serial wraps a go.bug.st/serial port configured the way the TPUART
// chip requires: 19200 baud, 8 data bits, even parity, 1 stop bit.
type Serial struct {
	portName string
	port     serial.Port
}

// New returns a Serial bound to the given port name (e.g. "/dev/ttyUSB0").
// The port is not opened until Reopen is called.
func New(portName string) *Serial {
	return &Serial{portName: portName}
}

func (s *Serial) mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: 19200,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
}

// Reopen closes the port if open, then reopens it at the TPUART's
// required settings.
func (s *Serial) Reopen() error {
	if s.port != nil {
		_ = s.port.Close()
		s.port = nil
	}
	port, err := serial.Open(s.portName, s.mode())
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		_ = port.Close()
		return err
	}
	s.port = port
	return nil
}

// Close closes the underlying port.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Write writes p to the port.
func (s *Serial) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, errors.New("uart: write on unopened port")
	}
	return s.port.Write(p)
}

// ReadByte polls for a single byte, returning ok=false (not an error) if
// none arrived within pollTimeout.
func (s *Serial) ReadByte() (byte, bool, error) {
	if s.port == nil {
		return 0, false, errors.New("uart: read on unopened port")
	}
	var buf [1]byte
	n, err := s.port.Read(buf[:])
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	return buf[0], true, nil
}
