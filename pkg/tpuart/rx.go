package tpuart

import (
	"time"

	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

// RxTask pulls at most one byte off the UART and advances the RX state
// machine. When no byte is available it checks for end-of-packet: if RX
// is at or past RecvStarted and more than eopTimeout has elapsed since
// the last received byte, the in-progress telegram is finalized.
func (d *Driver) RxTask() {
	b, ok, err := d.uart.ReadByte()
	if err != nil {
		d.log.Error("uart read error: %v", err)
		return
	}
	if ok {
		d.processRxByte(b)
		return
	}
	if d.rxState >= RxRecvStarted && !d.lastByteTime.IsZero() && time.Since(d.lastByteTime) > eopTimeout {
		d.rxTaskFinished()
	}
}

func (d *Driver) processRxByte(b byte) {
	switch d.rxState {
	case RxIdleWaitingCtrl:
		d.processIdleByte(b)
	case RxRecvStarted, RxRecvAddressed, RxRecvNotAddressed, RxRecvLengthInvalid:
		d.appendRxByte(b)
	}
}

func (d *Driver) processIdleByte(b byte) {
	if b&controlFieldMask == controlFieldPattern {
		d.rxBytes[0] = b
		d.readBytes = 1
		d.expectedLen = 0
		d.lastByteTime = time.Now()
		d.rxState = RxRecvStarted
		return
	}
	switch b {
	case chipDataConfirmSuccess, chipDataConfirmFailed:
		if d.txState == TxWaitingAck {
			d.txState = TxIdle
		} else {
			d.log.Debug("stray data-confirm byte %#02x while tx=%s", b, d.txState)
		}
		return
	case chipResetIndication:
		d.rxState = RxStopped
		d.txState = TxStopped
		d.emit(Event{Kind: EventReset})
		return
	}
	if b&stateIndicationMask == stateIndicationPattern {
		return // state indication: not interesting to the host
	}
	d.log.Debug("stray byte %#02x in IdleWaitingCtrl", b)
}

// appendRxByte stores the next byte of an in-progress telegram, resolves
// addressing once the routing byte (index 5) arrives, and finishes the
// telegram once expectedLen bytes have been collected.
func (d *Driver) appendRxByte(b byte) {
	idx := d.readBytes
	if idx < len(d.rxBytes) {
		d.rxBytes[idx] = b
	}
	d.readBytes++
	d.lastByteTime = time.Now()

	if d.rxState == RxRecvStarted && idx == telegram.OffsetRouting {
		d.resolveAddressing(b)
	}

	if d.rxState != RxRecvLengthInvalid && d.expectedLen > 0 && d.readBytes == d.expectedLen {
		d.rxTaskFinished()
		return
	}
	if d.readBytes >= telegram.MaxFrameSize && d.rxState != RxRecvLengthInvalid {
		d.rxState = RxRecvLengthInvalid
	}
}

// resolveAddressing runs once per telegram, right after the routing byte
// is read: it computes the declared frame length, decides whether the
// frame is addressed to this device, and must ACK within ackDeadline.
func (d *Driver) resolveAddressing(routingByte byte) {
	// +8 rather than the header's own 7-byte prefix: the checksum byte
	// must already be in the buffer by the time expectedLen is reached,
	// or rxTaskFinished's Verify() would run against a truncated frame.
	d.expectedLen = int(routingByte&routingLengthMask) + 8
	source := telegram.PhysicalAddress(uint16(d.rxBytes[telegram.OffsetSource])<<8 | uint16(d.rxBytes[telegram.OffsetSource+1]))
	target := telegram.GroupAddress(uint16(d.rxBytes[telegram.OffsetTarget])<<8 | uint16(d.rxBytes[telegram.OffsetTarget+1]))

	if source != d.physicalAddress && d.subscribed(target) {
		d.uart.Write([]byte{ctrlAckAddressed})
		d.rxState = RxRecvAddressed
		return
	}
	d.uart.Write([]byte{ctrlAckNotAddressed})
	d.rxState = RxRecvNotAddressed
}

// rxTaskFinished dispatches on the terminal RX state, emits the
// appropriate event if any, and returns RX to IdleWaitingCtrl.
func (d *Driver) rxTaskFinished() {
	switch d.rxState {
	case RxRecvAddressed:
		tg := telegram.FromBytes(d.rxBytes[:d.readBytes])
		if tg.Verify() {
			d.lastReceived = tg
			d.emit(Event{Kind: EventReceivedTelegram, Telegram: tg})
		} else {
			d.emit(Event{Kind: EventReceptionError})
		}
	case RxRecvStarted, RxRecvLengthInvalid:
		d.emit(Event{Kind: EventReceptionError})
	case RxRecvNotAddressed:
		// not addressed to us: no event
	}
	d.rxState = RxIdleWaitingCtrl
	d.readBytes = 0
	d.expectedLen = 0
}
