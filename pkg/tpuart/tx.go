package tpuart

import "time"

// TxTask advances the TX state machine. In Sending it writes the whole
// remaining telegram as start/continue/end byte pairs — but only while RX
// is IdleWaitingCtrl, since the chip multiplexes both directions over one
// UART and framing bytes must not interleave with an in-progress
// reception. In WaitingAck it gives up after ackTimeout if the RX loop
// never consumed a DataConfirmSuccess/Failed byte.
func (d *Driver) TxTask() {
	switch d.txState {
	case TxSending:
		if d.rxState != RxIdleWaitingCtrl {
			return
		}
		raw := d.sendBuf.Raw()
		for ; d.sendIndex < len(raw); d.sendIndex++ {
			ctrl := ctrlDataStartContinueReq
			if d.sendIndex == len(raw)-1 {
				ctrl = ctrlDataEndReq
			}
			if _, err := d.uart.Write([]byte{ctrl | byte(d.sendIndex), raw[d.sendIndex]}); err != nil {
				d.log.Error("tx write error: %v", err)
			}
		}
		d.sendTime = time.Now()
		d.txState = TxWaitingAck
	case TxWaitingAck:
		if time.Since(d.sendTime) > ackTimeout {
			d.txState = TxIdle
		}
	}
}
