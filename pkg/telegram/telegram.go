package telegram

// Telegram is a single KNX standard-frame link-layer telegram backed by a
// fixed buffer. All header fields are accessed by bit-precise
// read-modify-write on the buffer; there is no parallel struct state to
// drift out of sync with the bytes on the wire.
type Telegram struct {
	buf [MaxFrameSize]byte
}

// New returns a telegram with the default control field and routing
// counter, ready for its source/target/command/payload to be filled in.
func New() *Telegram {
	t := &Telegram{}
	t.buf[OffsetControl] = DefaultControl
	t.SetRoutingCounter(DefaultRoutingCounter)
	t.setPayloadLengthField(MinPayloadLength)
	return t
}

// FromBytes wraps raw, already-framed bytes (e.g. as assembled by the RX
// state machine) without copying beyond the fixed buffer. b must be at
// least headerPrefixSize+1 bytes; longer telegrams are truncated to
// MaxFrameSize.
func FromBytes(b []byte) *Telegram {
	t := &Telegram{}
	n := len(b)
	if n > MaxFrameSize {
		n = MaxFrameSize
	}
	copy(t.buf[:n], b[:n])
	return t
}

// Raw returns the telegram's bytes, including the checksum, sized to
// TotalLength.
func (t *Telegram) Raw() []byte {
	return t.buf[:t.TotalLength()]
}

// TotalLength is 8 + PayloadLength, i.e. the 7-byte prefix (control
// through command-high), the PayloadLength bytes (command-low plus any
// extended payload), and the trailing checksum byte.
func (t *Telegram) TotalLength() int {
	return 8 + t.PayloadLength()
}

// Control returns the raw control byte.
func (t *Telegram) Control() byte { return t.buf[OffsetControl] }

// Priority returns the frame's priority field.
func (t *Telegram) Priority() Priority {
	return Priority((t.buf[OffsetControl] & ctrlPriorityMask) >> 2)
}

// SetPriority sets the priority field, preserving all other control bits.
func (t *Telegram) SetPriority(p Priority) {
	t.buf[OffsetControl] = (t.buf[OffsetControl] &^ ctrlPriorityMask) | (uint8(p)<<2)&ctrlPriorityMask
}

// Repeated reports whether the control field's repeat bit marks this
// telegram as a retransmission.
func (t *Telegram) Repeated() bool {
	return t.buf[OffsetControl]&ctrlRepeatMask == 0
}

// SetRepeated sets or clears the repeat bit.
func (t *Telegram) SetRepeated(repeated bool) {
	if repeated {
		t.buf[OffsetControl] &^= ctrlRepeatMask
	} else {
		t.buf[OffsetControl] |= ctrlRepeatMask
	}
}

// Source returns the source physical address.
func (t *Telegram) Source() PhysicalAddress {
	return PhysicalAddress(uint16(t.buf[OffsetSource])<<8 | uint16(t.buf[OffsetSource+1]))
}

// SetSource stamps the source physical address, big-endian.
func (t *Telegram) SetSource(a PhysicalAddress) {
	t.buf[OffsetSource] = byte(a >> 8)
	t.buf[OffsetSource+1] = byte(a)
}

// Multicast reports whether the target field is a group address.
func (t *Telegram) Multicast() bool {
	return t.buf[OffsetRouting]&routingMulticastBit != 0
}

// SetMulticast sets or clears the multicast (group-addressed) bit.
func (t *Telegram) SetMulticast(multicast bool) {
	if multicast {
		t.buf[OffsetRouting] |= routingMulticastBit
	} else {
		t.buf[OffsetRouting] &^= routingMulticastBit
	}
}

// targetRaw returns the raw 16-bit target field, regardless of address kind.
func (t *Telegram) targetRaw() uint16 {
	return uint16(t.buf[OffsetTarget])<<8 | uint16(t.buf[OffsetTarget+1])
}

func (t *Telegram) setTargetRaw(v uint16) {
	t.buf[OffsetTarget] = byte(v >> 8)
	t.buf[OffsetTarget+1] = byte(v)
}

// TargetGroup returns the target field interpreted as a group address.
func (t *Telegram) TargetGroup() GroupAddress { return GroupAddress(t.targetRaw()) }

// SetTargetGroup stamps a group address target and sets the multicast bit.
func (t *Telegram) SetTargetGroup(a GroupAddress) {
	t.setTargetRaw(uint16(a))
	t.SetMulticast(true)
}

// TargetPhysical returns the target field interpreted as a physical address.
func (t *Telegram) TargetPhysical() PhysicalAddress { return PhysicalAddress(t.targetRaw()) }

// SetTargetPhysical stamps a physical address target and clears the
// multicast bit.
func (t *Telegram) SetTargetPhysical(a PhysicalAddress) {
	t.setTargetRaw(uint16(a))
	t.SetMulticast(false)
}

// RoutingCounter returns the routing field's hop count.
func (t *Telegram) RoutingCounter() uint8 {
	return (t.buf[OffsetRouting] & routingCounterMask) >> routingCounterShift
}

// SetRoutingCounter sets the routing field's hop count.
func (t *Telegram) SetRoutingCounter(c uint8) {
	t.buf[OffsetRouting] = (t.buf[OffsetRouting] &^ routingCounterMask) | (c<<routingCounterShift)&routingCounterMask
}

// PayloadLength returns the routing field's LLLL length indicator: 1 for a
// short (nibble-carried) payload, or dataLen+1 for an extended payload.
func (t *Telegram) PayloadLength() int {
	return int(t.buf[OffsetRouting] & routingLengthMask)
}

func (t *Telegram) setPayloadLengthField(n int) {
	t.buf[OffsetRouting] = (t.buf[OffsetRouting] &^ routingLengthMask) | (uint8(n) & routingLengthMask)
}

// Command returns the 10-bit APCI command field.
func (t *Telegram) Command() Command {
	hi := uint16(t.buf[OffsetCommandHi]&commandHiValueMask) << 8
	lo := uint16(t.buf[OffsetCommandLo] & commandLoValueMask)
	return Command(hi | lo)
}

// SetCommand sets the APCI command field, preserving the data nibble and
// the must-be-zero high bits of the command-high byte.
func (t *Telegram) SetCommand(c Command) {
	hi := byte((uint16(c) >> 8) & uint16(commandHiValueMask))
	lo := byte(uint16(c) & uint16(commandLoValueMask))
	t.buf[OffsetCommandHi] = (t.buf[OffsetCommandHi] &^ commandHiValueMask) | hi
	t.buf[OffsetCommandLo] = (t.buf[OffsetCommandLo] &^ commandLoValueMask) | lo
}

// DataNibble returns the 6-bit short-payload value carried in the
// command-low byte.
func (t *Telegram) DataNibble() byte {
	return t.buf[OffsetCommandLo] & dataNibbleMask
}

// SetPayload writes a DPT's encoded bytes into the telegram. When extra is
// empty, nibble is the entire encoded value and it is folded into the
// command-low byte's low six bits (the short-payload case: bool, 2-bit and
// 4-bit DPTs). Otherwise the payload length is set to len(extra)+1 and up
// to 13 bytes of extra are copied into the extended payload area; nibble
// is ignored.
func (t *Telegram) SetPayload(nibble byte, extra []byte) {
	if len(extra) == 0 {
		t.buf[OffsetCommandLo] = (t.buf[OffsetCommandLo] &^ dataNibbleMask) | (nibble & dataNibbleMask)
		t.setPayloadLengthField(MinPayloadLength)
		return
	}
	t.buf[OffsetCommandLo] &^= dataNibbleMask
	n := len(extra)
	if n > MaxPayloadLength-2 {
		n = MaxPayloadLength - 2 // 13: MaxPayloadLength(15) - 1(nibble slot) - 1(encoding of len+1)
	}
	copy(t.buf[OffsetPayload:], extra[:n])
	t.setPayloadLengthField(n + 1)
}

// Payload returns the extended payload bytes (empty for a short payload).
func (t *Telegram) Payload() []byte {
	n := t.PayloadLength() - 1
	if n <= 0 {
		return nil
	}
	return t.buf[OffsetPayload : OffsetPayload+n]
}

// Checksum returns the stored checksum byte.
func (t *Telegram) Checksum() byte {
	return t.buf[checksumOffset(t.PayloadLength())]
}

// Update recomputes and stores the checksum over the current header and
// payload bytes.
func (t *Telegram) Update() {
	n := t.PayloadLength()
	t.buf[checksumOffset(n)] = calculateChecksum(t.buf[:], n)
}

// Verify reports whether the stored checksum matches a fresh computation.
func (t *Telegram) Verify() bool {
	n := t.PayloadLength()
	return t.buf[checksumOffset(n)] == calculateChecksum(t.buf[:], n)
}

// Classify returns the telegram's validity, checking structural fields in
// the order the TPUART driver itself relies on: a malformed control field
// or unsupported frame format must be caught before the payload length
// and command fields are trusted at all.
func (t *Telegram) Classify() Validity {
	ctrl := t.buf[OffsetControl]
	if ctrl&invalidControlMask != invalidControlPattern {
		return InvalidControlField
	}
	if ctrl&ctrlFrameFormatMask != ctrlStandardPattern {
		return UnsupportedFrameFormat
	}
	if t.PayloadLength() == 0 {
		return IncorrectPayloadLength
	}
	if t.buf[OffsetCommandHi]&commandHiPatternMask != commandHiPattern {
		return InvalidCommandField
	}
	switch t.Command() {
	case CommandValueRead, CommandValueResponse, CommandValueWrite, CommandMemoryWrite:
		// known
	default:
		return UnknownCommand
	}
	if !t.Verify() {
		return IncorrectChecksum
	}
	return Valid
}
