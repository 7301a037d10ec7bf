package dpt

import "testing"

func TestBoolRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		nibble := EncodeBool(v)
		if got := DecodeBool(nibble, 1); got != v {
			t.Errorf("DecodeBool(EncodeBool(%v)) = %v", v, got)
		}
	}
	if got := DecodeBool(1, 2); got != false {
		t.Errorf("DecodeBool with wrong payloadLength = %v, want false", got)
	}
}

func Test2BitRoundTrip(t *testing.T) {
	for v := uint8(0); v <= 3; v++ {
		if got := Decode2Bit(Encode2Bit(v), 1); got != v {
			t.Errorf("2-bit round trip for %d: got %d", v, got)
		}
	}
}

func Test4BitRoundTrip(t *testing.T) {
	for v := uint8(0); v <= 15; v++ {
		if got := Decode4Bit(Encode4Bit(v), 1); got != v {
			t.Errorf("4-bit round trip for %d: got %d", v, got)
		}
	}
}

func Test1ByteIntRoundTrip(t *testing.T) {
	for _, v := range []int8{-128, -1, 0, 1, 127} {
		enc := Encode1ByteInt(v)
		if got := Decode1ByteInt(enc, 2); got != v {
			t.Errorf("1-byte int round trip for %d: got %d", v, got)
		}
	}
}

func Test1ByteUintRoundTrip(t *testing.T) {
	for _, v := range []uint8{0, 1, 128, 255} {
		enc := Encode1ByteUint(v)
		if got := Decode1ByteUint(enc, 2); got != v {
			t.Errorf("1-byte uint round trip for %d: got %d", v, got)
		}
	}
}

func Test2ByteIntRoundTrip(t *testing.T) {
	for _, v := range []int16{-32768, -1234, 0, 1234, 32767} {
		enc := Encode2ByteInt(v)
		if got := Decode2ByteInt(enc, 3); got != v {
			t.Errorf("2-byte int round trip for %d: got %d", v, got)
		}
	}
}

func TestGroupWriteSample2ByteInt(t *testing.T) {
	enc := Encode2ByteInt(1234)
	want := []byte{0x04, 0xD2}
	if enc[0] != want[0] || enc[1] != want[1] {
		t.Errorf("Encode2ByteInt(1234) = %#v, want %#v", enc, want)
	}
}

func Test2ByteFloatRoundTrip(t *testing.T) {
	values := []float64{0, 1, -1, 7.14, 21.5, -40, 670760.96, -0.01, 100.23, -671088.64}
	for _, v := range values {
		enc := Encode2ByteFloat(v)
		got := Decode2ByteFloat(enc, 3)
		// quantized to steps of 0.01 * 2^exp; tolerate the exponent's own
		// resolution rather than exact equality.
		diff := got - v
		if diff < 0 {
			diff = -diff
		}
		if diff > 2.6 {
			t.Errorf("2-byte float round trip for %v: got %v (diff %v)", v, got, diff)
		}
	}
}

func Test2ByteFloatNeutralZeroOnBadLength(t *testing.T) {
	enc := Encode2ByteFloat(7.14)
	if got := Decode2ByteFloat(enc, 2); got != 0 {
		t.Errorf("Decode2ByteFloat with wrong payloadLength = %v, want 0", got)
	}
}

func Test4ByteIntRoundTrip(t *testing.T) {
	for _, v := range []int32{-2147483648, -1234567, 0, 1234567, 2147483647} {
		enc := Encode4ByteInt(v)
		if got := Decode4ByteInt(enc, 5); got != v {
			t.Errorf("4-byte int round trip for %d: got %d", v, got)
		}
	}
}

func Test4ByteFloatRoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 3.14159, -273.15, 1e30, -1e-30}
	for _, v := range values {
		enc := Encode4ByteFloat(v)
		if got := Decode4ByteFloat(enc, 5); got != v {
			t.Errorf("4-byte float round trip for %v: got %v", v, got)
		}
	}
}
