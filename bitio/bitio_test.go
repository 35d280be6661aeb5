package bitio

import "testing"

func TestBitRoundTrip(t *testing.T) {
	buf := make([]uint64, 2)
	for i := 0; i < 128; i++ {
		WriteBit(buf, i, uint8(i%2))
	}
	for i := 0; i < 128; i++ {
		want := uint8(i % 2)
		if got := ReadBit(buf, i); got != want {
			t.Fatalf("ReadBit(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestTwoBitsRoundTrip(t *testing.T) {
	buf := make([]uint64, 4)
	values := []uint8{0, 1, 2, 3, 3, 2, 1, 0, 2, 2, 1, 3}
	for i, v := range values {
		WriteTwoBits(buf, i, v)
	}
	for i, want := range values {
		if got := ReadTwoBits(buf, i); got != want {
			t.Fatalf("ReadTwoBits(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestByteRoundTrip(t *testing.T) {
	buf := make([]uint64, 4)
	values := []uint8{0x00, 0xFF, 0x7F, 0x80, 0x3C, 0xA5}
	for i, v := range values {
		WriteByte(buf, i, v)
	}
	for i, want := range values {
		if got := ReadByte(buf, i); got != want {
			t.Fatalf("ReadByte(%d) = %#x, want %#x", i, got, want)
		}
	}
}

func TestHasOneBit(t *testing.T) {
	buf := make([]uint64, 2)
	if HasOneBit(buf, 63) {
		t.Fatalf("expected no bits set")
	}
	WriteBit(buf, 70, 1)
	if HasOneBit(buf, 63) {
		t.Fatalf("bit 70 should not be visible within [0,63]")
	}
	if !HasOneBit(buf, 70) {
		t.Fatalf("bit 70 should be visible within [0,70]")
	}
	if !HasOneBit(buf, 127) {
		t.Fatalf("bit 70 should be visible within [0,127]")
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{96, 32, 3},
	}
	for _, c := range cases {
		if got := CeilDiv(c.a, c.b); got != c.want {
			t.Fatalf("CeilDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
