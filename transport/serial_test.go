package transport

import (
	"testing"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
)

func TestSLCANEncodeDecodeRoundTrip(t *testing.T) {
	f, err := frame.New(frame.Identifier(0x18EE001C), []byte{1, 0, 0, 0, 0, 0, 0, 0}, 0, frame.Outgoing)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	line := encodeSLCAN(f)
	got, ok := decodeSLCAN(line[:len(line)-1]) // strip trailing CR as ReadFrame would
	if !ok {
		t.Fatalf("decodeSLCAN(%q) failed", line)
	}
	if got.ID != f.ID {
		t.Errorf("ID = %#x, want %#x", uint32(got.ID), uint32(f.ID))
	}
	if len(got.Data) != len(f.Data) {
		t.Fatalf("len(Data) = %d, want %d", len(got.Data), len(f.Data))
	}
	for i := range f.Data {
		if got.Data[i] != f.Data[i] {
			t.Errorf("Data[%d] = %#x, want %#x", i, got.Data[i], f.Data[i])
		}
	}
}

func TestDecodeSLCANRejectsMalformed(t *testing.T) {
	cases := []string{"", "t1234", "T0000000", "XDEADBEEF8"}
	for _, c := range cases {
		if _, ok := decodeSLCAN(c); ok {
			t.Errorf("decodeSLCAN(%q) succeeded, want failure", c)
		}
	}
}
