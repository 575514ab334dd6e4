package frame

import (
	"errors"
	"testing"
)

func TestBuildDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		priority uint8
		pgn      uint32
		src, dst uint8
	}{
		{"broadcast PDU2", 3, 0xFEF1, 0x1C, AddressGlobal},
		{"address claim", 6, PGNAddressClaim, 0x1C, AddressGlobal},
		{"destination specific request", 6, PGNRequest, 0x1C, AddressNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Build(tt.priority, tt.pgn, tt.src, tt.dst)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got := id.Priority(); got != tt.priority {
				t.Errorf("Priority() = %d, want %d", got, tt.priority)
			}
			if got := id.Source(); got != tt.src {
				t.Errorf("Source() = %#x, want %#x", got, tt.src)
			}
			if got := id.Destination(); got != tt.dst {
				t.Errorf("Destination() = %#x, want %#x", got, tt.dst)
			}
		})
	}
}

func TestS6IdentifierEncoding(t *testing.T) {
	id, err := Build(3, 0xFEF1, 0x1C, AddressGlobal)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if id != 0x0CFEF11C {
		t.Fatalf("Build() = %#x, want 0x0CFEF11C", uint32(id))
	}
	if got := id.Priority(); got != 3 {
		t.Errorf("Priority() = %d, want 3", got)
	}
	if got := id.PGN(); got != 0xFEF1 {
		t.Errorf("PGN() = %#x, want 0xFEF1", got)
	}
	if got := id.Source(); got != 0x1C {
		t.Errorf("Source() = %#x, want 0x1C", got)
	}
	if got := id.Destination(); got != AddressGlobal {
		t.Errorf("Destination() = %#x, want global", got)
	}
}

func TestBuildRejectsBroadcastOnlyWithDestination(t *testing.T) {
	if _, err := Build(6, 0xFEF1, 0x1C, 0x21); err != ErrUnsupportedDestination {
		t.Fatalf("Build() err = %v, want ErrUnsupportedDestination", err)
	}
}

func TestBuildRejectsInvalidPriority(t *testing.T) {
	if _, err := Build(8, PGNAddressClaim, 0x1C, AddressGlobal); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("Build() err = %v, want ErrInvalidPriority", err)
	}
}

func TestStandardIdentifierHasNoPriorityOrPGN(t *testing.T) {
	id := Identifier(0x123)
	if id.IsExtended() {
		t.Fatal("expected 11-bit identifier to not be extended")
	}
	if got := id.Priority(); got != 0 {
		t.Errorf("Priority() = %d, want 0", got)
	}
	if got := id.PGN(); got != 0 {
		t.Errorf("PGN() = %#x, want 0", got)
	}
}

func TestValid(t *testing.T) {
	if !Identifier(0x1FFFFFFF).Valid() {
		t.Fatal("expected max extended identifier to be valid")
	}
	if Identifier(0x20000000).Valid() {
		t.Fatal("expected identifier above 29 bits to be invalid")
	}
	if !Identifier(0x7FF).Valid() {
		t.Fatal("expected max standard identifier to be valid")
	}
}
