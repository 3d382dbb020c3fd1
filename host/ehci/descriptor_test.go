package ehci

import (
	"testing"

	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

// =============================================================================
// QTD Tests
// =============================================================================

func TestQTD_MarshalTo(t *testing.T) {
	q := QTD{
		Next:        Next(0x2000_0100),
		AltNext:     End(),
		Status:      TokenActive,
		PID:         PIDIn,
		ErrorCount:  3,
		CurrentPage: 1,
		IOC:         true,
		TotalBytes:  18,
		DataToggle:  true,
		Buffers:     [QTDBuffers]Addr{0x2000_1000, 0x2000_2000},
	}

	buf := make([]byte, QTDSize)
	if n := q.MarshalTo(buf); n != QTDSize {
		t.Fatalf("MarshalTo returned %d, want %d", n, QTDSize)
	}

	want := []byte{
		0x00, 0x01, 0x00, 0x20, // next
		0x01, 0x00, 0x00, 0x00, // alt next, terminated
		0x80, 0x9D, 0x12, 0x80, // token
		0x00, 0x10, 0x00, 0x20, // buffer 0
		0x00, 0x20, 0x00, 0x20, // buffer 1
	}
	for i, b := range want {
		if buf[i] != b {
			t.Errorf("buf[%d] = 0x%02X, want 0x%02X", i, buf[i], b)
		}
	}
}

func TestQTD_RoundTrip(t *testing.T) {
	original := QTD{
		Next:        Next(0x2000_0040),
		AltNext:     Next(0x2000_0060),
		Status:      TokenHalted | TokenBabble,
		PID:         PIDSetup,
		ErrorCount:  1,
		CurrentPage: 4,
		TotalBytes:  0x7FFF,
		Buffers:     [QTDBuffers]Addr{1, 2, 3, 4, 5},
	}

	buf := make([]byte, QTDSize)
	original.MarshalTo(buf)

	var parsed QTD
	if !ParseQTD(buf, &parsed) {
		t.Fatal("ParseQTD returned false")
	}
	if parsed != original {
		t.Errorf("round-trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestQTD_ShortBuffers(t *testing.T) {
	var q QTD
	if n := q.MarshalTo(make([]byte, QTDSize-1)); n != 0 {
		t.Errorf("MarshalTo to small buffer returned %d, want 0", n)
	}
	if ParseQTD(make([]byte, QTDSize-1), &q) {
		t.Error("ParseQTD should return false for short data")
	}
}

func TestQTD_TransferStatus(t *testing.T) {
	tests := []struct {
		status TokenStatus
		want   pkg.TransferStatus
	}{
		{TokenActive, pkg.TransferStatusActive},
		{TokenActive | TokenHalted, pkg.TransferStatusActive},
		{0, pkg.TransferStatusSuccess},
		{TokenPing, pkg.TransferStatusSuccess},
		{TokenHalted, pkg.TransferStatusHalted},
		{TokenHalted | TokenBabble, pkg.TransferStatusError},
		{TokenErrors, pkg.TransferStatusError},
	}

	for _, tt := range tests {
		q := QTD{Status: tt.status}
		if got := q.TransferStatus(); got != tt.want {
			t.Errorf("QTD{Status: %#02x}.TransferStatus() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestQTD_RetireAndMarkError(t *testing.T) {
	q := QTD{Status: TokenActive | TokenPing}
	q.Retire()
	if q.IsActive() {
		t.Error("Retire left active bit set")
	}
	if !q.Status.Has(TokenPing) {
		t.Error("Retire cleared unrelated bits")
	}
	q.MarkError()
	if !q.Status.Has(TokenBabble | TokenBufferError | TokenTransactionError) {
		t.Errorf("status = %#02x, want all error bits", q.Status)
	}
}

func TestPID_String(t *testing.T) {
	tests := map[PID]string{PIDOut: "OUT", PIDIn: "IN", PIDSetup: "SETUP", PID(3): "reserved"}
	for pid, want := range tests {
		if got := pid.String(); got != want {
			t.Errorf("PID(%d).String() = %q, want %q", pid, got, want)
		}
	}
}

// =============================================================================
// QHD Tests
// =============================================================================

func TestQHD_RoundTrip(t *testing.T) {
	speeds := []hal.Speed{hal.SpeedLow, hal.SpeedFull, hal.SpeedHigh, hal.SpeedUnknown}

	for _, speed := range speeds {
		t.Run(speed.String(), func(t *testing.T) {
			original := QHD{
				Next:          NextQH(0x2000_0200),
				DeviceAddress: 0x7F,
				Endpoint:      0xF,
				Speed:         speed,
				MaxPacketSize: 512,
				Head:          true,
				InterruptMask: 0x01,
				Current:       0x2000_0300,
				Overlay: QTD{
					Next:       Next(0x2000_0320),
					AltNext:    End(),
					Status:     TokenActive,
					PID:        PIDOut,
					TotalBytes: 64,
				},
			}

			buf := make([]byte, QHDSize)
			if n := original.MarshalTo(buf); n != QHDSize {
				t.Fatalf("MarshalTo returned %d, want %d", n, QHDSize)
			}

			var parsed QHD
			if !ParseQHD(buf, &parsed) {
				t.Fatal("ParseQHD returned false")
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: got %+v, want %+v", parsed, original)
			}
		})
	}
}

func TestQHD_MarshalTo_Characteristics(t *testing.T) {
	q := QHD{
		Next:          End(),
		DeviceAddress: 3,
		Endpoint:      1,
		Speed:         hal.SpeedHigh,
		MaxPacketSize: 64,
		Head:          true,
		Overlay:       QTD{Next: End(), AltNext: End()},
	}

	buf := make([]byte, QHDSize)
	q.MarshalTo(buf)

	// address 3, endpoint 1, EPS high (2), H, max packet 64
	want := []byte{0x03, 0xA1, 0x40, 0x00}
	for i, b := range want {
		if buf[4+i] != b {
			t.Errorf("characteristics byte %d = 0x%02X, want 0x%02X", i, buf[4+i], b)
		}
	}
}

func TestParseQHD_TooShort(t *testing.T) {
	var q QHD
	if ParseQHD(make([]byte, QHDSize-1), &q) {
		t.Error("ParseQHD should return false for short data")
	}
}
