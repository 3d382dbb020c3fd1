package ehci

import (
	"encoding/binary"

	"github.com/ardnew/softehci/pkg"
)

// TokenStatus holds the status byte of a qTD token.
type TokenStatus uint8

// qTD status bits (EHCI 3.5.3).
const (
	TokenPing             TokenStatus = 1 << 0 // Ping state / ERR
	TokenSplitState       TokenStatus = 1 << 1 // Split transaction state
	TokenMissedMicroFrame TokenStatus = 1 << 2 // Missed micro-frame
	TokenTransactionError TokenStatus = 1 << 3 // Transaction error (XactErr)
	TokenBabble           TokenStatus = 1 << 4 // Babble detected
	TokenBufferError      TokenStatus = 1 << 5 // Data buffer error
	TokenHalted           TokenStatus = 1 << 6 // Halted
	TokenActive           TokenStatus = 1 << 7 // Active

	// TokenErrors are the bits stamped by an aborted transaction.
	TokenErrors = TokenBabble | TokenBufferError | TokenTransactionError
)

// Has reports whether every bit in mask is set.
func (s TokenStatus) Has(mask TokenStatus) bool {
	return s&mask == mask
}

// PID is the token PID code of a qTD.
type PID uint8

// PID codes.
const (
	PIDOut   PID = 0
	PIDIn    PID = 1
	PIDSetup PID = 2
)

// String returns the PID name.
func (p PID) String() string {
	switch p {
	case PIDOut:
		return "OUT"
	case PIDIn:
		return "IN"
	case PIDSetup:
		return "SETUP"
	default:
		return "reserved"
	}
}

// QTDSize is the size of a qTD in descriptor memory.
const QTDSize = 32

// QTDBuffers is the number of buffer page pointers in a qTD.
const QTDBuffers = 5

// QTD is a queue element transfer descriptor. It is a plain value: copying
// a QTD snapshots every field.
type QTD struct {
	Next        Link
	AltNext     Link
	Status      TokenStatus
	PID         PID
	ErrorCount  uint8  // CERR, 0-3
	CurrentPage uint8  // C_Page, 0-4
	IOC         bool   // Interrupt on complete
	TotalBytes  uint16 // Bytes left to transfer, 0-0x7FFF
	DataToggle  bool
	Buffers     [QTDBuffers]Addr
}

// IsActive reports whether the qTD is waiting to execute.
func (q *QTD) IsActive() bool {
	return q.Status.Has(TokenActive)
}

// IsHalted reports whether the halt bit is set.
func (q *QTD) IsHalted() bool {
	return q.Status.Has(TokenHalted)
}

// HasError reports whether any transaction error bit is set.
func (q *QTD) HasError() bool {
	return q.Status&TokenErrors != 0
}

// Retire clears the active bit.
func (q *QTD) Retire() {
	q.Status &^= TokenActive
}

// MarkError stamps babble, buffer and transaction error bits.
func (q *QTD) MarkError() {
	q.Status |= TokenErrors
}

// TransferStatus classifies the qTD.
func (q *QTD) TransferStatus() pkg.TransferStatus {
	switch {
	case q.IsActive():
		return pkg.TransferStatusActive
	case q.HasError():
		return pkg.TransferStatusError
	case q.IsHalted():
		return pkg.TransferStatusHalted
	default:
		return pkg.TransferStatusSuccess
	}
}

// Token field layout.
const (
	tokenPIDShift   = 8
	tokenCERRShift  = 10
	tokenCPageShift = 12
	tokenIOC        = 1 << 15
	tokenBytesShift = 16
	tokenBytesMask  = 0x7FFF
	tokenToggle     = 1 << 31
)

func (q *QTD) token() uint32 {
	t := uint32(q.Status) |
		uint32(q.PID&0x3)<<tokenPIDShift |
		uint32(q.ErrorCount&0x3)<<tokenCERRShift |
		uint32(q.CurrentPage&0x7)<<tokenCPageShift |
		uint32(q.TotalBytes&tokenBytesMask)<<tokenBytesShift
	if q.IOC {
		t |= tokenIOC
	}
	if q.DataToggle {
		t |= tokenToggle
	}
	return t
}

func (q *QTD) setToken(t uint32) {
	q.Status = TokenStatus(t)
	q.PID = PID(t>>tokenPIDShift) & 0x3
	q.ErrorCount = uint8(t>>tokenCERRShift) & 0x3
	q.CurrentPage = uint8(t>>tokenCPageShift) & 0x7
	q.IOC = t&tokenIOC != 0
	q.TotalBytes = uint16(t>>tokenBytesShift) & tokenBytesMask
	q.DataToggle = t&tokenToggle != 0
}

// MarshalTo writes the 32-byte hardware layout of the qTD to buf.
// Returns QTDSize, or 0 if buf is too small.
func (q *QTD) MarshalTo(buf []byte) int {
	if len(buf) < QTDSize {
		return 0
	}
	le := binary.LittleEndian
	le.PutUint32(buf[0:], q.Next.Raw())
	le.PutUint32(buf[4:], q.AltNext.Raw())
	le.PutUint32(buf[8:], q.token())
	for i, b := range q.Buffers {
		le.PutUint32(buf[12+4*i:], uint32(b))
	}
	return QTDSize
}

// ParseQTD decodes the 32-byte hardware layout of a qTD.
// Returns false if data is too short.
func ParseQTD(data []byte, out *QTD) bool {
	if len(data) < QTDSize {
		return false
	}
	le := binary.LittleEndian
	out.Next = ParseLink(le.Uint32(data[0:]))
	out.AltNext = ParseLink(le.Uint32(data[4:]))
	out.setToken(le.Uint32(data[8:]))
	for i := range out.Buffers {
		out.Buffers[i] = Addr(le.Uint32(data[12+4*i:]))
	}
	return true
}
