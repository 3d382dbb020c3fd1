package ehci

import (
	"encoding/binary"

	"github.com/ardnew/softehci/host/hal"
)

// QHDSize is the size of a queue head in descriptor memory, without the
// 64-bit extension fields.
const QHDSize = 48

// QHD is a queue head: one endpoint's entry in a schedule ring. Overlay is
// the controller's working copy of the qTD it is executing; it is always
// assigned by value.
type QHD struct {
	Next          Link // Horizontal link to the next queue head
	DeviceAddress hal.DeviceAddress
	Endpoint      uint8
	Speed         hal.Speed
	MaxPacketSize uint16
	Head          bool  // H bit, head of the reclamation list
	InterruptMask uint8 // S-mask, periodic queue heads only
	Current       Addr  // qTD most recently copied into Overlay
	Overlay       QTD
}

// Endpoint characteristics layout (EHCI 3.6.2).
const (
	charEndpointShift = 8
	charSpeedShift    = 12
	charHead          = 1 << 15
	charMaxPktShift   = 16
	charMaxPktMask    = 0x7FF
)

// speedBits is the two-bit speed encoding shared by the queue head EPS
// field and the port speed field: 0 full, 1 low, 2 high.
func speedBits(s hal.Speed) uint32 {
	switch s {
	case hal.SpeedFull:
		return 0
	case hal.SpeedLow:
		return 1
	case hal.SpeedHigh:
		return 2
	default:
		return 3
	}
}

func speedFromBits(b uint32) hal.Speed {
	switch b & 0x3 {
	case 0:
		return hal.SpeedFull
	case 1:
		return hal.SpeedLow
	case 2:
		return hal.SpeedHigh
	default:
		return hal.SpeedUnknown
	}
}

// MarshalTo writes the 48-byte hardware layout of the queue head to buf.
// Returns QHDSize, or 0 if buf is too small.
func (q *QHD) MarshalTo(buf []byte) int {
	if len(buf) < QHDSize {
		return 0
	}
	chars := uint32(q.DeviceAddress&0x7F) |
		uint32(q.Endpoint&0xF)<<charEndpointShift |
		speedBits(q.Speed)<<charSpeedShift |
		uint32(q.MaxPacketSize&charMaxPktMask)<<charMaxPktShift
	if q.Head {
		chars |= charHead
	}
	le := binary.LittleEndian
	le.PutUint32(buf[0:], q.Next.Raw())
	le.PutUint32(buf[4:], chars)
	le.PutUint32(buf[8:], uint32(q.InterruptMask))
	le.PutUint32(buf[12:], uint32(q.Current.Align32()))
	q.Overlay.MarshalTo(buf[16:])
	return QHDSize
}

// ParseQHD decodes the 48-byte hardware layout of a queue head.
// Returns false if data is too short.
func ParseQHD(data []byte, out *QHD) bool {
	if len(data) < QHDSize {
		return false
	}
	le := binary.LittleEndian
	out.Next = ParseLink(le.Uint32(data[0:]))
	chars := le.Uint32(data[4:])
	out.DeviceAddress = hal.DeviceAddress(chars & 0x7F)
	out.Endpoint = uint8(chars>>charEndpointShift) & 0xF
	out.Speed = speedFromBits(chars >> charSpeedShift)
	out.MaxPacketSize = uint16(chars>>charMaxPktShift) & charMaxPktMask
	out.Head = chars&charHead != 0
	out.InterruptMask = uint8(le.Uint32(data[8:]))
	out.Current = Addr(le.Uint32(data[12:])).Align32()
	return ParseQTD(data[16:], &out.Overlay)
}
