package ehci

import "github.com/ardnew/softehci/host/hal"

// Status is the USBSTS interrupt-cause register.
type Status uint32

// USBSTS bits. StatusAsyncComplete and StatusPeriodicComplete are the
// vendor-specific UAI/UPI bits of the NXP LPC18xx/43xx controller, which
// split USBINT by schedule.
const (
	StatusInterrupt        Status = 1 << 0  // USBINT
	StatusError            Status = 1 << 1  // USBERRINT
	StatusPortChange       Status = 1 << 2  // Port change detect
	StatusAsyncAdvance     Status = 1 << 5  // Interrupt on async advance
	StatusAsyncComplete    Status = 1 << 18 // UAI
	StatusPeriodicComplete Status = 1 << 19 // UPI
)

// Has reports whether every bit in mask is set.
func (s Status) Has(mask Status) bool {
	return s&mask == mask
}

// PortSC is the root port status and control register.
type PortSC uint32

// PORTSC bits.
const (
	PortConnect       PortSC = 1 << 0  // Current connect status
	PortConnectChange PortSC = 1 << 1  // Connect status change
	PortEnable        PortSC = 1 << 2  // Port enabled
	PortEnableChange  PortSC = 1 << 3  // Port enable change
	PortPower         PortSC = 1 << 12 // Port power

	portSpeedShift        = 26
	portSpeedMask  PortSC = 0x3 << portSpeedShift
)

// Has reports whether every bit in mask is set.
func (p PortSC) Has(mask PortSC) bool {
	return p&mask == mask
}

// Speed returns the negotiated port speed.
func (p PortSC) Speed() hal.Speed {
	return speedFromBits(uint32(p&portSpeedMask) >> portSpeedShift)
}

// SetSpeed records the negotiated port speed.
func (p *PortSC) SetSpeed(s hal.Speed) {
	*p = *p&^portSpeedMask | PortSC(speedBits(s))<<portSpeedShift
}

// Registers is the operational register block of one controller.
type Registers struct {
	Command          uint32
	Status           Status
	Interrupt        Status // USBINTR enable mask
	PortSC           PortSC
	AsyncListAddr    Addr
	PeriodicListBase Addr
}

// PortStatus decodes PORTSC.
func (r *Registers) PortStatus() hal.PortStatus {
	p := r.PortSC
	st := hal.PortStatus{
		Connected:     p.Has(PortConnect),
		Enabled:       p.Has(PortEnable),
		PowerOn:       p.Has(PortPower),
		ConnectChange: p.Has(PortConnectChange),
		EnableChange:  p.Has(PortEnableChange),
	}
	if st.Connected {
		st.Speed = p.Speed()
	}
	return st
}

// Acknowledge clears the given USBSTS bits, as a driver writing ones to the
// write-1-to-clear register would.
func (r *Registers) Acknowledge(mask Status) {
	r.Status &^= mask
}

// AcknowledgePort clears the write-1-to-clear change bits of PORTSC.
// Other bits in mask are ignored.
func (r *Registers) AcknowledgePort(mask PortSC) {
	r.PortSC &^= mask & (PortConnectChange | PortEnableChange)
}
