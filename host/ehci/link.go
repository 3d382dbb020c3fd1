package ehci

import "fmt"

// Addr is a descriptor memory address as seen by the controller.
type Addr uint32

// descriptorAlign is the alignment EHCI requires of qTDs and queue heads.
const descriptorAlign = 32

// Align32 clears the low five bits of the address.
func (a Addr) Align32() Addr {
	return a &^ (descriptorAlign - 1)
}

// String returns the address in hexadecimal.
func (a Addr) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

// LinkType is the Typ field of a horizontal link pointer.
type LinkType uint8

// Link target types (EHCI 3.1).
const (
	LinkITD  LinkType = 0 // Isochronous transfer descriptor
	LinkQH   LinkType = 1 // Queue head
	LinkSITD LinkType = 2 // Split-transaction isochronous descriptor
	LinkFSTN LinkType = 3 // Frame span traversal node
)

// Link field bit layout.
const (
	linkTerminate = 0x1
	linkTypeShift = 1
	linkTypeMask  = 0x3
	linkAddrMask  = ^uint32(descriptorAlign - 1)
)

// Link is a chain-next reference. It is either End (the terminate bit is
// set and there is no further descriptor) or Next, which names a target
// address. A Next link to address zero is not the same as End.
type Link struct {
	addr Addr
	typ  LinkType
	next bool
}

// End returns a terminated link.
func End() Link {
	return Link{}
}

// Next returns a link to the qTD at addr.
func Next(addr Addr) Link {
	return Link{addr: addr.Align32(), next: true}
}

// NextQH returns a horizontal link to the queue head at addr.
func NextQH(addr Addr) Link {
	return Link{addr: addr.Align32(), typ: LinkQH, next: true}
}

// IsEnd reports whether the link is terminated.
func (l Link) IsEnd() bool {
	return !l.next
}

// Target returns the linked address. ok is false for End.
func (l Link) Target() (addr Addr, ok bool) {
	return l.addr, l.next
}

// Type returns the link target type. It is meaningless for End.
func (l Link) Type() LinkType {
	return l.typ
}

// Raw encodes the link in its hardware form.
func (l Link) Raw() uint32 {
	if !l.next {
		return linkTerminate
	}
	return uint32(l.addr)&linkAddrMask | uint32(l.typ&linkTypeMask)<<linkTypeShift
}

// ParseLink decodes a hardware link pointer. Any address bits that remain
// in a terminated pointer are discarded.
func ParseLink(raw uint32) Link {
	if raw&linkTerminate != 0 {
		return End()
	}
	return Link{
		addr: Addr(raw & linkAddrMask),
		typ:  LinkType(raw>>linkTypeShift) & linkTypeMask,
		next: true,
	}
}

// String returns "end" or the target address.
func (l Link) String() string {
	if !l.next {
		return "end"
	}
	return "->" + l.addr.String()
}
