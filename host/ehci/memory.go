package ehci

import (
	"fmt"
	"sort"

	"github.com/ardnew/softehci/pkg"
)

// MemoryBase is the first address handed out by a Memory.
const MemoryBase Addr = 0x2000_0000

// memoryLimit is one past the highest address a 32-bit controller can reach.
const memoryLimit = 1 << 32

// region is a data buffer allocated in descriptor memory.
type region struct {
	base Addr
	data []byte
}

func (r *region) end() uint64 {
	return uint64(r.base) + uint64(len(r.data))
}

// Memory is the descriptor memory shared by the engine and the driver that
// provisions schedules. Descriptors are stored as typed values keyed by
// their address; data buffers are byte regions. Addresses are never reused.
//
// Memory is not safe for concurrent use.
type Memory struct {
	next    uint64
	qhds    map[Addr]*QHD
	qtds    map[Addr]*QTD
	regions []region // sorted by base
}

// NewMemory returns an empty descriptor memory.
func NewMemory() *Memory {
	return &Memory{
		next: uint64(MemoryBase),
		qhds: make(map[Addr]*QHD),
		qtds: make(map[Addr]*QTD),
	}
}

// alloc reserves size bytes aligned to descriptorAlign. It fails when the
// allocation would run past the 32-bit address space.
func (m *Memory) alloc(size int) (Addr, error) {
	if size < 0 || uint64(size) > memoryLimit-m.next {
		return 0, fmt.Errorf("%w: %d bytes requested, %d left",
			pkg.ErrOutOfMemory, size, memoryLimit-m.next)
	}
	addr := m.next
	m.next = min((addr+uint64(size)+descriptorAlign-1)&^(descriptorAlign-1), memoryLimit)
	return Addr(addr), nil
}

// AllocQHD allocates a queue head with terminated links.
func (m *Memory) AllocQHD() (Addr, *QHD, error) {
	addr, err := m.alloc(QHDSize)
	if err != nil {
		return 0, nil, err
	}
	q := &QHD{
		Next:    End(),
		Overlay: QTD{Next: End(), AltNext: End()},
	}
	m.qhds[addr] = q
	return addr, q, nil
}

// AllocQTD allocates a single qTD with terminated links.
func (m *Memory) AllocQTD() (Addr, *QTD, error) {
	addr, err := m.alloc(QTDSize)
	if err != nil {
		return 0, nil, err
	}
	q := &QTD{Next: End(), AltNext: End()}
	m.qtds[addr] = q
	return addr, q, nil
}

// AllocQTDs allocates n contiguous qTDs and returns the address of the first.
// The i-th qTD lives at base + i*QTDSize.
func (m *Memory) AllocQTDs(n int) (Addr, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w: %d qTDs", pkg.ErrInvalidParameter, n)
	}
	base, err := m.alloc(n * QTDSize)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		m.qtds[base+Addr(i*QTDSize)] = &QTD{Next: End(), AltNext: End()}
	}
	return base, nil
}

// AllocBuffer allocates a zeroed data region of size bytes. A size below
// one still reserves a single byte.
func (m *Memory) AllocBuffer(size int) (Addr, error) {
	if size < 1 {
		size = 1
	}
	addr, err := m.alloc(size)
	if err != nil {
		return 0, err
	}
	m.regions = append(m.regions, region{base: addr, data: make([]byte, size)})
	return addr, nil
}

// QHD resolves the queue head at addr.
func (m *Memory) QHD(addr Addr) (*QHD, error) {
	q, ok := m.qhds[addr.Align32()]
	if !ok {
		return nil, fmt.Errorf("%w: no queue head at %v", pkg.ErrInvalidAddress, addr)
	}
	return q, nil
}

// QTD resolves the qTD at addr.
func (m *Memory) QTD(addr Addr) (*QTD, error) {
	q, ok := m.qtds[addr.Align32()]
	if !ok {
		return nil, fmt.Errorf("%w: no qTD at %v", pkg.ErrInvalidAddress, addr)
	}
	return q, nil
}

// Buffer returns the n bytes of data memory starting at addr. The address
// may point anywhere inside an allocated region, but all n bytes must fit
// in that region.
func (m *Memory) Buffer(addr Addr, n int) ([]byte, error) {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].end() > uint64(addr)
	})
	if i == len(m.regions) || m.regions[i].base > addr {
		return nil, fmt.Errorf("%w: no buffer at %v", pkg.ErrInvalidAddress, addr)
	}
	r := &m.regions[i]
	off := int(addr - r.base)
	if n < 0 || off+n > len(r.data) {
		return nil, fmt.Errorf("%w: %d bytes at %v, region holds %d",
			pkg.ErrBufferTooSmall, n, addr, len(r.data)-off)
	}
	return r.data[off : off+n], nil
}

// LinkRing links the queue heads into a closed ring in the given order.
// A single queue head links to itself.
func (m *Memory) LinkRing(heads ...Addr) error {
	for i, addr := range heads {
		q, err := m.QHD(addr)
		if err != nil {
			return err
		}
		q.Next = NextQH(heads[(i+1)%len(heads)])
	}
	return nil
}

// LinkChain queues the qTDs, in order, behind the overlay of the queue head
// at qhd. The last qTD is terminated.
func (m *Memory) LinkChain(qhd Addr, qtds ...Addr) error {
	q, err := m.QHD(qhd)
	if err != nil {
		return err
	}
	link := &q.Overlay.Next
	for _, addr := range qtds {
		td, err := m.QTD(addr)
		if err != nil {
			return err
		}
		*link = Next(addr)
		link = &td.Next
	}
	*link = End()
	return nil
}
