package ehci

import (
	"maps"
	"testing"

	"github.com/ardnew/softehci/host/hal"
)

// recorder implements Notifier and remembers every interrupt.
type recorder struct {
	calls []ControllerID
}

func (r *recorder) Interrupt(id ControllerID) {
	r.calls = append(r.calls, id)
}

// expectInterrupts fails unless exactly the given interrupts were recorded.
func (r *recorder) expectInterrupts(t *testing.T, want ...ControllerID) {
	t.Helper()
	if len(r.calls) != len(want) {
		t.Fatalf("interrupts = %v, want %v", r.calls, want)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("interrupts = %v, want %v", r.calls, want)
		}
	}
}

// fixture is one controller with an async and a periodic ring.
type fixture struct {
	id          ControllerID
	mem         *Memory
	st          *State
	rec         *recorder
	eng         *Engine
	async       []Addr
	asyncTDs    [][]Addr
	periodic    []Addr
	periodicTDs [][]Addr
}

// newFixture builds controller id with one async queue head per entry of
// asyncChains and one periodic queue head per entry of periodicChains; each
// entry is the number of active qTDs queued behind that head.
func newFixture(t *testing.T, id ControllerID, asyncChains, periodicChains []int) *fixture {
	t.Helper()
	f := &fixture{id: id, mem: NewMemory(), rec: &recorder{}}
	f.eng = New(f.rec)
	f.async, f.asyncTDs = buildRing(t, f.mem, asyncChains)
	f.periodic, f.periodicTDs = buildRing(t, f.mem, periodicChains)
	f.st = NewState(f.mem)
	if _, err := f.st.AddController(id, f.async[0], f.periodic[0]); err != nil {
		t.Fatalf("AddController: %v", err)
	}
	return f
}

func buildRing(t *testing.T, mem *Memory, chains []int) ([]Addr, [][]Addr) {
	t.Helper()
	heads := make([]Addr, len(chains))
	tds := make([][]Addr, len(chains))
	for i, n := range chains {
		heads[i], tds[i] = buildQueue(t, mem, n)
	}
	if err := mem.LinkRing(heads...); err != nil {
		t.Fatalf("LinkRing: %v", err)
	}
	return heads, tds
}

// buildQueue allocates a queue head with n active qTDs chained behind it.
func buildQueue(t *testing.T, mem *Memory, n int) (Addr, []Addr) {
	t.Helper()
	qh, _ := newQHD(t, mem)
	tds := make([]Addr, n)
	for i := range tds {
		addr, td := newQTD(t, mem)
		td.Status = TokenActive
		td.PID = PIDIn
		td.ErrorCount = 3
		td.TotalBytes = uint16(64 * (i + 1))
		td.Buffers[0] = newBuffer(t, mem, 64)
		tds[i] = addr
	}
	if err := mem.LinkChain(qh, tds...); err != nil {
		t.Fatalf("LinkChain: %v", err)
	}
	return qh, tds
}

func newQHD(tb testing.TB, mem *Memory) (Addr, *QHD) {
	tb.Helper()
	addr, q, err := mem.AllocQHD()
	if err != nil {
		tb.Fatalf("AllocQHD: %v", err)
	}
	return addr, q
}

func newQTD(tb testing.TB, mem *Memory) (Addr, *QTD) {
	tb.Helper()
	addr, q, err := mem.AllocQTD()
	if err != nil {
		tb.Fatalf("AllocQTD: %v", err)
	}
	return addr, q
}

func newQTDs(tb testing.TB, mem *Memory, n int) Addr {
	tb.Helper()
	addr, err := mem.AllocQTDs(n)
	if err != nil {
		tb.Fatalf("AllocQTDs(%d): %v", n, err)
	}
	return addr
}

func newBuffer(tb testing.TB, mem *Memory, size int) Addr {
	tb.Helper()
	addr, err := mem.AllocBuffer(size)
	if err != nil {
		tb.Fatalf("AllocBuffer(%d): %v", size, err)
	}
	return addr
}

func mustQHD(t *testing.T, mem *Memory, addr Addr) *QHD {
	t.Helper()
	q, err := mem.QHD(addr)
	if err != nil {
		t.Fatalf("QHD(%v): %v", addr, err)
	}
	return q
}

func mustQTD(t *testing.T, mem *Memory, addr Addr) *QTD {
	t.Helper()
	q, err := mem.QTD(addr)
	if err != nil {
		t.Fatalf("QTD(%v): %v", addr, err)
	}
	return q
}

// addControlPipe provisions a control pipe for dev on the fixture's
// controller, appends its queue head to the async ring and writes setup
// into the Setup qTD's buffer. The Data qTD buffer holds dataCap bytes.
func (f *fixture) addControlPipe(t *testing.T, dev hal.DeviceAddress, setup hal.SetupPacket, dataCap int) ControlPipe {
	t.Helper()
	qh, _ := newQHD(t, f.mem)
	pipe := NewControlPipe(qh, newQTDs(t, f.mem, 3))

	setupTD := mustQTD(t, f.mem, pipe.Setup)
	setupTD.Status = TokenActive
	setupTD.PID = PIDSetup
	setupTD.TotalBytes = hal.SetupPacketSize
	setupTD.Buffers[0] = newBuffer(t, f.mem, hal.SetupPacketSize)
	raw, err := f.mem.Buffer(setupTD.Buffers[0], hal.SetupPacketSize)
	if err != nil {
		t.Fatalf("setup buffer: %v", err)
	}
	setup.MarshalTo(raw)

	dataTD := mustQTD(t, f.mem, pipe.Data)
	dataTD.Status = TokenActive
	dataTD.PID = PIDIn
	dataTD.DataToggle = true
	dataTD.TotalBytes = setup.Length
	dataTD.Buffers[0] = newBuffer(t, f.mem, dataCap)

	statusTD := mustQTD(t, f.mem, pipe.Status)
	statusTD.Status = TokenActive
	statusTD.PID = PIDOut
	statusTD.DataToggle = true
	statusTD.IOC = true

	if err := f.mem.LinkChain(qh, pipe.Setup, pipe.Data, pipe.Status); err != nil {
		t.Fatalf("LinkChain: %v", err)
	}
	f.async = append(f.async, qh)
	if err := f.mem.LinkRing(f.async...); err != nil {
		t.Fatalf("LinkRing: %v", err)
	}
	if err := f.st.BindDevice(dev, f.id, pipe); err != nil {
		t.Fatalf("BindDevice: %v", err)
	}
	return pipe
}

// descriptors copies every queue head and qTD in memory.
func descriptors(mem *Memory) (map[Addr]QHD, map[Addr]QTD) {
	qhds := make(map[Addr]QHD, len(mem.qhds))
	for a, q := range mem.qhds {
		qhds[a] = *q
	}
	qtds := make(map[Addr]QTD, len(mem.qtds))
	for a, q := range mem.qtds {
		qtds[a] = *q
	}
	return qhds, qtds
}

// expectDescriptorsUnchanged fails if any descriptor differs from the copy.
func expectDescriptorsUnchanged(t *testing.T, mem *Memory, qhds map[Addr]QHD, qtds map[Addr]QTD) {
	t.Helper()
	gotQHDs, gotQTDs := descriptors(mem)
	if !maps.Equal(gotQHDs, qhds) {
		t.Error("queue heads changed")
	}
	if !maps.Equal(gotQTDs, qtds) {
		t.Error("qTDs changed")
	}
}
