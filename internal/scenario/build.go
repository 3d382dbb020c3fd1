package scenario

import (
	"fmt"

	"github.com/ardnew/softehci/host/ehci"
	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

// maxQTDBytes is the most a qTD with five 4 KiB pages can move.
const maxQTDBytes = ehci.QTDBuffers * 4096

// queueRef names a queue head and its qTDs in allocation order.
type queueRef struct {
	name string
	addr ehci.Addr
	qtds []ehci.Addr
}

// rings holds the queues of one controller, anchor first.
type rings struct {
	async    []queueRef
	periodic []queueRef
}

// Bench is a provisioned scenario: descriptor memory, controller state and
// an engine whose interrupts are counted per controller.
type Bench struct {
	Name string

	mem        *ehci.Memory
	state      *ehci.State
	engine     *ehci.Engine
	rings      map[ehci.ControllerID]*rings
	devices    []hal.DeviceAddress
	interrupts map[ehci.ControllerID]int
}

// Build allocates every queue and control pipe of sc and registers the
// controllers and devices. sc must already be validated.
func Build(sc *Scenario) (*Bench, error) {
	mem := ehci.NewMemory()
	b := &Bench{
		Name:       sc.Name,
		mem:        mem,
		state:      ehci.NewState(mem),
		rings:      make(map[ehci.ControllerID]*rings),
		interrupts: make(map[ehci.ControllerID]int),
	}
	b.engine = ehci.New(b)

	for _, c := range sc.Controllers {
		r := &rings{}
		for _, q := range c.Async {
			ref, err := b.buildQueue(q)
			if err != nil {
				return nil, err
			}
			r.async = append(r.async, ref)
		}
		for _, q := range c.Periodic {
			ref, err := b.buildQueue(q)
			if err != nil {
				return nil, err
			}
			r.periodic = append(r.periodic, ref)
		}
		b.rings[ehci.ControllerID(c.ID)] = r
	}

	pipes := make([]ehci.ControlPipe, len(sc.Devices))
	for i, d := range sc.Devices {
		ref, pipe, err := b.buildControlPipe(d)
		if err != nil {
			return nil, err
		}
		r := b.rings[ehci.ControllerID(d.Controller)]
		r.async = append(r.async, ref)
		pipes[i] = pipe
	}

	for _, c := range sc.Controllers {
		id := ehci.ControllerID(c.ID)
		r := b.rings[id]
		if err := mem.LinkRing(addrs(r.async)...); err != nil {
			return nil, fmt.Errorf("controller %d async ring: %w", id, err)
		}
		if err := mem.LinkRing(addrs(r.periodic)...); err != nil {
			return nil, fmt.Errorf("controller %d periodic ring: %w", id, err)
		}
		if _, err := b.state.AddController(id, r.async[0].addr, r.periodic[0].addr); err != nil {
			return nil, err
		}
	}

	for i, d := range sc.Devices {
		dev := hal.DeviceAddress(d.Address)
		if err := b.state.BindDevice(dev, ehci.ControllerID(d.Controller), pipes[i]); err != nil {
			return nil, err
		}
		b.devices = append(b.devices, dev)
	}

	pkg.LogDebug(pkg.ComponentScenario, "scenario built",
		"name", sc.Name,
		"controllers", len(sc.Controllers),
		"devices", len(sc.Devices))
	return b, nil
}

// buildQueue allocates a queue head with its qTDs chained behind the
// overlay. Each qTD gets a data buffer of its byte count.
func (b *Bench) buildQueue(q QueueConfig) (queueRef, error) {
	addr, qh, err := b.mem.AllocQHD()
	if err != nil {
		return queueRef{}, fmt.Errorf("queue %q: %w", q.Name, err)
	}
	qh.DeviceAddress = hal.DeviceAddress(q.Device)
	qh.Endpoint = q.Endpoint
	qh.Speed = hal.SpeedHigh
	qh.MaxPacketSize = q.MaxPacket
	if q.Halted {
		qh.Overlay.Status |= ehci.TokenHalted
	}

	ref := queueRef{name: q.Name, addr: addr}
	for _, c := range q.QTDs {
		tdAddr, td, err := b.mem.AllocQTD()
		if err != nil {
			return queueRef{}, fmt.Errorf("queue %q: %w", q.Name, err)
		}
		pid, _ := parsePID(c.PID)
		td.Status = ehci.TokenActive
		td.PID = pid
		td.ErrorCount = 3
		td.IOC = c.IOC
		td.TotalBytes = c.Bytes
		if c.Bytes > 0 {
			if td.Buffers[0], err = b.mem.AllocBuffer(int(c.Bytes)); err != nil {
				return queueRef{}, fmt.Errorf("queue %q: %w", q.Name, err)
			}
		}
		ref.qtds = append(ref.qtds, tdAddr)
	}
	if err := b.mem.LinkChain(addr, ref.qtds...); err != nil {
		return queueRef{}, fmt.Errorf("queue %q: %w", q.Name, err)
	}
	return ref, nil
}

// buildControlPipe allocates a device's control queue head with its Setup,
// Data and Status qTDs and writes the SETUP packet into the Setup buffer.
func (b *Bench) buildControlPipe(d DeviceConfig) (queueRef, ehci.ControlPipe, error) {
	addr, qh, err := b.mem.AllocQHD()
	if err != nil {
		return queueRef{}, ehci.ControlPipe{}, fmt.Errorf("device %d: %w", d.Address, err)
	}
	qh.DeviceAddress = hal.DeviceAddress(d.Address)
	qh.Speed = hal.SpeedHigh
	qh.MaxPacketSize = qh.Speed.MaxPacketSize0()

	qtds, err := b.mem.AllocQTDs(3)
	if err != nil {
		return queueRef{}, ehci.ControlPipe{}, fmt.Errorf("device %d: %w", d.Address, err)
	}
	pipe := ehci.NewControlPipe(addr, qtds)
	setup := hal.SetupPacket{
		RequestType: d.Setup.RequestType,
		Request:     d.Setup.Request,
		Value:       d.Setup.Value,
		Index:       d.Setup.Index,
		Length:      d.Setup.Length,
	}

	setupTD, err := b.mem.QTD(pipe.Setup)
	if err != nil {
		return queueRef{}, pipe, err
	}
	setupTD.Status = ehci.TokenActive
	setupTD.PID = ehci.PIDSetup
	setupTD.ErrorCount = 3
	setupTD.TotalBytes = hal.SetupPacketSize
	if setupTD.Buffers[0], err = b.mem.AllocBuffer(hal.SetupPacketSize); err != nil {
		return queueRef{}, pipe, fmt.Errorf("device %d: %w", d.Address, err)
	}
	raw, err := b.mem.Buffer(setupTD.Buffers[0], hal.SetupPacketSize)
	if err != nil {
		return queueRef{}, pipe, err
	}
	setup.MarshalTo(raw)

	capacity := d.Buffer
	if capacity == 0 {
		capacity = int(setup.Length)
	}
	dataTD, err := b.mem.QTD(pipe.Data)
	if err != nil {
		return queueRef{}, pipe, err
	}
	dataTD.Status = ehci.TokenActive
	dataTD.PID = ehci.PIDOut
	if setup.IsIn() {
		dataTD.PID = ehci.PIDIn
	}
	dataTD.ErrorCount = 3
	dataTD.DataToggle = true
	dataTD.TotalBytes = setup.Length
	if capacity > 0 {
		if dataTD.Buffers[0], err = b.mem.AllocBuffer(capacity); err != nil {
			return queueRef{}, pipe, fmt.Errorf("device %d: %w", d.Address, err)
		}
	}

	statusTD, err := b.mem.QTD(pipe.Status)
	if err != nil {
		return queueRef{}, pipe, err
	}
	statusTD.Status = ehci.TokenActive
	statusTD.PID = ehci.PIDIn
	if setup.IsIn() {
		statusTD.PID = ehci.PIDOut
	}
	statusTD.ErrorCount = 3
	statusTD.DataToggle = true
	statusTD.IOC = true

	stages := []ehci.Addr{pipe.Setup, pipe.Data, pipe.Status}
	if err := b.mem.LinkChain(addr, stages...); err != nil {
		return queueRef{}, pipe, err
	}
	ref := queueRef{name: controlQueueName(d.Address), addr: addr, qtds: stages}
	return ref, pipe, nil
}

// Interrupt implements ehci.Notifier.
func (b *Bench) Interrupt(id ehci.ControllerID) {
	b.interrupts[id]++
}

// Interrupts returns how many times controller id has interrupted.
func (b *Bench) Interrupts(id ehci.ControllerID) int {
	return b.interrupts[id]
}

// State returns the controller state the bench drives.
func (b *Bench) State() *ehci.State {
	return b.state
}

// controlQueuePrefix names the queue heads of device control pipes.
const controlQueuePrefix = "dev"

func controlQueueName(dev uint8) string {
	return fmt.Sprintf("%s%d-control", controlQueuePrefix, dev)
}

func addrs(refs []queueRef) []ehci.Addr {
	out := make([]ehci.Addr, len(refs))
	for i, r := range refs {
		out[i] = r.addr
	}
	return out
}

func parsePID(name string) (ehci.PID, bool) {
	switch name {
	case "out":
		return ehci.PIDOut, true
	case "in":
		return ehci.PIDIn, true
	case "setup":
		return ehci.PIDSetup, true
	}
	return 0, false
}
