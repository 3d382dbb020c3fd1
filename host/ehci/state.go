package ehci

import (
	"fmt"
	"slices"

	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

// ControllerID identifies one host controller instance.
type ControllerID uint8

// Controller is the state of one host controller.
type Controller struct {
	ID        ControllerID
	Registers Registers

	// PeriodicHead anchors the ring of interrupt queue heads. The periodic
	// frame list itself is not modeled.
	PeriodicHead Addr
}

// ControlPipe locates the queue head and the three contiguous qTDs used for
// a device's default control endpoint.
type ControlPipe struct {
	QHD    Addr
	Setup  Addr
	Data   Addr
	Status Addr
}

// NewControlPipe returns the pipe whose Setup, Data and Status qTDs are
// laid out contiguously starting at qtds.
func NewControlPipe(qhd, qtds Addr) ControlPipe {
	return ControlPipe{
		QHD:    qhd,
		Setup:  qtds,
		Data:   qtds + QTDSize,
		Status: qtds + 2*QTDSize,
	}
}

// DeviceBinding ties a device address to its controller and control pipe.
type DeviceBinding struct {
	Controller ControllerID
	Pipe       ControlPipe
}

// Resolver locates registers and descriptors on behalf of the engine. It is
// implemented by the code that owns the schedules.
type Resolver interface {
	// Registers returns the register block of a controller.
	Registers(id ControllerID) (*Registers, error)

	// AsyncHead returns the queue head anchoring the asynchronous ring.
	AsyncHead(id ControllerID) (Addr, error)

	// PeriodicHead returns the queue head anchoring the periodic ring.
	PeriodicHead(id ControllerID) (Addr, error)

	// ControlPipe returns the control pipe bound to a device.
	ControlPipe(dev hal.DeviceAddress) (ControlPipe, error)

	// DeviceController returns the controller a device is attached to.
	DeviceController(dev hal.DeviceAddress) (ControllerID, error)

	// Memory returns the descriptor memory.
	Memory() *Memory
}

// State is a Resolver backed by explicit tables. It is owned by the caller
// and passed to each engine operation.
type State struct {
	mem         *Memory
	controllers map[ControllerID]*Controller
	devices     map[hal.DeviceAddress]DeviceBinding
}

// NewState returns an empty state over mem.
func NewState(mem *Memory) *State {
	return &State{
		mem:         mem,
		controllers: make(map[ControllerID]*Controller),
		devices:     make(map[hal.DeviceAddress]DeviceBinding),
	}
}

// AddController registers a controller whose asynchronous and periodic
// rings are anchored at the given queue heads. The async anchor is written
// to ASYNCLISTADDR and marked as the reclamation head.
func (s *State) AddController(id ControllerID, async, periodic Addr) (*Controller, error) {
	if _, ok := s.controllers[id]; ok {
		return nil, fmt.Errorf("%w: controller %d", pkg.ErrAlreadyExists, id)
	}
	head, err := s.mem.QHD(async)
	if err != nil {
		return nil, fmt.Errorf("controller %d async head: %w", id, err)
	}
	if _, err := s.mem.QHD(periodic); err != nil {
		return nil, fmt.Errorf("controller %d periodic head: %w", id, err)
	}
	head.Head = true

	c := &Controller{ID: id, PeriodicHead: periodic.Align32()}
	c.Registers.AsyncListAddr = async.Align32()
	c.Registers.PortSC = PortPower
	s.controllers[id] = c

	pkg.LogDebug(pkg.ComponentController, "controller added",
		"id", id, "async", c.Registers.AsyncListAddr, "periodic", c.PeriodicHead)
	return c, nil
}

// BindDevice associates a device address with a controller and control pipe.
func (s *State) BindDevice(dev hal.DeviceAddress, id ControllerID, pipe ControlPipe) error {
	if _, ok := s.controllers[id]; !ok {
		return fmt.Errorf("%w: %d", pkg.ErrUnknownController, id)
	}
	if _, ok := s.devices[dev]; ok {
		return fmt.Errorf("%w: device %d", pkg.ErrAlreadyExists, dev)
	}
	for _, addr := range []Addr{pipe.Setup, pipe.Data, pipe.Status} {
		if _, err := s.mem.QTD(addr); err != nil {
			return fmt.Errorf("device %d control pipe: %w", dev, err)
		}
	}
	if _, err := s.mem.QHD(pipe.QHD); err != nil {
		return fmt.Errorf("device %d control pipe: %w", dev, err)
	}
	s.devices[dev] = DeviceBinding{Controller: id, Pipe: pipe}
	return nil
}

// Controller returns the controller with the given id.
func (s *State) Controller(id ControllerID) (*Controller, bool) {
	c, ok := s.controllers[id]
	return c, ok
}

// Controllers returns the registered controller ids in ascending order.
func (s *State) Controllers() []ControllerID {
	ids := make([]ControllerID, 0, len(s.controllers))
	for id := range s.controllers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Device returns the binding of a device address.
func (s *State) Device(dev hal.DeviceAddress) (DeviceBinding, bool) {
	b, ok := s.devices[dev]
	return b, ok
}

// Registers implements Resolver.
func (s *State) Registers(id ControllerID) (*Registers, error) {
	c, ok := s.controllers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", pkg.ErrUnknownController, id)
	}
	return &c.Registers, nil
}

// AsyncHead implements Resolver. The anchor is read from ASYNCLISTADDR.
func (s *State) AsyncHead(id ControllerID) (Addr, error) {
	regs, err := s.Registers(id)
	if err != nil {
		return 0, err
	}
	return regs.AsyncListAddr.Align32(), nil
}

// PeriodicHead implements Resolver.
func (s *State) PeriodicHead(id ControllerID) (Addr, error) {
	c, ok := s.controllers[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", pkg.ErrUnknownController, id)
	}
	return c.PeriodicHead, nil
}

// ControlPipe implements Resolver.
func (s *State) ControlPipe(dev hal.DeviceAddress) (ControlPipe, error) {
	b, ok := s.devices[dev]
	if !ok {
		return ControlPipe{}, fmt.Errorf("%w: %d", pkg.ErrUnknownDevice, dev)
	}
	return b.Pipe, nil
}

// DeviceController implements Resolver.
func (s *State) DeviceController(dev hal.DeviceAddress) (ControllerID, error) {
	b, ok := s.devices[dev]
	if !ok {
		return 0, fmt.Errorf("%w: %d", pkg.ErrUnknownDevice, dev)
	}
	return b.Controller, nil
}

// Memory implements Resolver.
func (s *State) Memory() *Memory {
	return s.mem
}

var _ Resolver = (*State)(nil)
