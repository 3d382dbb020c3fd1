package ehci

import (
	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

// Plug signals a device connecting to the root port at the given speed.
// No descriptor is touched.
func (e *Engine) Plug(r Resolver, id ControllerID, speed hal.Speed) error {
	regs, err := r.Registers(id)
	if err != nil {
		return err
	}
	regs.Status |= StatusPortChange
	regs.PortSC |= PortConnectChange | PortConnect
	regs.PortSC.SetSpeed(speed)

	pkg.LogInfo(pkg.ComponentPort, "device plugged", "id", id, "speed", speed)
	e.interrupt(id, regs)
	return nil
}

// Unplug signals the device on the root port disconnecting. The recorded
// speed is left as it was.
func (e *Engine) Unplug(r Resolver, id ControllerID) error {
	regs, err := r.Registers(id)
	if err != nil {
		return err
	}
	regs.Status |= StatusPortChange
	regs.PortSC |= PortConnectChange
	regs.PortSC &^= PortConnect

	pkg.LogInfo(pkg.ComponentPort, "device unplugged", "id", id)
	e.interrupt(id, regs)
	return nil
}
