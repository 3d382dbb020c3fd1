package ehci

import (
	"fmt"

	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

// CompleteControlTransfer finishes the control transfer queued on a
// device's control pipe as if the device had answered it.
//
// When the SETUP packet in the Setup qTD's buffer asks for an IN data stage
// of L > 0 bytes, the first L bytes of response are copied into the Data
// qTD's buffer. All three qTDs are then retired, the Status qTD is copied
// into the queue head overlay, USBSTS is set to the async and periodic
// completion bits, and the device's controller is interrupted once.
//
// Nothing is modified when the device is unknown, response is shorter than
// L, or the Data qTD's buffer cannot hold L bytes.
func (e *Engine) CompleteControlTransfer(r Resolver, dev hal.DeviceAddress, response []byte) error {
	id, err := r.DeviceController(dev)
	if err != nil {
		return err
	}
	regs, err := r.Registers(id)
	if err != nil {
		return err
	}
	pipe, err := r.ControlPipe(dev)
	if err != nil {
		return err
	}

	mem := r.Memory()
	q, err := mem.QHD(pipe.QHD)
	if err != nil {
		return fmt.Errorf("device %d control pipe: %w", dev, err)
	}
	var stages [3]*QTD
	for i, addr := range []Addr{pipe.Setup, pipe.Data, pipe.Status} {
		if stages[i], err = mem.QTD(addr); err != nil {
			return fmt.Errorf("device %d control pipe: %w", dev, err)
		}
	}
	setupTD, dataTD, statusTD := stages[0], stages[1], stages[2]

	raw, err := mem.Buffer(setupTD.Buffers[0], hal.SetupPacketSize)
	if err != nil {
		return fmt.Errorf("device %d setup stage: %w: %w", dev, pkg.ErrSetupPacketTooShort, err)
	}
	var setup hal.SetupPacket
	hal.ParseSetupPacket(raw, &setup)

	if setup.IsIn() && setup.Length > 0 {
		n := int(setup.Length)
		if len(response) < n {
			return fmt.Errorf("%w: device %d response has %d bytes, setup requests %d",
				pkg.ErrInvalidParameter, dev, len(response), n)
		}
		dst, err := mem.Buffer(dataTD.Buffers[0], n)
		if err != nil {
			return fmt.Errorf("device %d data stage: %w", dev, err)
		}
		copy(dst, response[:n])
	}

	setupTD.Retire()
	dataTD.Retire()
	statusTD.Retire()
	q.Overlay = *statusTD
	q.Current = pipe.Status

	regs.Status = StatusAsyncComplete | StatusPeriodicComplete
	pkg.LogInfo(pkg.ComponentControl, "control transfer completed",
		"device", dev,
		"controller", id,
		"request", hal.Request(setup.Request),
		"direction", setup.Direction(),
		"length", setup.Length)
	e.interrupt(id, regs)
	return nil
}
