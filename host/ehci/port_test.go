package ehci

import (
	"errors"
	"testing"

	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

func TestPlug(t *testing.T) {
	speeds := []hal.Speed{hal.SpeedLow, hal.SpeedFull, hal.SpeedHigh}

	for _, speed := range speeds {
		t.Run(speed.String(), func(t *testing.T) {
			f := newFixture(t, 0, []int{2}, []int{1})
			qhds, qtds := descriptors(f.mem)
			regs, _ := f.st.Registers(f.id)
			regs.Status = StatusAsyncComplete

			if err := f.eng.Plug(f.st, f.id, speed); err != nil {
				t.Fatalf("Plug: %v", err)
			}

			if !regs.Status.Has(StatusPortChange | StatusAsyncComplete) {
				t.Errorf("USBSTS = %#x, want port change added to existing bits", regs.Status)
			}
			ps := regs.PortStatus()
			if !ps.Connected || !ps.ConnectChange {
				t.Errorf("port status = %+v, want connected with change", ps)
			}
			if ps.Speed != speed {
				t.Errorf("speed = %v, want %v", ps.Speed, speed)
			}
			expectDescriptorsUnchanged(t, f.mem, qhds, qtds)
			f.rec.expectInterrupts(t, f.id)
		})
	}
}

func TestUnplug(t *testing.T) {
	f := newFixture(t, 1, []int{2}, []int{1})
	if err := f.eng.Plug(f.st, f.id, hal.SpeedHigh); err != nil {
		t.Fatalf("Plug: %v", err)
	}
	regs, _ := f.st.Registers(f.id)
	regs.Acknowledge(StatusPortChange)
	regs.AcknowledgePort(PortConnectChange)
	qhds, qtds := descriptors(f.mem)

	if err := f.eng.Unplug(f.st, f.id); err != nil {
		t.Fatalf("Unplug: %v", err)
	}

	if !regs.Status.Has(StatusPortChange) {
		t.Errorf("USBSTS = %#x, want port change", regs.Status)
	}
	ps := regs.PortStatus()
	if ps.Connected {
		t.Error("port still connected")
	}
	if !ps.ConnectChange {
		t.Error("connect change not set")
	}
	if regs.PortSC.Speed() != hal.SpeedHigh {
		t.Errorf("recorded speed = %v, want it kept", regs.PortSC.Speed())
	}
	expectDescriptorsUnchanged(t, f.mem, qhds, qtds)
	f.rec.expectInterrupts(t, f.id, f.id)
}

func TestPortEvents_UnknownController(t *testing.T) {
	f := newFixture(t, 0, []int{0}, []int{0})

	if err := f.eng.Plug(f.st, 4, hal.SpeedFull); !errors.Is(err, pkg.ErrUnknownController) {
		t.Errorf("Plug error = %v, want %v", err, pkg.ErrUnknownController)
	}
	if err := f.eng.Unplug(f.st, 4); !errors.Is(err, pkg.ErrUnknownController) {
		t.Errorf("Unplug error = %v, want %v", err, pkg.ErrUnknownController)
	}
	f.rec.expectInterrupts(t)
}
