package scenario

import (
	"context"
	"fmt"

	"github.com/ardnew/softehci/host/ehci"
	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

// Execute replays steps against the bench in order. It stops at the first
// failing step or when ctx is done.
func (b *Bench) Execute(ctx context.Context, steps []StepConfig) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.step(s); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Op, err)
		}
	}
	pkg.LogInfo(pkg.ComponentScenario, "scenario executed", "name", b.Name, "steps", len(steps))
	return nil
}

func (b *Bench) step(s StepConfig) error {
	id := ehci.ControllerID(s.Controller)
	pkg.LogDebug(pkg.ComponentScenario, "step", "op", s.Op, "controller", id, "device", s.Device)

	switch s.Op {
	case OpRun:
		return b.engine.Run(b.state, id)
	case OpRunError:
		return b.engine.RunError(b.state, id)
	case OpControl:
		return b.engine.CompleteControlTransfer(b.state, hal.DeviceAddress(s.Device), s.Response)
	case OpPlug:
		speed, ok := hal.ParseSpeed(s.Speed)
		if !ok {
			return fmt.Errorf("%w: speed %q", pkg.ErrInvalidParameter, s.Speed)
		}
		return b.engine.Plug(b.state, id, speed)
	case OpUnplug:
		return b.engine.Unplug(b.state, id)
	case OpAck:
		regs, err := b.state.Registers(id)
		if err != nil {
			return err
		}
		regs.Acknowledge(regs.Status)
		regs.AcknowledgePort(regs.PortSC)
		return nil
	}
	return fmt.Errorf("%w: op %q", pkg.ErrInvalidParameter, s.Op)
}

// Run loads, builds and executes the scenario file at path and returns its
// final report.
func Run(ctx context.Context, path string) (*Report, error) {
	sc, err := Load(path)
	if err != nil {
		return nil, err
	}
	b, err := Build(sc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := b.Execute(ctx, sc.Steps); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b.Report(), nil
}
