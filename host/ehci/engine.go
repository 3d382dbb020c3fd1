package ehci

import (
	"fmt"

	"github.com/ardnew/softehci/pkg"
)

// Engine plays the role of controller hardware: it walks schedules, retires
// qTDs, raises USBSTS bits and interrupts the driver through a Notifier.
//
// Engine keeps no schedule state of its own. Every operation runs to
// completion on the caller's goroutine; calls that share a Resolver must be
// serialized by the caller.
type Engine struct {
	notifier Notifier
}

// New returns an engine that reports interrupts to n. A nil n discards them.
func New(n Notifier) *Engine {
	if n == nil {
		n = nopNotifier{}
	}
	return &Engine{notifier: n}
}

// interrupt raises the controller interrupt once.
func (e *Engine) interrupt(id ControllerID, regs *Registers) {
	pkg.LogDebug(pkg.ComponentController, "interrupt",
		"id", id,
		"usbsts", fmt.Sprintf("0x%08x", uint32(regs.Status)),
		"portsc", fmt.Sprintf("0x%08x", uint32(regs.PortSC)))
	e.notifier.Interrupt(id)
}

// CompleteAll drains every non-halted queue head in the ring anchored at
// head. For each such queue head, each qTD reached from the overlay's next
// link is retired and then copied into the overlay, until the overlay's next
// link is terminated. The walk follows horizontal links and stops when a
// link is terminated or leads back to head.
//
// A ring that revisits a queue head without reaching head again, or a qTD
// chain that loops, is cut short at the first repeat. An error is returned
// only for addresses that do not resolve; qTDs retired before that point
// stay retired.
func (e *Engine) CompleteAll(mem *Memory, head Addr) error {
	head = head.Align32()
	visited := make(map[Addr]bool)

	for addr := head; ; {
		q, err := mem.QHD(addr)
		if err != nil {
			return err
		}
		visited[addr] = true

		if !q.Overlay.IsHalted() {
			if err := drainQueue(mem, addr, q); err != nil {
				return err
			}
		}

		next, ok := q.Next.Target()
		if !ok || next == head {
			return nil
		}
		if visited[next] {
			pkg.LogWarn(pkg.ComponentSchedule, "ring does not close at its head",
				"head", head, "from", addr, "to", next)
			return nil
		}
		addr = next
	}
}

// drainQueue walks the qTD chain behind one queue head.
func drainQueue(mem *Memory, addr Addr, q *QHD) error {
	var seen map[Addr]bool
	for {
		next, ok := q.Overlay.Next.Target()
		if !ok {
			return nil
		}
		if seen[next] {
			pkg.LogWarn(pkg.ComponentSchedule, "qTD chain loops",
				"qhd", addr, "qtd", next)
			return nil
		}
		if seen == nil {
			seen = make(map[Addr]bool)
		}
		seen[next] = true

		td, err := mem.QTD(next)
		if err != nil {
			return fmt.Errorf("queue head %v: %w", addr, err)
		}
		td.Retire()
		q.Overlay = *td
		q.Current = next
	}
}

// Run models one transfer-complete event: both the asynchronous and the
// periodic ring of the controller are drained, USBSTS is set to the async
// and periodic completion bits, and the driver is interrupted once.
//
// When an error is returned the schedules may be partially drained: qTDs
// retired before the failing address stay retired, while USBSTS is left
// untouched and no interrupt is raised.
func (e *Engine) Run(r Resolver, id ControllerID) error {
	regs, err := r.Registers(id)
	if err != nil {
		return err
	}
	async, err := r.AsyncHead(id)
	if err != nil {
		return err
	}
	periodic, err := r.PeriodicHead(id)
	if err != nil {
		return err
	}

	mem := r.Memory()
	if err := e.CompleteAll(mem, async); err != nil {
		return fmt.Errorf("controller %d async schedule: %w", id, err)
	}
	if err := e.CompleteAll(mem, periodic); err != nil {
		return fmt.Errorf("controller %d periodic schedule: %w", id, err)
	}

	regs.Status = StatusAsyncComplete | StatusPeriodicComplete
	pkg.LogInfo(pkg.ComponentSchedule, "schedules completed", "id", id)
	e.interrupt(id, regs)
	return nil
}

// RunError models a transaction error on the asynchronous schedule. Each
// non-halted queue head with a pending qTD has exactly that one qTD retired
// with babble, buffer and transaction error bits set, and copied into its
// overlay. The rest of each chain is left alone. USBSTS is set to
// StatusError and the driver is interrupted once.
//
// Unlike CompleteAll, the walk closes against the async anchor as resolved
// on each step, not against the queue head it started from.
//
// As with Run, an error leaves the qTDs already marked in place and neither
// writes USBSTS nor interrupts.
func (e *Engine) RunError(r Resolver, id ControllerID) error {
	regs, err := r.Registers(id)
	if err != nil {
		return err
	}
	start, err := r.AsyncHead(id)
	if err != nil {
		return err
	}

	mem := r.Memory()
	visited := make(map[Addr]bool)
	for addr := start; ; {
		q, err := mem.QHD(addr)
		if err != nil {
			return fmt.Errorf("controller %d async schedule: %w", id, err)
		}
		visited[addr] = true

		if next, ok := q.Overlay.Next.Target(); ok && !q.Overlay.IsHalted() {
			td, err := mem.QTD(next)
			if err != nil {
				return fmt.Errorf("controller %d queue head %v: %w", id, addr, err)
			}
			td.Retire()
			td.MarkError()
			q.Overlay = *td
			q.Current = next
			pkg.LogDebug(pkg.ComponentSchedule, "transaction error injected",
				"id", id, "qhd", addr, "qtd", next)
		}

		next, ok := q.Next.Target()
		if !ok {
			pkg.LogWarn(pkg.ComponentSchedule, "async ring terminated before closing",
				"id", id, "at", addr)
			break
		}
		anchor, err := r.AsyncHead(id)
		if err != nil {
			return err
		}
		if next == anchor {
			break
		}
		if visited[next] {
			pkg.LogWarn(pkg.ComponentSchedule, "async ring does not close at its anchor",
				"id", id, "anchor", anchor, "from", addr, "to", next)
			break
		}
		addr = next
	}

	regs.Status = StatusError
	pkg.LogInfo(pkg.ComponentSchedule, "transaction error raised", "id", id)
	e.interrupt(id, regs)
	return nil
}
