package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ardnew/softehci/host/hal"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid scenario")

// Validate checks scenario correctness. It performs declarative validation
// only and does not mutate the scenario; call Normalize first.
func Validate(sc *Scenario) error {
	if len(sc.Controllers) == 0 {
		return invalid("no controllers defined")
	}

	// ------------------------------------------------------------
	// CONTROLLERS AND QUEUES
	// ------------------------------------------------------------

	controllers := make(map[uint8]bool)
	queueOwner := make(map[string]uint8)

	for _, c := range sc.Controllers {
		if controllers[c.ID] {
			return invalid("controller %d defined twice", c.ID)
		}
		controllers[c.ID] = true

		if len(c.Async) == 0 || len(c.Periodic) == 0 {
			return invalid("controller %d: async and periodic rings need an anchor queue", c.ID)
		}

		for _, q := range append(append([]QueueConfig(nil), c.Async...), c.Periodic...) {
			if q.Name == "" {
				return invalid("controller %d: queue without a name", c.ID)
			}
			if isControlQueueName(q.Name) {
				return invalid("queue %q: name is reserved for device control pipes", q.Name)
			}
			if prev, exists := queueOwner[q.Name]; exists {
				return invalid("queue %q defined on controllers %d and %d", q.Name, prev, c.ID)
			}
			queueOwner[q.Name] = c.ID

			if q.Device > 127 {
				return invalid("queue %q: device address %d out of range", q.Name, q.Device)
			}
			if q.Endpoint > 15 {
				return invalid("queue %q: endpoint %d out of range", q.Name, q.Endpoint)
			}
			if q.MaxPacket > 1024 {
				return invalid("queue %q: max_packet %d exceeds 1024", q.Name, q.MaxPacket)
			}
			for i, td := range q.QTDs {
				if _, ok := parsePID(td.PID); !ok {
					return invalid("queue %q qtd %d: unknown pid %q", q.Name, i, td.PID)
				}
				if td.Bytes > maxQTDBytes {
					return invalid("queue %q qtd %d: %d bytes exceeds %d", q.Name, i, td.Bytes, maxQTDBytes)
				}
			}
		}
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	devices := make(map[uint8]bool)

	for _, d := range sc.Devices {
		if d.Address == 0 || d.Address > 127 {
			return invalid("device address %d out of range 1..127", d.Address)
		}
		if devices[d.Address] {
			return invalid("device %d defined twice", d.Address)
		}
		devices[d.Address] = true

		if !controllers[d.Controller] {
			return invalid("device %d: unknown controller %d", d.Address, d.Controller)
		}
		if d.Buffer < 0 {
			return invalid("device %d: negative buffer size", d.Address)
		}
		if d.Buffer > maxQTDBytes {
			return invalid("device %d: buffer %d exceeds %d", d.Address, d.Buffer, maxQTDBytes)
		}
	}

	// ------------------------------------------------------------
	// STEPS
	// ------------------------------------------------------------

	for i, s := range sc.Steps {
		n := i + 1
		switch s.Op {
		case OpRun, OpRunError, OpUnplug, OpAck:
			if !controllers[s.Controller] {
				return invalid("step %d (%s): unknown controller %d", n, s.Op, s.Controller)
			}
		case OpPlug:
			if !controllers[s.Controller] {
				return invalid("step %d (%s): unknown controller %d", n, s.Op, s.Controller)
			}
			if _, ok := hal.ParseSpeed(s.Speed); !ok {
				return invalid("step %d (%s): unknown speed %q", n, s.Op, s.Speed)
			}
		case OpControl:
			if !devices[s.Device] {
				return invalid("step %d (%s): unknown device %d", n, s.Op, s.Device)
			}
		default:
			return invalid("step %d: unknown op %q", n, s.Op)
		}
	}

	return nil
}

// isControlQueueName reports whether name has the form dev<N>-control.
func isControlQueueName(name string) bool {
	rest, ok := strings.CutPrefix(name, controlQueuePrefix)
	if !ok {
		return false
	}
	num, ok := strings.CutSuffix(rest, "-control")
	if !ok {
		return false
	}
	_, err := strconv.ParseUint(num, 10, 8)
	return err == nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
