package scenario

import (
	"fmt"
	"strings"
)

// Normalize fills defaults in place:
//   - a controller without async or periodic queues gets an idle anchor
//   - unnamed queues are named c<id>-async<i> or c<id>-periodic<i>
//   - qTD PIDs default to "in" and are lower-cased
//   - step ops and speeds are lower-cased
func Normalize(sc *Scenario) {
	for i := range sc.Controllers {
		c := &sc.Controllers[i]
		if len(c.Async) == 0 {
			c.Async = []QueueConfig{{}}
		}
		if len(c.Periodic) == 0 {
			c.Periodic = []QueueConfig{{}}
		}
		normalizeQueues(c.Async, fmt.Sprintf("c%d-async", c.ID))
		normalizeQueues(c.Periodic, fmt.Sprintf("c%d-periodic", c.ID))
	}

	for i := range sc.Steps {
		s := &sc.Steps[i]
		s.Op = strings.ToLower(strings.TrimSpace(s.Op))
		s.Speed = strings.ToLower(strings.TrimSpace(s.Speed))
	}
}

func normalizeQueues(queues []QueueConfig, prefix string) {
	for i := range queues {
		q := &queues[i]
		if q.Name == "" {
			q.Name = fmt.Sprintf("%s%d", prefix, i)
		}
		for j := range q.QTDs {
			td := &q.QTDs[j]
			td.PID = strings.ToLower(strings.TrimSpace(td.PID))
			if td.PID == "" {
				td.PID = "in"
			}
		}
	}
}
