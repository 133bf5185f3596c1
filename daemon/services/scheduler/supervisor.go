package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// Supervisor is the software task-watchdog: a liveness timestamp per
// registered task, staleness checked against a single shared timeout.
// Grounded on the teacher's watchdog.Runner status map, narrowed to the
// two operations this domain actually needs (touch, check-for-hangs) plus
// the ported getTaskWatchdogStatus() human-readable dump.
type Supervisor struct {
	timeout time.Duration

	mu       sync.RWMutex
	liveness map[string]time.Time
	hung     map[string]bool

	onHang func(task string)
}

// NewSupervisor creates a Supervisor with the given staleness timeout.
// onHang, if non-nil, is invoked (once per hang, not once per check) the
// first time a task is found stale — the Control task wires this to force
// Idle and cut every output.
func NewSupervisor(timeout time.Duration, onHang func(task string)) *Supervisor {
	return &Supervisor{
		timeout:  timeout,
		liveness: make(map[string]time.Time),
		hung:     make(map[string]bool),
		onHang:   onHang,
	}
}

func (s *Supervisor) register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness[name] = time.Now()
	s.hung[name] = false
}

func (s *Supervisor) touch(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness[name] = now
	s.hung[name] = false
}

// Check scans every registered task's last-touch timestamp against now
// and returns the names of tasks newly found stale. Tasks already flagged
// hung are not returned again until they touch in and go stale once more.
func (s *Supervisor) Check(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newlyHung []string
	for name, last := range s.liveness {
		stale := now.Sub(last) > s.timeout
		if stale && !s.hung[name] {
			s.hung[name] = true
			newlyHung = append(newlyHung, name)
		}
	}
	sort.Strings(newlyHung)

	for _, name := range newlyHung {
		if s.onHang != nil {
			s.onHang(name)
		}
	}
	return newlyHung
}

// StatusReport renders a human-readable liveness dump, the Go equivalent
// of the original firmware's getTaskWatchdogStatus() debug string,
// surfaced at GET /api/v1/watchdog.
func (s *Supervisor) StatusReport() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.liveness))
	for name := range s.liveness {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	report := ""
	for _, name := range names {
		age := now.Sub(s.liveness[name])
		status := "ok"
		if s.hung[name] {
			status = "HUNG"
		}
		report += fmt.Sprintf("%-10s age=%-10s status=%s\n", name, age.Round(time.Millisecond), status)
	}
	return report
}

// DefaultSupervisor creates a Supervisor using the compiled-in task
// staleness timeout.
func DefaultSupervisor(onHang func(task string)) *Supervisor {
	return NewSupervisor(constants.TaskWatchdogTimeout, onHang)
}
