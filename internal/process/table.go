package process

import (
	"errors"
	"sync"
)

// ErrDuplicateName is returned by Table.Add when a process with the
// same name is already in the table, live or finished (finished
// processes stay reachable by name). The original emulator silently overwrote
// the previous process; this one rejects the second screen -s instead,
// since silently losing a running process's state is surprising to a
// user typing commands interactively.
var ErrDuplicateName = errors.New("process: duplicate name")

// ErrNotFound is returned by Table.Get for an unknown name or PID.
var ErrNotFound = errors.New("process: not found")

// Table owns every PCB the kernel knows about, live or finished, keyed
// by both name (for screen -r/-s) and PID (for core dispatch and
// status reporting).
type Table struct {
	mu       sync.Mutex
	byName   map[string]*PCB
	byPID    map[int]*PCB
	finished []*PCB
	nextPID  int
}

// NewTable returns an empty process table.
func NewTable() *Table {
	return &Table{
		byName: make(map[string]*PCB),
		byPID:  make(map[int]*PCB),
	}
}

// NextPID allocates the next PID without registering a process.
func (t *Table) NextPID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextPID++
	return t.nextPID
}

// Add registers a freshly created PCB. Fails with ErrDuplicateName if a
// process in the table, live or finished, already holds pcb.Name.
func (t *Table) Add(pcb *PCB) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[pcb.Name]; exists {
		return ErrDuplicateName
	}
	t.byName[pcb.Name] = pcb
	t.byPID[pcb.PID] = pcb
	return nil
}

// GetByName looks up a live-or-finished process by name.
func (t *Table) GetByName(name string) (*PCB, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pcb, ok := t.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return pcb, nil
}

// GetByPID looks up a live-or-finished process by PID.
func (t *Table) GetByPID(pid int) (*PCB, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pcb, ok := t.byPID[pid]
	if !ok {
		return nil, ErrNotFound
	}
	return pcb, nil
}

// Finish moves a PCB from the live set into the finished history. It
// stays reachable by name/PID for screen -r and report-util, just no
// longer eligible for scheduling.
func (t *Table) Finish(pcb *PCB) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = append(t.finished, pcb)
}

// Live returns a snapshot of every process not yet terminated.
func (t *Table) Live() []*PCB {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*PCB, 0, len(t.byName))
	for _, pcb := range t.byName {
		if pcb.State != Terminated {
			out = append(out, pcb)
		}
	}
	return out
}

// Finished returns a snapshot of every terminated process, in the order
// they finished.
func (t *Table) Finished() []*PCB {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*PCB, len(t.finished))
	copy(out, t.finished)
	return out
}

// LiveCount reports how many processes are not yet terminated, used by
// the CPU-utilization formula in internal/status.
func (t *Table) LiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, pcb := range t.byName {
		if pcb.State != Terminated {
			n++
		}
	}
	return n
}
