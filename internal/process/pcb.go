package process

import (
	"fmt"
	"sync"
	"time"
)

// State is the PCB lifecycle state.
type State int

const (
	Ready State = iota
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

const (
	symbolTableSize = 64 // bytes reserved for the variable segment
	maxVariables    = 32 // symbolTableSize / 2
)

// PCB is the process control block: PID, name, instruction list,
// memory, symbol table, and the logs and timestamps the lifecycle
// accumulates as it moves through Ready/Running/Blocked/Terminated.
type PCB struct {
	mu sync.Mutex

	PID         int
	Name        string
	Instructions []Instruction
	MemorySize  int // bytes

	State          State
	ProgramCounter int
	SleepTicks     uint8

	Logs []string

	Flattened   []Instruction
	IsFlattened bool

	// MemoryBytes is the byte-addressed process memory buffer. Empty means
	// this PCB was synthesized by the random generator and uses the
	// legacy name->uint16 map instead (LegacyMemory).
	MemoryBytes []byte
	SymbolTable map[string]int // variable name -> offset in the symbol-table segment
	NextSymbolOffset int

	LegacyMemory map[string]uint16

	HasMemoryViolation bool
	ViolationTime      time.Time
	ViolationAddress   string

	CreatedAt time.Time

	ReadyAt       time.Time
	RunningAt     time.Time
	FinishedAt    time.Time
}

// New builds a PCB for a process with byte-addressed memory of memSize
// bytes (the modern READ/WRITE path). memSize == 0 selects the legacy
// name-keyed memory path used by randomly generated processes.
func New(pid int, name string, instrs []Instruction, memSize int) *PCB {
	pcb := &PCB{
		PID:          pid,
		Name:         name,
		Instructions: instrs,
		MemorySize:   memSize,
		State:        Ready,
		CreatedAt:    time.Now(),
	}
	if memSize > 0 {
		pcb.MemoryBytes = make([]byte, memSize)
		pcb.SymbolTable = make(map[string]int)
	} else {
		pcb.LegacyMemory = make(map[string]uint16)
	}
	return pcb
}

// SetState transitions the PCB to newState, stamping the relevant
// timestamp. A no-op if newState matches the current state.
func (pcb *PCB) SetState(newState State) {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	if pcb.State == newState {
		return
	}
	now := time.Now()
	switch newState {
	case Ready:
		pcb.ReadyAt = now
	case Running:
		pcb.RunningAt = now
	case Terminated:
		pcb.FinishedAt = now
	}
	pcb.State = newState
}

// Log appends a line already formatted by the caller (internal/executor
// owns the "Core: <id>" + timestamp wrapping per instruction).
func (pcb *PCB) Log(line string) {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	pcb.Logs = append(pcb.Logs, line)
}

// LogSnapshot returns a copy of the accumulated logs, safe to hand to a
// reader goroutine (the screen -r / process-smi views read this while
// execution continues on a core).
func (pcb *PCB) LogSnapshot() []string {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	out := make([]string, len(pcb.Logs))
	copy(out, pcb.Logs)
	return out
}

// EnsureFlattened lazily runs loop flattening on first execution. On
// ErrForDepthExceeded it logs the violation and terminates the
// process.
func (pcb *PCB) EnsureFlattened() error {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	if pcb.IsFlattened {
		return nil
	}
	flat, err := Flatten(pcb.Instructions)
	if err != nil {
		pcb.Logs = append(pcb.Logs, "Error: Maximum FOR_LOOP nesting depth exceeded.")
		pcb.State = Terminated
		pcb.FinishedAt = time.Now()
		return err
	}
	pcb.Flattened = flat
	pcb.IsFlattened = true
	return nil
}

// getOrCreateVariable returns the variable's byte offset, allocating one
// if this is the first reference. Returns -1 if the symbol table is
// full (32 variables already declared).
func (pcb *PCB) getOrCreateVariable(name string) int {
	if off, ok := pcb.SymbolTable[name]; ok {
		return off
	}
	if pcb.NextSymbolOffset >= symbolTableSize {
		return -1
	}
	off := pcb.NextSymbolOffset
	pcb.SymbolTable[name] = off
	pcb.NextSymbolOffset += 2
	return off
}

// ErrSymbolTableFull is returned by WriteVariable when the 32-variable
// symbol table segment has no room left for a new name.
var ErrSymbolTableFull = fmt.Errorf("symbol table full")

// ReadVariable reads a declared uint16 variable. An undeclared name
// reads back as zero instead of erroring.
func (pcb *PCB) ReadVariable(name string) uint16 {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	if pcb.MemoryBytes == nil {
		return pcb.LegacyMemory[name]
	}
	off, ok := pcb.SymbolTable[name]
	if !ok {
		return 0
	}
	return pcb.readWordLocked(off)
}

// WriteVariable declares-or-updates a variable in the symbol table
// segment. Returns ErrSymbolTableFull when a brand-new name can't be
// allocated because all 32 slots are taken.
func (pcb *PCB) WriteVariable(name string, value uint16) error {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	if pcb.MemoryBytes == nil {
		pcb.LegacyMemory[name] = value
		return nil
	}
	off := pcb.getOrCreateVariable(name)
	if off < 0 {
		return ErrSymbolTableFull
	}
	pcb.writeWordLocked(off, value)
	return nil
}

// ReadWordAt reads the uint16 at a raw byte address (the READ
// instruction's target), independent of the symbol table.
func (pcb *PCB) ReadWordAt(addr int) (uint16, bool) {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	if addr < 0 || addr+1 >= len(pcb.MemoryBytes) {
		return 0, false
	}
	return pcb.readWordLocked(addr), true
}

// WriteWordAt writes the uint16 at a raw byte address (the WRITE
// instruction's target).
func (pcb *PCB) WriteWordAt(addr int, value uint16) bool {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	if addr < 0 || addr+1 >= len(pcb.MemoryBytes) {
		return false
	}
	pcb.writeWordLocked(addr, value)
	return true
}

func (pcb *PCB) readWordLocked(off int) uint16 {
	if off+1 >= len(pcb.MemoryBytes) {
		return 0
	}
	return uint16(pcb.MemoryBytes[off]) | uint16(pcb.MemoryBytes[off+1])<<8
}

func (pcb *PCB) writeWordLocked(off int, value uint16) {
	pcb.MemoryBytes[off] = byte(value & 0xFF)
	pcb.MemoryBytes[off+1] = byte(value >> 8)
}

// MarkViolation records a memory access violation and terminates the
// process.
func (pcb *PCB) MarkViolation(address string) {
	pcb.mu.Lock()
	defer pcb.mu.Unlock()
	pcb.HasMemoryViolation = true
	pcb.ViolationTime = time.Now()
	pcb.ViolationAddress = address
	pcb.State = Terminated
	pcb.FinishedAt = time.Now()
}

func (pcb *PCB) String() string {
	return fmt.Sprintf("PCB{PID: %d, Name: %s, State: %s, PC: %d}", pcb.PID, pcb.Name, pcb.State, pcb.ProgramCounter)
}
