// Package executor advances a single PCB by exactly one flattened
// instruction. Execute is a switch over process.Kind: the opcode is
// already a typed tag decided once, at parse/generation time, so a
// step never re-tokenizes an instruction string.
package executor

import (
	"errors"
	"fmt"
	"go/token"
	"strconv"
	"strings"
	"time"

	"github.com/csopesy-go/emuos/internal/exprlang"
	"github.com/csopesy-go/emuos/internal/memmgr"
	"github.com/csopesy-go/emuos/internal/process"
)

const maxSleepTicks = 255

// logTimestampFormat is the time layout of the timestamp that opens
// every "(timestamp) Core: <id>" log line.
const logTimestampFormat = "01/02/2006 03:04:05PM"

// Execute advances pcb by one flattened instruction on the named
// core. It is a no-op if the PCB is Blocked or still sleeping. Callers
// must hold exclusive ownership of pcb (dequeued from the ready queue)
// — Execute never blocks on the process-table lock.
func Execute(pcb *process.PCB, coreID int, mm *memmgr.Manager) error {
	if pcb.State == process.Blocked || pcb.SleepTicks > 0 {
		return nil
	}

	if err := pcb.EnsureFlattened(); err != nil {
		return nil // pcb already logged and self-terminated
	}

	if pcb.ProgramCounter >= len(pcb.Flattened) {
		pcb.SetState(process.Terminated)
		return nil
	}

	pcb.SetState(process.Running)
	ins := pcb.Flattened[pcb.ProgramCounter]

	switch ins.Kind {
	case process.Print:
		execPrint(pcb, coreID, ins)
	case process.Declare:
		if !execDeclare(pcb, coreID, mm, ins) {
			return nil // terminated on violation
		}
	case process.Add, process.Sub:
		if !execArith(pcb, coreID, mm, ins) {
			return nil
		}
	case process.Sleep:
		pcb.SleepTicks = uint8(min(int(ins.Val1), maxSleepTicks))
		pcb.SetState(process.Blocked)
		return nil // does not advance PC
	case process.For:
		// unreachable post-flattening; skip defensively.
	case process.ReadMem:
		if !execReadMem(pcb, coreID, mm, ins) {
			return nil
		}
	case process.WriteMem:
		if !execWriteMem(pcb, coreID, mm, ins) {
			return nil
		}
	}

	pcb.ProgramCounter++
	if pcb.ProgramCounter >= len(pcb.Flattened) {
		pcb.SetState(process.Terminated)
	} else {
		pcb.SetState(process.Ready)
	}
	return nil
}

func logLine(pcb *process.PCB, coreID int, text string) {
	line := fmt.Sprintf("(%s) Core: %d \"%s\"", time.Now().Format(logTimestampFormat), coreID, text)
	pcb.Log(line)
}

func execPrint(pcb *process.PCB, coreID int, ins process.Instruction) {
	var text string
	if ins.Arg2 != "" {
		// random-generated: Arg1 already carries the full literal text
		// including " Value from: <var>"; substitute the live value.
		text = strings.Replace(ins.Arg1, "Value from: "+ins.Arg2, fmt.Sprintf("Value from: %d", pcb.ReadVariable(ins.Arg2)), 1)
	} else if looksLikeExpression(ins.Arg1) {
		vars := snapshotVars(pcb)
		evaluated, err := exprlang.Evaluate(ins.Arg1, vars)
		if err != nil {
			text = ins.Arg1
		} else {
			text = evaluated
		}
	} else {
		text = ins.Arg1
	}
	logLine(pcb, coreID, text)
}

// looksLikeExpression distinguishes a random-generated literal
// ("Hello world from p01!") from a user-defined concatenation
// expression ("\"x = \" + x") or a bare variable name ("x"). The
// generator never emits a leading quote, a '+', or a bare identifier
// as Arg1, so this heuristic is exact for both instruction sources
// this executor ever sees.
func looksLikeExpression(arg1 string) bool {
	trimmed := strings.TrimSpace(arg1)
	return strings.HasPrefix(trimmed, "\"") || strings.Contains(trimmed, "+") || token.IsIdentifier(trimmed)
}

func snapshotVars(pcb *process.PCB) map[string]uint16 {
	vars := make(map[string]uint16)
	for name := range pcb.SymbolTable {
		vars[name] = pcb.ReadVariable(name)
	}
	for name := range pcb.LegacyMemory {
		vars[name] = pcb.ReadVariable(name)
	}
	return vars
}

// touchSymbolTablePage performs the memory-manager access that models
// a byte-addressed process's first touch of the symbol-table page.
// Legacy processes have no memory-manager registration and skip this
// entirely.
func touchSymbolTablePage(pcb *process.PCB, mm *memmgr.Manager) error {
	if pcb.MemoryBytes == nil {
		return nil
	}
	return mm.Access(pcb.PID, 0, true)
}

func execDeclare(pcb *process.PCB, coreID int, mm *memmgr.Manager, ins process.Instruction) bool {
	if err := touchSymbolTablePage(pcb, mm); err != nil {
		terminateOnViolation(pcb, coreID, 0)
		return false
	}
	logIfSymbolTableFull(pcb, coreID, pcb.WriteVariable(ins.Arg1, ins.Val1))
	return true
}

func execArith(pcb *process.PCB, coreID int, mm *memmgr.Manager, ins process.Instruction) bool {
	if err := touchSymbolTablePage(pcb, mm); err != nil {
		terminateOnViolation(pcb, coreID, 0)
		return false
	}
	op1 := ins.Operand1(pcb.ReadVariable)
	op2 := ins.Operand2(pcb.ReadVariable)

	var result int32
	if ins.Kind == process.Add {
		result = int32(op1) + int32(op2)
	} else {
		result = int32(op1) - int32(op2)
	}
	logIfSymbolTableFull(pcb, coreID, pcb.WriteVariable(ins.Arg1, clampU16(result)))
	return true
}

// logIfSymbolTableFull records a warning in the PCB's own log when a
// variable write is dropped because the 32-slot symbol table is full,
// instead of discarding the failure silently.
func logIfSymbolTableFull(pcb *process.PCB, coreID int, err error) {
	if !errors.Is(err, process.ErrSymbolTableFull) {
		return
	}
	logLine(pcb, coreID, fmt.Sprintf("warning: %v, write dropped", err))
}

// clampU16 saturates a signed sum/difference to [0, 65535].
func clampU16(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

func execReadMem(pcb *process.PCB, coreID int, mm *memmgr.Manager, ins process.Instruction) bool {
	addr, err := parseAddress(ins.Arg2)
	if err != nil || addr+1 >= len(pcb.MemoryBytes) {
		terminateOnViolation(pcb, coreID, addr)
		return false
	}
	if err := mm.Access(pcb.PID, addr, false); err != nil {
		terminateOnViolation(pcb, coreID, addr)
		return false
	}
	value, _ := pcb.ReadWordAt(addr)
	logIfSymbolTableFull(pcb, coreID, pcb.WriteVariable(ins.Arg1, value))
	return true
}

func execWriteMem(pcb *process.PCB, coreID int, mm *memmgr.Manager, ins process.Instruction) bool {
	addr, err := parseAddress(ins.Arg1)
	if err != nil || addr+1 >= len(pcb.MemoryBytes) {
		terminateOnViolation(pcb, coreID, addr)
		return false
	}
	if err := mm.Access(pcb.PID, addr, true); err != nil {
		terminateOnViolation(pcb, coreID, addr)
		return false
	}
	value := pcb.ReadVariable(ins.Arg2)
	pcb.WriteWordAt(addr, value)
	return true
}

// terminateOnViolation marks pcb terminated and logs the faulting
// address in the same hexadecimal form regardless of how the operand
// was originally written ("0x..." or plain decimal); addr is 0 when
// parseAddress could not resolve one at all.
func terminateOnViolation(pcb *process.PCB, coreID int, addr int) {
	address := fmt.Sprintf("0x%X", addr)
	pcb.MarkViolation(address)
	logLine(pcb, coreID, fmt.Sprintf("Memory access violation at %s", address))
}

// parseAddress accepts either a "0x..." hex literal or a plain
// decimal integer. A malformed operand resolves to address 0 so the
// caller can still report a well-formed violation address.
func parseAddress(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		v, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		return int(v), nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return v, nil
}
