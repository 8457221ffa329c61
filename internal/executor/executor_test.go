package executor

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csopesy-go/emuos/internal/logging"
	"github.com/csopesy-go/emuos/internal/memmgr"
	"github.com/csopesy-go/emuos/internal/process"
)

func newTestMemMgr(t *testing.T) *memmgr.Manager {
	t.Helper()
	store, err := memmgr.NewBackingStore(filepath.Join(t.TempDir(), "backing-store.txt"), false, 0, logging.Discard())
	require.NoError(t, err)
	return memmgr.New(64*1024, 1024, store, logging.Discard())
}

func TestExecuteLegacyPrintHelloWorld(t *testing.T) {
	require := require.New(t)

	pcb := process.New(1, "p01", []process.Instruction{
		{Kind: process.Print, Arg1: "Hello world from p01!"},
	}, 0)

	require.NoError(Execute(pcb, 0, nil))
	logs := pcb.LogSnapshot()
	require.Len(logs, 1)
	require.Contains(logs[0], "Hello world from p01!")
	require.Equal(process.Terminated, pcb.State)
}

func TestExecuteLegacyPrintWithValueFrom(t *testing.T) {
	require := require.New(t)

	pcb := process.New(1, "p01", []process.Instruction{
		{Kind: process.Declare, Arg1: "x", Val1: 7},
		{Kind: process.Print, Arg1: "Hello world from p01! Value from: x", Arg2: "x"},
	}, 0)

	require.NoError(Execute(pcb, 0, nil))
	require.NoError(Execute(pcb, 0, nil))

	logs := pcb.LogSnapshot()
	require.Contains(logs[0], "Value from: 7")
}

func TestExecuteUserPrintExpression(t *testing.T) {
	require := require.New(t)
	mm := newTestMemMgr(t)
	mm.AllocateProcess(1, 64)

	pcb := process.New(1, "user1", []process.Instruction{
		{Kind: process.Declare, Arg1: "x", Val1: 42},
		{Kind: process.Print, Arg1: `"x = " + x`},
	}, 64)

	require.NoError(Execute(pcb, 0, mm))
	require.NoError(Execute(pcb, 0, mm))

	logs := pcb.LogSnapshot()
	require.Contains(logs[0], "x = 42")
}

func TestExecuteAddClampsOnOverflow(t *testing.T) {
	require := require.New(t)

	pcb := process.New(1, "p01", []process.Instruction{
		{Kind: process.Declare, Arg1: "x", Val1: 65000},
		{Kind: process.Add, Arg1: "x", IsLiteral1: false, Arg2: "x", IsLiteral2: true, Val2: 1000},
	}, 0)

	require.NoError(Execute(pcb, 0, nil))
	require.NoError(Execute(pcb, 0, nil))
	require.Equal(uint16(65535), pcb.ReadVariable("x"))
}

func TestExecuteSubClampsOnUnderflow(t *testing.T) {
	require := require.New(t)

	pcb := process.New(1, "p01", []process.Instruction{
		{Kind: process.Declare, Arg1: "x", Val1: 5},
		{Kind: process.Sub, Arg1: "x", IsLiteral1: false, Arg2: "x", IsLiteral2: true, Val2: 10},
	}, 0)

	require.NoError(Execute(pcb, 0, nil))
	require.NoError(Execute(pcb, 0, nil))
	require.Equal(uint16(0), pcb.ReadVariable("x"))
}

func TestExecuteSleepBlocksWithoutAdvancingPC(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	pcb := process.New(1, "p01", []process.Instruction{
		{Kind: process.Sleep, Val1: 300},
		{Kind: process.Print, Arg1: "after sleep"},
	}, 0)

	require.NoError(Execute(pcb, 0, nil))
	assert.Equal(process.Blocked, pcb.State)
	assert.Equal(uint8(255), pcb.SleepTicks) // clamped to max 255
	assert.Equal(0, pcb.ProgramCounter)

	require.NoError(Execute(pcb, 0, nil)) // still blocked, no-op
	assert.Equal(0, pcb.ProgramCounter)
}

func TestExecuteReadMemOutOfBoundsTerminatesWithViolation(t *testing.T) {
	require := require.New(t)
	mm := newTestMemMgr(t)
	mm.AllocateProcess(1, 64)

	pcb := process.New(1, "user1", []process.Instruction{
		{Kind: process.ReadMem, Arg1: "x", Arg2: "0x1000"},
	}, 64)

	require.NoError(Execute(pcb, 0, mm))
	require.True(pcb.HasMemoryViolation)
	require.Equal(process.Terminated, pcb.State)
	logs := pcb.LogSnapshot()
	require.Contains(logs[0], "Memory access violation at 0x1000")
}

func TestExecuteReadMemDecimalAddressViolationLogsHex(t *testing.T) {
	require := require.New(t)
	mm := newTestMemMgr(t)
	mm.AllocateProcess(1, 64)

	pcb := process.New(1, "user1", []process.Instruction{
		{Kind: process.ReadMem, Arg1: "x", Arg2: "300"},
	}, 64)

	require.NoError(Execute(pcb, 0, mm))
	require.True(pcb.HasMemoryViolation)
	require.Equal("0x12C", pcb.ViolationAddress)
	logs := pcb.LogSnapshot()
	require.Contains(logs[0], "Memory access violation at 0x12C")
}

func TestExecuteSymbolTableFullLogsWarning(t *testing.T) {
	require := require.New(t)
	mm := newTestMemMgr(t)
	mm.AllocateProcess(1, 64)

	instrs := []process.Instruction{}
	for i := 0; i < 33; i++ {
		instrs = append(instrs, process.Instruction{Kind: process.Declare, Arg1: fmt.Sprintf("v%d", i), Val1: uint16(i)})
	}

	pcb := process.New(1, "p01", instrs, 64)
	for range instrs {
		require.NoError(Execute(pcb, 0, mm))
	}

	found := false
	for _, line := range pcb.LogSnapshot() {
		if strings.Contains(line, "symbol table full") {
			found = true
		}
	}
	require.True(found, "expected a symbol-table-full warning in the PCB log")
}

func TestExecuteWriteMemThenReadMemRoundTrips(t *testing.T) {
	require := require.New(t)
	mm := newTestMemMgr(t)
	mm.AllocateProcess(1, 128)

	pcb := process.New(1, "user1", []process.Instruction{
		{Kind: process.Declare, Arg1: "src", Val1: 999},
		{Kind: process.WriteMem, Arg1: "0x40", Arg2: "src"},
		{Kind: process.ReadMem, Arg1: "dst", Arg2: "0x40"},
	}, 128)

	require.NoError(Execute(pcb, 0, mm))
	require.NoError(Execute(pcb, 0, mm))
	require.NoError(Execute(pcb, 0, mm))

	require.Equal(uint16(999), pcb.ReadVariable("dst"))
}

func TestExecuteTerminatesWhenProgramCounterReachesEnd(t *testing.T) {
	require := require.New(t)

	pcb := process.New(1, "p01", []process.Instruction{
		{Kind: process.Print, Arg1: "only instruction"},
	}, 0)

	require.NoError(Execute(pcb, 0, nil))
	require.Equal(process.Terminated, pcb.State)
	require.Equal(1, pcb.ProgramCounter)
}
