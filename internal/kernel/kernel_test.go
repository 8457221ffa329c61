package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/csopesy-go/emuos/internal/console"
	"github.com/csopesy-go/emuos/internal/logging"
	"github.com/csopesy-go/emuos/internal/status"
)

// writeTestConfig drops a minimal config file in the current directory
// and chdirs the test there, since Kernel.Initialize and the backing
// store both resolve their paths relative to the working directory.
func writeTestConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cfg := "num-cpu 2\n" +
		"scheduler rr\n" +
		"quantum-cycles 3\n" +
		"batch-process-freq 1\n" +
		"min-ins 1\n" +
		"max-ins 3\n" +
		"delay-per-exec 0\n" +
		"max-overall-mem 16\n" +
		"mem-per-frame 1\n" +
		"min-mem-per-proc 64\n" +
		"max-mem-per-proc 128\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.txt"), []byte(cfg), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func newInitializedKernel(t *testing.T) *Kernel {
	writeTestConfig(t)
	k := New(logging.Discard())
	require.NoError(t, k.Initialize("config.txt"))
	t.Cleanup(k.Shutdown)
	return k
}

func TestDispatchRejectsCommandsBeforeInitialize(t *testing.T) {
	k := New(logging.Discard())
	_, err := k.Dispatch(console.Command{Kind: console.ScreenList})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestDispatchHelpAndExitNeedNoInitialize(t *testing.T) {
	k := New(logging.Discard())
	out, err := k.Dispatch(console.Command{Kind: console.Help})
	require.NoError(t, err)
	require.Contains(t, out, "Available commands")

	out, err = k.Dispatch(console.Command{Kind: console.Exit})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDispatchInitializeIsNotReentrant(t *testing.T) {
	k := newInitializedKernel(t)
	_, err := k.Dispatch(console.Command{Kind: console.Initialize})
	require.ErrorIs(t, err, ErrAlreadyInit)
}

func TestDispatchInitializeRejectsMissingConfig(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	k := New(logging.Discard())
	_, err = k.Dispatch(console.Command{Kind: console.Initialize})
	require.ErrorIs(t, err, ErrConfig)
}

func TestDispatchScreenStartRejectsBadMemory(t *testing.T) {
	k := newInitializedKernel(t)

	_, err := k.Dispatch(console.Command{Kind: console.ScreenStart, Name: "p1", MemBytes: 100})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = k.Dispatch(console.Command{Kind: console.ScreenStart, Name: "p1", MemBytes: 32})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDispatchScreenStartCreatesProcess(t *testing.T) {
	k := newInitializedKernel(t)

	out, err := k.Dispatch(console.Command{Kind: console.ScreenStart, Name: "p1", MemBytes: 256})
	require.NoError(t, err)
	require.Contains(t, out, "p1")
}

func TestDispatchScreenCreateRejectsBadInstructions(t *testing.T) {
	k := newInitializedKernel(t)

	_, err := k.Dispatch(console.Command{
		Kind: console.ScreenCreate, Name: "p2", MemBytes: 256, InstructionText: "FOR 3",
	})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDispatchScreenCreateSucceeds(t *testing.T) {
	k := newInitializedKernel(t)

	out, err := k.Dispatch(console.Command{
		Kind: console.ScreenCreate, Name: "p3", MemBytes: 256, InstructionText: "DECLARE x 5; PRINT x",
	})
	require.NoError(t, err)
	require.Contains(t, out, "p3")
}

func TestDispatchScreenResumeUnknownProcess(t *testing.T) {
	k := newInitializedKernel(t)

	_, err := k.Dispatch(console.Command{Kind: console.ScreenResume, Name: "ghost"})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDispatchScreenResumeKnownProcess(t *testing.T) {
	k := newInitializedKernel(t)

	_, err := k.Dispatch(console.Command{
		Kind: console.ScreenCreate, Name: "p4", MemBytes: 256, InstructionText: "DECLARE x 5",
	})
	require.NoError(t, err)

	out, err := k.Dispatch(console.Command{Kind: console.ScreenResume, Name: "p4"})
	require.NoError(t, err)
	require.Contains(t, out, "p4")
}

func TestDispatchSchedulerToggles(t *testing.T) {
	k := newInitializedKernel(t)

	_, err := k.Dispatch(console.Command{Kind: console.SchedulerStart})
	require.NoError(t, err)

	_, err = k.Dispatch(console.Command{Kind: console.SchedulerTest})
	require.NoError(t, err)

	_, err = k.Dispatch(console.Command{Kind: console.SchedulerStop})
	require.NoError(t, err)
}

func TestDispatchProcessSMIAndVMStat(t *testing.T) {
	k := newInitializedKernel(t)

	out, err := k.Dispatch(console.Command{Kind: console.ProcessSMI})
	require.NoError(t, err)
	require.Contains(t, out, "CPU utilization")

	out, err = k.Dispatch(console.Command{Kind: console.VMStat})
	require.NoError(t, err)
	require.Contains(t, out, "total memory")
}

func TestDispatchScreenListShowsCreatedProcess(t *testing.T) {
	k := newInitializedKernel(t)

	_, err := k.Dispatch(console.Command{Kind: console.ScreenStart, Name: "p5", MemBytes: 256})
	require.NoError(t, err)

	out, err := k.Dispatch(console.Command{Kind: console.ScreenList})
	require.NoError(t, err)
	require.Contains(t, out, "p5")
}

func TestDispatchReportUtilWritesFile(t *testing.T) {
	k := newInitializedKernel(t)

	out, err := k.Dispatch(console.Command{Kind: console.ReportUtil})
	require.NoError(t, err)
	require.Contains(t, out, "csopesy-log.txt")

	_, err = os.Stat("csopesy-log.txt")
	require.NoError(t, err)
}

func TestPercentUsedHandlesZeroTotal(t *testing.T) {
	require.Equal(t, 0, percentUsed(status.MemorySummary{}))
	require.Equal(t, 50, percentUsed(status.MemorySummary{UsedMiB: 8, TotalMiB: 16}))
}
