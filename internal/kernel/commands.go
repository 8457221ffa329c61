package kernel

import (
	"fmt"
	"math/bits"

	"github.com/csopesy-go/emuos/internal/console"
	"github.com/csopesy-go/emuos/internal/status"
)

const helpText = `Available commands:
  initialize                                  load config, build memory manager, start scheduler
  screen -s <name> [bytes]                     create a random process (default 256 B)
  screen -c <name> <bytes> "<instructions>"    create a user-defined process
  screen -ls                                   list running and finished processes
  screen -r <name>                             view a process's logs
  scheduler-start                               begin batch process generation
  scheduler-test                                begin batch process generation (alias)
  scheduler-stop                                stop batch process generation
  report-util                                   write the process listing to csopesy-log.txt
  process-smi                                   show CPU/memory utilization summary
  vmstat                                        show memory and paging counters
  help                                          show this message
  exit                                           quit`

const minScreenBytes = 64
const maxScreenBytes = 65536

// Dispatch executes cmd against the kernel's core components and
// returns the human-readable text the command channel's caller
// should display. Rejections are ErrNotInitialized or
// ErrInvalidArgument wrapping the underlying cause, ErrAlreadyInit or
// ErrConfig from initialize, or errors passed up from the scheduler
// and the report writer.
func (k *Kernel) Dispatch(cmd console.Command) (string, error) {
	switch cmd.Kind {
	case console.Help:
		return helpText, nil
	case console.Exit:
		return "", nil
	case console.Initialize:
		if err := k.Initialize("config.txt"); err != nil {
			return "", err
		}
		return "Initialized.", nil
	}

	if err := k.requireInitialized(); err != nil {
		return "", err
	}

	switch cmd.Kind {
	case console.ScreenStart:
		return k.screenStart(cmd)
	case console.ScreenCreate:
		return k.screenCreate(cmd)
	case console.ScreenList:
		return k.screenList()
	case console.ScreenResume:
		return k.screenResume(cmd)
	case console.SchedulerStart:
		if err := k.sched.StartGenerator(); err != nil {
			return "", err
		}
		return "Scheduler started.", nil
	case console.SchedulerTest:
		if err := k.sched.StartTest(); err != nil {
			return "", err
		}
		return "Scheduler test mode started.", nil
	case console.SchedulerStop:
		k.sched.StopGenerator()
		return "Scheduler stopped.", nil
	case console.ReportUtil:
		if err := k.report.WriteReport("csopesy-log.txt"); err != nil {
			return "", err
		}
		return "Report written to csopesy-log.txt.", nil
	case console.ProcessSMI:
		return k.processSMI(), nil
	case console.VMStat:
		return k.vmstat(), nil
	default:
		return "", fmt.Errorf("%w: unhandled command", ErrInvalidArgument)
	}
}

func (k *Kernel) screenStart(cmd console.Command) (string, error) {
	if err := validateScreenBytes(cmd.MemBytes); err != nil {
		return "", err
	}
	if _, err := k.sched.SubmitRandom(cmd.Name, cmd.MemBytes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return fmt.Sprintf("Process %s created.", cmd.Name), nil
}

func (k *Kernel) screenCreate(cmd console.Command) (string, error) {
	if err := validateScreenBytes(cmd.MemBytes); err != nil {
		return "", err
	}
	instrs, err := parseInstructions(cmd.InstructionText)
	if err != nil {
		return "", err
	}
	if _, err := k.sched.SubmitUser(cmd.Name, cmd.MemBytes, instrs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return fmt.Sprintf("Process %s created.", cmd.Name), nil
}

func (k *Kernel) screenList() (string, error) {
	snap := k.report.Build()
	out := fmt.Sprintf("CPU utilization: %d%%\nCores used: %d\nCores available: %d\n\nRunning processes:\n",
		snap.CPUUtilization, snap.CoresUsed, snap.CoresAvailable)
	for _, line := range snap.Live {
		out += line.String() + "\n"
	}
	out += "\nFinished processes:\n"
	for _, line := range snap.Finished {
		out += line.String() + "\n"
	}
	return out, nil
}

func (k *Kernel) screenResume(cmd console.Command) (string, error) {
	pcb, err := k.table.GetByName(cmd.Name)
	if err != nil {
		return "", fmt.Errorf("%w: no such process %q", ErrInvalidArgument, cmd.Name)
	}
	out := fmt.Sprintf("Process: %s (PID %d)\nState: %s\n", pcb.Name, pcb.PID, pcb.State)
	for _, line := range pcb.LogSnapshot() {
		out += line + "\n"
	}
	if pcb.HasMemoryViolation {
		out += fmt.Sprintf("Memory access violation at %s\n", pcb.ViolationAddress)
	}
	return out, nil
}

func (k *Kernel) processSMI() string {
	snap := k.report.Build()
	return fmt.Sprintf("CPU utilization: %d%%\nMemory usage: %d/%d MiB\nMemory util: %d%%",
		snap.CPUUtilization, snap.Memory.UsedMiB, snap.Memory.TotalMiB, percentUsed(snap.Memory))
}

func (k *Kernel) vmstat() string {
	snap := k.report.Build()
	m := snap.Memory
	return fmt.Sprintf(
		"%d MiB total memory\n%d MiB used memory\n%d MiB free memory\n%d idle ticks\n%d active ticks\n%d pages paged in\n%d pages paged out",
		m.TotalMiB, m.UsedMiB, m.FreeMiB, m.IdleTicks, m.ActiveTic, m.PagedIn, m.PagedOut)
}

func percentUsed(m status.MemorySummary) int {
	if m.TotalMiB == 0 {
		return 0
	}
	return 100 * m.UsedMiB / m.TotalMiB
}

func validateScreenBytes(n int) error {
	if n < minScreenBytes || n > maxScreenBytes {
		return fmt.Errorf("%w: memory size must be in [%d, %d], got %d", ErrInvalidArgument, minScreenBytes, maxScreenBytes, n)
	}
	if bits.OnesCount(uint(n)) != 1 {
		return fmt.Errorf("%w: memory size must be a power of two, got %d", ErrInvalidArgument, n)
	}
	return nil
}
