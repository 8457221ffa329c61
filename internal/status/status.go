// Package status builds read-only snapshots of the process table and
// memory manager for screen -ls, process-smi, vmstat, and report-util.
// Snapshots are assembled on demand from the process table and memory
// manager's own state rather than maintained as running counters.
package status

import (
	"fmt"
	"os"
	"time"

	"github.com/csopesy-go/emuos/internal/config"
	"github.com/csopesy-go/emuos/internal/memmgr"
	"github.com/csopesy-go/emuos/internal/process"
)

// ProcessLine is one row of a live or finished process listing.
type ProcessLine struct {
	Name           string
	Timestamp      time.Time
	Core           int // -1 unless the process is currently Running
	ProgramCounter int
	Total          int
	Finished       bool
}

// String renders a line the way screen -ls prints it.
func (p ProcessLine) String() string {
	ts := p.Timestamp.Format("01/02/2006 03:04:05PM")
	if p.Finished {
		return fmt.Sprintf("%s\t%s\tFinished\t%d / %d", p.Name, ts, p.Total, p.Total)
	}
	return fmt.Sprintf("%s\t%s\tCore: %d\t%d / %d", p.Name, ts, p.Core, p.ProgramCounter, p.Total)
}

// MemorySummary is the rounded memory/paging snapshot process-smi and
// vmstat report.
type MemorySummary struct {
	TotalMiB  int
	UsedMiB   int
	FreeMiB   int
	IdleTicks int64
	ActiveTic int64
	PagedIn   int
	PagedOut  int
}

// Snapshot is a consistent point-in-time view across the process table
// and memory manager, built by briefly locking each in turn.
type Snapshot struct {
	Live            []ProcessLine
	Finished        []ProcessLine
	CPUUtilization  int
	CoresAvailable  int
	CoresUsed       int
	Memory          MemorySummary
	SchedulerActive bool
}

// Builder assembles Snapshots from the process table, memory manager,
// and scheduler liveness signal. The scheduler dependency is narrowed
// to SchedulerView so this package never imports internal/scheduler
// directly and stays a leaf in the dependency graph.
type Builder struct {
	table     *process.Table
	mm        *memmgr.Manager
	cfg       *config.Config
	scheduler SchedulerView
}

// SchedulerView is the subset of internal/scheduler.Scheduler the
// status builder depends on.
type SchedulerView interface {
	Running() bool
}

// New builds a status Builder over the given process table, memory
// manager, config, and scheduler liveness view.
func New(table *process.Table, mm *memmgr.Manager, cfg *config.Config, scheduler SchedulerView) *Builder {
	return &Builder{table: table, mm: mm, cfg: cfg, scheduler: scheduler}
}

// Build assembles a full Snapshot.
func (b *Builder) Build() Snapshot {
	live := b.table.Live()
	finished := b.table.Finished()

	snap := Snapshot{
		Live:            make([]ProcessLine, 0, len(live)),
		Finished:        make([]ProcessLine, 0, len(finished)),
		SchedulerActive: b.scheduler.Running(),
	}

	for _, pcb := range live {
		snap.Live = append(snap.Live, lineFor(pcb, b.cfg.NumCPU))
	}
	for _, pcb := range finished {
		snap.Finished = append(snap.Finished, finishedLineFor(pcb))
	}

	liveCount := len(live)
	numCPU := b.cfg.NumCPU
	if numCPU <= 0 {
		numCPU = 1
	}
	if snap.SchedulerActive {
		snap.CoresUsed = liveCount
		if snap.CoresUsed > numCPU {
			snap.CoresUsed = numCPU
		}
		// CPU utilization is approximated as cores-in-use over cores
		// available. MemorySummary also carries internal/memmgr's
		// idle/active tick counters, but the scheduler only records
		// active ticks (one per executed instruction), so IdleTicks stays
		// 0 and the counters give no busy ratio.
		snap.CPUUtilization = 100 * snap.CoresUsed / numCPU
	}
	snap.CoresAvailable = numCPU - snap.CoresUsed

	stats := b.mm.Stats()
	snap.Memory = MemorySummary{
		TotalMiB:  roundMiB(stats.TotalBytes),
		UsedMiB:   roundMiB(stats.UsedBytes),
		FreeMiB:   stats.FreeBytes / (1024 * 1024),
		IdleTicks: stats.IdleTicks,
		ActiveTic: stats.ActiveTicks,
		PagedIn:   stats.PagedIn,
		PagedOut:  stats.PagedOut,
	}
	return snap
}

func lineFor(pcb *process.PCB, numCPU int) ProcessLine {
	total := len(pcb.Instructions)
	if pcb.IsFlattened {
		total = len(pcb.Flattened)
	}
	core := -1
	if pcb.State == process.Running {
		if numCPU <= 0 {
			numCPU = 1
		}
		core = pcb.PID % numCPU
	}
	return ProcessLine{
		Name:           pcb.Name,
		Timestamp:      pcb.CreatedAt,
		Core:           core,
		ProgramCounter: pcb.ProgramCounter,
		Total:          total,
	}
}

func finishedLineFor(pcb *process.PCB) ProcessLine {
	total := len(pcb.Instructions)
	if pcb.IsFlattened {
		total = len(pcb.Flattened)
	}
	return ProcessLine{
		Name:      pcb.Name,
		Timestamp: pcb.CreatedAt,
		Total:     total,
		Finished:  true,
	}
}

// roundMiB rounds a byte count down to whole MiB, except that any
// non-zero count below 1 MiB is shown as 1 MiB.
func roundMiB(bytes int) int {
	const mib = 1024 * 1024
	if bytes <= 0 {
		return 0
	}
	mibs := bytes / mib
	if mibs == 0 {
		return 1
	}
	return mibs
}

// WriteReport writes the live listing to path in the same format as
// screen -ls (create, write, close; no partial-write recovery
// attempted).
func (b *Builder) WriteReport(path string) error {
	snap := b.Build()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("status: create report %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "CPU utilization: %d%%\n", snap.CPUUtilization)
	fmt.Fprintf(f, "Cores used: %d\n", snap.CoresUsed)
	fmt.Fprintf(f, "Cores available: %d\n\n", snap.CoresAvailable)
	fmt.Fprintln(f, "Running processes:")
	for _, line := range snap.Live {
		fmt.Fprintln(f, line.String())
	}
	fmt.Fprintln(f, "\nFinished processes:")
	for _, line := range snap.Finished {
		fmt.Fprintln(f, line.String())
	}
	return nil
}
