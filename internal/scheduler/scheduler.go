// Package scheduler runs three classes of goroutine against a shared
// ready queue: a batch generator that admits random processes on a
// timer, a sleep watcher that decrements blocked processes' sleep
// counters, and num-cpu core workers that dispatch from the queue
// under FCFS or round robin.
package scheduler

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csopesy-go/emuos/internal/config"
	"github.com/csopesy-go/emuos/internal/memmgr"
	"github.com/csopesy-go/emuos/internal/process"
)

// condBroadcastInterval bounds how stale a ready-queue wait can be:
// workers blocked in dequeue are woken at least this often to recheck
// the stop signal, standing in for a timed condition-variable wait
// (sync.Cond has no native WaitTimeout).
const condBroadcastInterval = 10 * time.Millisecond

// Scheduler owns the ready queue and the lifecycle of the generator,
// sleep-watcher, and core-worker goroutines.
type Scheduler struct {
	cfg   *config.Config
	clock *config.Clock
	table *process.Table
	mm    *memmgr.Manager
	log   *slog.Logger
	gen   *process.Generator

	mu    sync.Mutex
	cond  *sync.Cond
	ready []*process.PCB

	// generatedPIDs tracks which live PIDs were admitted through the
	// batch generator's admission semaphore, so finishProcess only
	// releases a permit for the process that actually consumed one.
	generatedPIDs map[int]struct{}

	active    atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	cpuCycles atomic.Int64
	admission chan struct{}

	genActive atomic.Bool
	genStopCh chan struct{}
	genWg     sync.WaitGroup
}

// New builds a Scheduler bound to the given config, process table, and
// memory manager. It does not start any goroutine until Start is
// called; the batch generator starts only with StartGenerator or
// StartTest after that.
func New(cfg *config.Config, clock *config.Clock, table *process.Table, mm *memmgr.Manager, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		cfg:           cfg,
		clock:         clock,
		table:         table,
		mm:            mm,
		log:           log,
		gen:           process.NewGenerator(rand.New(rand.NewSource(time.Now().UnixNano()))),
		generatedPIDs: make(map[int]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	// Admission throttle bounding how many batch-generated processes
	// can be live at once. It governs only the batch generator, never
	// a user's screen -s/-c, and is sized either by num-cpu*4 or, if
	// tighter, by how many min-mem-per-proc-sized processes fit in
	// max-overall-mem.
	admissionCap := cfg.NumCPU * 4
	if bound := maxConcurrentByMemory(cfg); bound > 0 && bound < admissionCap {
		admissionCap = bound
	}
	if admissionCap < 1 {
		admissionCap = 1
	}
	s.admission = make(chan struct{}, admissionCap)
	return s
}

func maxConcurrentByMemory(cfg *config.Config) int {
	minBytes := cfg.MinMemPerProcBytes()
	if minBytes <= 0 {
		return 0
	}
	return cfg.MaxOverallMemBytes() / minBytes
}

// Running reports whether the core workers and sleep watcher are
// currently active.
func (s *Scheduler) Running() bool {
	return s.active.Load()
}

// GeneratorRunning reports whether the batch generator is currently
// admitting random processes.
func (s *Scheduler) GeneratorRunning() bool {
	return s.genActive.Load()
}

// CPUCycles returns the total instruction steps executed across every
// core since the scheduler last started.
func (s *Scheduler) CPUCycles() int64 {
	return s.cpuCycles.Load()
}

// Start launches the sleep watcher and core workers. Called once, by
// the kernel's initialize command. Idempotent: a second call while
// already running is a no-op that returns nil rather than an error,
// since re-initializing is expected to be harmless.
func (s *Scheduler) Start() error {
	if !s.active.CompareAndSwap(false, true) {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.cpuCycles.Store(0)

	s.wg.Add(2 + s.cfg.NumCPU)
	go s.runCondBroadcaster()
	go s.runSleepWatcher()
	for i := 0; i < s.cfg.NumCPU; i++ {
		go s.runWorker(i)
	}
	s.log.Info("scheduler started", "num_cpu", s.cfg.NumCPU, "algorithm", s.cfg.Scheduler)
	return nil
}

// Stop signals every scheduler goroutine, including the generator if
// running, to exit and waits for them to drain. Idempotent.
func (s *Scheduler) Stop() {
	s.StopGenerator()
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// StartTest begins batch generation (the "scheduler-test" command),
// an alias for StartGenerator.
func (s *Scheduler) StartTest() error {
	return s.StartGenerator()
}

// StartGenerator begins batch generation (the "scheduler-start"
// command): a timer-driven loop admitting randomly synthesized
// processes, not a core-dispatch toggle. Idempotent: a second call
// while already generating is a no-op.
func (s *Scheduler) StartGenerator() error {
	if !s.active.Load() {
		return fmt.Errorf("scheduler: core workers are not running")
	}
	if !s.genActive.CompareAndSwap(false, true) {
		return nil
	}
	s.genStopCh = make(chan struct{})
	s.genWg.Add(1)
	go s.runGenerator()
	s.log.Info("batch generator started", "batch_process_freq_ms", s.cfg.BatchProcessFreq)
	return nil
}

// StopGenerator halts batch generation (the "scheduler-stop" command)
// without touching the core workers or sleep watcher. Idempotent.
func (s *Scheduler) StopGenerator() {
	if !s.genActive.CompareAndSwap(true, false) {
		return
	}
	close(s.genStopCh)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	s.genWg.Wait()
	s.log.Info("batch generator stopped")
}

func (s *Scheduler) recoverPanic(label string) {
	if r := recover(); r != nil {
		s.log.Error("panic in scheduler goroutine", "goroutine", label, "panic", r)
		panic(r)
	}
}

// runCondBroadcaster periodically wakes everyone blocked in dequeue so
// they can re-check the stop signal, emulating a timed condition-wait.
func (s *Scheduler) runCondBroadcaster() {
	defer s.wg.Done()
	defer s.recoverPanic("cond broadcaster")
	ticker := time.NewTicker(condBroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		}
	}
}

// SubmitRandom admits a screen -s process: randomly synthesized
// instructions over the full ISA, with an explicit byte-addressed
// memory buffer of the requested size (unlike the batch generator's
// processes, which stay on the legacy name-keyed path).
func (s *Scheduler) SubmitRandom(name string, memBytes int) (*process.PCB, error) {
	count := s.gen.RandInt(s.cfg.MinIns, s.cfg.MaxIns)
	instrs := s.gen.Synthesize(name, count)
	return s.submit(name, memBytes, instrs)
}

// SubmitUser admits a screen -c process: a caller-supplied instruction
// list (already parsed and validated) with an explicit memory size.
func (s *Scheduler) SubmitUser(name string, memBytes int, instrs []process.Instruction) (*process.PCB, error) {
	return s.submit(name, memBytes, instrs)
}

func (s *Scheduler) submit(name string, memBytes int, instrs []process.Instruction) (*process.PCB, error) {
	pid := s.table.NextPID()
	pcb := process.New(pid, name, instrs, memBytes)
	if err := s.table.Add(pcb); err != nil {
		return nil, err
	}
	if memBytes > 0 {
		s.mm.AllocateProcess(pid, memBytes)
	}
	pcb.SetState(process.Ready)
	s.enqueue(pcb)
	return pcb, nil
}

func (s *Scheduler) enqueue(pcb *process.PCB) {
	s.mu.Lock()
	s.ready = append(s.ready, pcb)
	s.mu.Unlock()
	s.cond.Signal()
}

// dequeue blocks until a PCB is ready or the scheduler is stopping.
func (s *Scheduler) dequeue() (*process.PCB, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.ready) == 0 {
		select {
		case <-s.stopCh:
			return nil, false
		default:
		}
		s.cond.Wait()
		select {
		case <-s.stopCh:
			return nil, false
		default:
		}
	}
	pcb := s.ready[0]
	s.ready = s.ready[1:]
	return pcb, true
}

// ReadyLen reports how many PCBs are currently queued.
func (s *Scheduler) ReadyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready)
}

func (s *Scheduler) finishProcess(pcb *process.PCB) {
	if pcb.MemoryBytes != nil {
		s.mm.DeallocateProcess(pcb.PID)
	}
	s.table.Finish(pcb)

	s.mu.Lock()
	_, wasGenerated := s.generatedPIDs[pcb.PID]
	delete(s.generatedPIDs, pcb.PID)
	s.mu.Unlock()
	if wasGenerated {
		select {
		case <-s.admission:
		default:
		}
	}
}

// interruptibleSleep waits for d or the stop signal, whichever comes
// first, so no per-step delay can stall a Stop() beyond the delay
// itself. It never holds s.mu.
func (s *Scheduler) interruptibleSleep(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.stopCh:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stopCh:
		return false
	}
}
