package scheduler

import (
	"fmt"
	"time"

	"github.com/csopesy-go/emuos/internal/executor"
	"github.com/csopesy-go/emuos/internal/process"
)

// runSleepWatcher decrements SleepTicks on every Blocked PCB once per
// millisecond. The instant the count reaches zero the Sleep instruction
// is complete: the PC moves past it and the PCB is re-enqueued (if the
// Sleep was its last instruction, its next dispatch terminates it).
// Safe without per-PCB locking against a core worker: a Blocked PCB is
// never mid-dispatch on any worker, so watcher and worker never touch
// the same PCB's SleepTicks concurrently.
func (s *Scheduler) runSleepWatcher() {
	defer s.wg.Done()
	defer s.recoverPanic("sleep watcher")

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tickSleepers()
		}
	}
}

func (s *Scheduler) tickSleepers() {
	for _, pcb := range s.table.Live() {
		if pcb.State != process.Blocked || pcb.SleepTicks == 0 {
			continue
		}
		pcb.SleepTicks--
		if pcb.SleepTicks == 0 {
			pcb.ProgramCounter++
			pcb.SetState(process.Ready)
			s.enqueue(pcb)
		}
	}
}

// runWorker is one of num-cpu core dispatch loops. It blocks in
// dequeue, then drives the PCB either to completion/block (FCFS) or
// for one quantum (RR).
func (s *Scheduler) runWorker(coreID int) {
	defer s.wg.Done()
	defer s.recoverPanic(fmt.Sprintf("core worker %d", coreID))

	for {
		pcb, ok := s.dequeue()
		if !ok {
			return
		}
		pcb.SetState(process.Running)
		if s.cfg.Scheduler == "rr" {
			s.runQuantum(pcb, coreID)
		} else {
			s.runToCompletion(pcb, coreID)
		}
	}
}

// runToCompletion drives an FCFS process until it blocks, terminates,
// or the scheduler is stopping.
func (s *Scheduler) runToCompletion(pcb *process.PCB, coreID int) {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.step(pcb, coreID)
		if pcb.State == process.Blocked {
			return
		}
		if pcb.State == process.Terminated {
			s.finishProcess(pcb)
			return
		}
		if !s.interruptibleSleep(time.Duration(s.cfg.DelayPerExec) * time.Millisecond) {
			return
		}
	}
}

// runQuantum drives an RR process for at most quantum-cycles steps,
// re-enqueuing it if it's still runnable at the end of its slice.
func (s *Scheduler) runQuantum(pcb *process.PCB, coreID int) {
	quantum := s.cfg.QuantumCycles
	if quantum < 1 {
		quantum = 1
	}
	for step := 0; step < quantum; step++ {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.step(pcb, coreID)
		if pcb.State == process.Blocked {
			return
		}
		if pcb.State == process.Terminated {
			s.finishProcess(pcb)
			return
		}
		if step < quantum-1 {
			if !s.interruptibleSleep(time.Duration(s.cfg.DelayPerExec) * time.Millisecond) {
				return
			}
		}
	}
	pcb.SetState(process.Ready)
	s.enqueue(pcb)
}

// step executes exactly one flattened instruction and accounts for it.
func (s *Scheduler) step(pcb *process.PCB, coreID int) {
	_ = executor.Execute(pcb, coreID, s.mm)
	s.cpuCycles.Add(1)
	s.mm.Tick(true)
}
