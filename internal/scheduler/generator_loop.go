package scheduler

import (
	"time"

	"github.com/csopesy-go/emuos/internal/process"
)

// runGenerator synthesizes one random process every batch-process-freq
// milliseconds for as long as the batch generator is active (started
// by scheduler-start or scheduler-test), mirroring
// cmd/kernel/LTS.go's PlanificarLargoPlazo admission loop — generalized
// from a semaphore-gated queue drain into a ticker-paced synthesis
// loop, since this emulator has no separate "new" queue to admit from.
func (s *Scheduler) runGenerator() {
	defer s.genWg.Done()
	defer s.recoverPanic("generator")

	freq := s.cfg.BatchProcessFreq
	if freq < 1 {
		freq = 1
	}
	ticker := time.NewTicker(time.Duration(freq) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.genStopCh:
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		select {
		case s.admission <- struct{}{}:
		case <-s.genStopCh:
			return
		case <-s.stopCh:
			return
		}

		if !s.spawnOne() {
			select {
			case <-s.admission:
			default:
			}
		}
	}
}

// spawnOne synthesizes and admits a single legacy (non-byte-addressed)
// random process. Returns false if admission failed, e.g. the
// generator's deterministic name allocator collided with a live
// user-submitted process of the same name.
func (s *Scheduler) spawnOne() bool {
	name := s.gen.NextName()
	count := s.gen.RandInt(s.cfg.MinIns, s.cfg.MaxIns)
	instrs := s.gen.Synthesize(name, count)

	pid := s.table.NextPID()
	pcb := process.New(pid, name, instrs, 0)
	if err := s.table.Add(pcb); err != nil {
		s.log.Warn("generator skipped duplicate process name", "name", name, "error", err)
		return false
	}

	s.mu.Lock()
	s.generatedPIDs[pid] = struct{}{}
	s.mu.Unlock()

	pcb.SetState(process.Ready)
	s.enqueue(pcb)
	return true
}
