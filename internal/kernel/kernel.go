// Package kernel is the explicit context object that owns the memory
// manager, process table, scheduler, and status builder, and
// dispatches every console command against them through a single
// in-process switch over console.Command.Kind.
package kernel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/csopesy-go/emuos/internal/config"
	"github.com/csopesy-go/emuos/internal/memmgr"
	"github.com/csopesy-go/emuos/internal/process"
	"github.com/csopesy-go/emuos/internal/scheduler"
	"github.com/csopesy-go/emuos/internal/status"
)

const backingStorePath = "csopesy-backing-store.txt"

// Kernel binds every core component together and is the only thing
// cmd/emuos/main.go talks to.
type Kernel struct {
	mu sync.Mutex

	log *slog.Logger

	cfg    *config.Config
	clock  *config.Clock
	table  *process.Table
	mm     *memmgr.Manager
	sched  *scheduler.Scheduler
	report *status.Builder

	initialized bool
}

// New returns an uninitialized Kernel. Initialize must be called
// before any other command is accepted.
func New(log *slog.Logger) *Kernel {
	return &Kernel{log: log}
}

// Initialize loads configPath, builds the memory manager and process
// table, and starts the scheduler's core workers. Failure to open or
// parse the config file returns a wrapped ErrConfig: the kernel stays
// uninitialized and every command but help/exit is rejected until a
// later initialize succeeds.
func (k *Kernel) Initialize(configPath string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.initialized {
		return ErrAlreadyInit
	}

	cfg, err := config.Load(configPath, k.log)
	if err != nil {
		return wrapConfigError(err)
	}

	store, err := memmgr.NewBackingStore(backingStorePath, true, memmgr.DefaultMaxBackingStoreBytes, k.log)
	if err != nil {
		return wrapConfigError(err)
	}

	k.cfg = cfg
	k.clock = config.NewClock()
	k.table = process.NewTable()
	k.mm = memmgr.New(cfg.MaxOverallMemBytes(), cfg.PageSizeBytes(), store, k.log)
	k.sched = scheduler.New(cfg, k.clock, k.table, k.mm, k.log)
	k.report = status.New(k.table, k.mm, cfg, k.sched)

	if err := k.sched.Start(); err != nil {
		return err
	}
	k.initialized = true
	k.log.Info("kernel initialized", "config_path", configPath)
	return nil
}

// Shutdown stops the scheduler cooperatively. Safe to call on an
// uninitialized kernel.
func (k *Kernel) Shutdown() {
	k.mu.Lock()
	sched := k.sched
	k.mu.Unlock()
	if sched != nil {
		sched.Stop()
	}
}

func (k *Kernel) requireInitialized() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.initialized {
		return ErrNotInitialized
	}
	return nil
}

func wrapConfigError(err error) error {
	return fmt.Errorf("%w: %v", ErrConfig, err)
}
