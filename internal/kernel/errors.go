package kernel

import "errors"

// Sentinel errors for the command layer. Symbol-table, memory-access,
// and flatten-depth failures are handled deeper in the executor and
// memory manager and only ever reach here as a PCB log line, never as
// a Go error.
var (
	ErrNotInitialized   = errors.New("kernel: not initialized, run 'initialize' first")
	ErrAlreadyInit      = errors.New("kernel: already initialized")
	ErrInvalidArgument  = errors.New("kernel: invalid argument")
	ErrConfig           = errors.New("kernel: configuration error")
	ErrSchedulerRunning = errors.New("kernel: scheduler already running")
)
