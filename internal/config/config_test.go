package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csopesy-go/emuos/internal/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesEveryKnownKey(t *testing.T) {
	path := writeConfig(t, `
# a comment line, ignored
num-cpu 4
scheduler "rr"
quantum-cycles 5
batch-process-freq 2
min-ins 100
max-ins 200
delay-per-exec 1
max-overall-mem 16
mem-per-frame 1
min-mem-per-proc 64
max-mem-per-proc 1024
`)
	cfg, err := Load(path, logging.Discard())
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(4, cfg.NumCPU)
	assert.Equal(SchedulerRR, cfg.Scheduler)
	assert.Equal(5, cfg.QuantumCycles)
	assert.Equal(16*1024*1024, cfg.MaxOverallMemBytes())
	assert.Equal(1024, cfg.PageSizeBytes())
	assert.Equal(64*1024, cfg.MinMemPerProcBytes())
	assert.Equal(1024*1024, cfg.MaxMemPerProcBytes())
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "bogus-key 1\n")
	_, err := Load(path, logging.Discard())
	require.Error(t, err)
}

func TestLoadRejectsInvalidScheduler(t *testing.T) {
	path := writeConfig(t, "scheduler round-robin\n")
	_, err := Load(path, logging.Discard())
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"), logging.Discard())
	require.Error(t, err)
}

func TestLoadSkipsMalformedLinesRatherThanFailing(t *testing.T) {
	path := writeConfig(t, "num-cpu\nscheduler fcfs\n")
	cfg, err := Load(path, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, SchedulerFCFS, cfg.Scheduler)
}

func TestClockTicksMonotonically(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Now())
	assert.Equal(t, int64(1), c.Tick())
	assert.Equal(t, int64(2), c.Tick())
	assert.Equal(t, int64(2), c.Now())
}
