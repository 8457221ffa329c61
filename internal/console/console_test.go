package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInitialize(t *testing.T) {
	require := require.New(t)
	cmd, err := Parse("initialize")
	require.NoError(err)
	require.Equal(Initialize, cmd.Kind)
}

func TestParseScreenStartDefaultsMemory(t *testing.T) {
	require := require.New(t)
	cmd, err := Parse("screen -s p01")
	require.NoError(err)
	require.Equal(ScreenStart, cmd.Kind)
	require.Equal("p01", cmd.Name)
	require.Equal(256, cmd.MemBytes)
}

func TestParseScreenStartWithExplicitMemory(t *testing.T) {
	require := require.New(t)
	cmd, err := Parse("screen -s p01 1024")
	require.NoError(err)
	require.Equal(1024, cmd.MemBytes)
}

func TestParseScreenCreateExtractsQuotedInstructions(t *testing.T) {
	require := require.New(t)
	cmd, err := Parse(`screen -c p02 64 "DECLARE x 5; PRINT x"`)
	require.NoError(err)
	require.Equal(ScreenCreate, cmd.Kind)
	require.Equal("p02", cmd.Name)
	require.Equal(64, cmd.MemBytes)
	require.Equal("DECLARE x 5; PRINT x", cmd.InstructionText)
}

func TestParseScreenListAndResume(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ls, err := Parse("screen -ls")
	require.NoError(err)
	assert.Equal(ScreenList, ls.Kind)

	r, err := Parse("screen -r p01")
	require.NoError(err)
	assert.Equal(ScreenResume, r.Kind)
	assert.Equal("p01", r.Name)
}

func TestParseSchedulerAndUtilityCommands(t *testing.T) {
	assert := assert.New(t)
	cases := map[string]Kind{
		"scheduler-start": SchedulerStart,
		"scheduler-test":  SchedulerTest,
		"scheduler-stop":  SchedulerStop,
		"report-util":     ReportUtil,
		"process-smi":     ProcessSMI,
		"vmstat":          VMStat,
		"help":            Help,
		"exit":            Exit,
	}
	for line, kind := range cases {
		cmd, err := Parse(line)
		assert.NoError(err, line)
		assert.Equal(kind, cmd.Kind, line)
	}
}

func TestParseRejectsUnknownCommand(t *testing.T) {
	_, err := Parse("frobnicate")
	require.Error(t, err)
}

func TestParseRejectsMalformedScreenCreate(t *testing.T) {
	_, err := Parse("screen -c p02")
	require.Error(t, err)
}

func TestParseRejectsEmptyLine(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
}
