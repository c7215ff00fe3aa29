package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memdiag/crashreport/internal/report"
)

func TestBuildCrashContext(t *testing.T) {
	stackPath := filepath.Join(t.TempDir(), "stack.txt")
	require.NoError(t, os.WriteFile(stackPath, []byte("goroutine 1 [running]:\n"), 0640))

	crash, err := buildCrashContext("alloc failed", true, stackPath, map[string]string{"user": "7"})
	require.NoError(t, err)
	assert.True(t, crash.IsOutOfMemory())
	assert.EqualError(t, crash.Err, "alloc failed: out of memory")
	assert.Equal(t, "goroutine 1 [running]:\n", string(crash.Stack))
	assert.Equal(t, "7", crash.Custom["user"])

	crash, err = buildCrashContext("", false, "", nil)
	require.NoError(t, err)
	assert.Nil(t, crash.Err)

	_, err = buildCrashContext("", false, filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "crashreport dev\n", out.String())
}

func TestReportCommand_OOMOmitsMemoryFields(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "report:\n  fields: [REPORT_ID, STACK_TRACE, DUMPSYS_MEMINFO, TOTAL_MEM_SIZE]\n" +
		"store:\n  dir: " + filepath.ToSlash(filepath.Join(dir, "reports")) + "\n" +
		"logging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0640))
	t.Setenv("CR_SERVER_URL", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"report", "--config", cfgPath, "--env-file", "", "--error", "decode", "--oom"})

	require.NoError(t, cmd.Execute())

	var data report.Data
	require.NoError(t, json.Unmarshal(out.Bytes(), &data))
	assert.Equal(t, []report.Field{report.ReportID, report.StackTrace}, data.Fields().Sorted())
	assert.Equal(t, "decode: out of memory\n", data[report.StackTrace])
}
