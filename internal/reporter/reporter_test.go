package reporter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memdiag/crashreport/internal/collector"
	"github.com/memdiag/crashreport/internal/config"
	"github.com/memdiag/crashreport/internal/report"
)

type captureSink struct {
	reports []report.Data
}

func (c *captureSink) Send(_ context.Context, data report.Data) {
	c.reports = append(c.reports, data)
}

func newTestReporter(fields ...report.Field) (*Reporter, *captureSink) {
	registry := collector.NewRegistry(nil)
	registry.Register(collector.NewSimpleValuesCollector("1.0.0"))
	registry.Register(collector.NewStacktraceCollector())
	sink := &captureSink{}
	return New(registry, report.NewFieldSet(fields...), sink, nil), sink
}

func TestReport_DeliversToSink(t *testing.T) {
	rep, sink := newTestReporter(report.ReportID, report.AppVersion, report.StackTrace)

	data := rep.Report(context.Background(), report.NewCrashContext(errors.New("boom"), []byte("goroutine 1 [running]:\n")))

	require.Len(t, sink.reports, 1)
	assert.Equal(t, data, sink.reports[0])
	assert.Equal(t, "1.0.0", data[report.AppVersion])
	assert.NotEmpty(t, data.ID())
	assert.True(t, strings.HasPrefix(data[report.StackTrace], "boom\n"))
}

func TestReport_NilCrash(t *testing.T) {
	rep, _ := newTestReporter(report.AppVersion)
	data := rep.Report(context.Background(), nil)
	assert.Equal(t, "1.0.0", data[report.AppVersion])
}

func TestHandlePanic_ReportsAndRepanics(t *testing.T) {
	rep, sink := newTestReporter(report.StackTrace)

	assert.PanicsWithValue(t, "kaboom", func() {
		defer rep.HandlePanic(context.Background())
		panic("kaboom")
	})

	require.Len(t, sink.reports, 1)
	trace := sink.reports[0][report.StackTrace]
	assert.True(t, strings.HasPrefix(trace, "panic: kaboom\n"), trace)
	assert.Contains(t, trace, "goroutine")
}

func TestHandlePanic_NoPanic(t *testing.T) {
	rep, sink := newTestReporter(report.StackTrace)

	func() {
		defer rep.HandlePanic(context.Background())
	}()

	assert.Empty(t, sink.reports)
}

func TestPanicError_KeepsChain(t *testing.T) {
	err := panicError(fmt.Errorf("alloc: %w", report.ErrOutOfMemory))
	assert.True(t, report.IsOutOfMemory(err))
	assert.EqualError(t, panicError(42), "panic: 42")
}

func TestFromConfig_StoresWhenSendingDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Dir = filepath.Join(t.TempDir(), "reports")
	cfg.Report.Fields = []report.Field{report.ReportID, report.TotalMemSize, report.AvailableMemSize, report.CustomData}
	cfg.Report.Exclude = []report.Field{report.CustomData}
	cfg.Collectors.Disabled = []string{"system"}

	c, err := FromConfig(cfg, "2.0.0", nil)
	require.NoError(t, err)
	assert.Nil(t, c.Sender)

	crash := report.NewCrashContext(nil, nil)
	crash.Custom["k"] = "v"
	data := c.Reporter.Report(context.Background(), crash)

	assert.NotContains(t, data, report.CustomData)
	assert.Contains(t, data, report.TotalMemSize)
	assert.Equal(t, 1, c.Store.Count())
}

func TestFromConfig_OutOfMemorySkipsMemoryFields(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Dir = t.TempDir()
	cfg.Report.Fields = []report.Field{report.ReportID, report.DumpsysMeminfo, report.TotalMemSize}

	c, err := FromConfig(cfg, "", nil)
	require.NoError(t, err)

	data := c.Reporter.Report(context.Background(), report.NewCrashContext(report.ErrOutOfMemory, nil))

	assert.Equal(t, []report.Field{report.ReportID}, data.Fields().Sorted())
}

func TestFromConfig_EnablesSender(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Dir = t.TempDir()
	cfg.Server.URL = "http://localhost:1"
	cfg.Server.Token = "t"

	c, err := FromConfig(cfg, "", nil)
	require.NoError(t, err)
	assert.NotNil(t, c.Sender)
}
