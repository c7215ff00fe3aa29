package collector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memdiag/crashreport/internal/report"
)

const stackA = `goroutine 7 [running]:
main.crash(0xc000012345, 0x3)
	/src/app/main.go:12 +0x1d
main.main()
	/src/app/main.go:20 +0x25
`

const stackB = `goroutine 42 [running]:
main.crash(0xc000099999, 0x3)
	/src/app/main.go:12 +0x1d
main.main()
	/src/app/main.go:20 +0x25
`

func TestStacktraceCollector_StackTrace(t *testing.T) {
	c := NewStacktraceCollector()
	crash := report.NewCrashContext(errors.New("index out of range"), []byte(stackA))

	got := c.Collect(context.Background(), report.StackTrace, crash)

	assert.True(t, strings.HasPrefix(got, "index out of range\n\ngoroutine 7"), got)
	assert.Empty(t, c.Collect(context.Background(), report.StackTrace, nil))
}

func TestStacktraceCollector_HashIgnoresAddresses(t *testing.T) {
	c := NewStacktraceCollector()
	a := c.Collect(context.Background(), report.StackTraceHash, report.NewCrashContext(nil, []byte(stackA)))
	b := c.Collect(context.Background(), report.StackTraceHash, report.NewCrashContext(nil, []byte(stackB)))
	other := c.Collect(context.Background(), report.StackTraceHash,
		report.NewCrashContext(nil, []byte(strings.Replace(stackA, "main.go:12", "main.go:13", 1))))

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
}

func TestStacktraceCollector_UnsupportedFieldPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewStacktraceCollector().Collect(context.Background(), report.DumpsysMeminfo, nil)
	})
}

func TestSimpleValuesCollector(t *testing.T) {
	c := NewSimpleValuesCollector("1.2.3")
	crash := report.NewCrashContext(nil, nil)
	crash.Time = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	crash.Custom["user"] = "42"
	crash.Custom["build"] = "release"

	id := c.Collect(context.Background(), report.ReportID, crash)
	_, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, c.Collect(context.Background(), report.ReportID, crash))

	assert.Equal(t, "2026-10-19T08:30:00Z", c.Collect(context.Background(), report.UserCrashDate, crash))
	assert.Equal(t, "1.2.3", c.Collect(context.Background(), report.AppVersion, crash))
	assert.Equal(t, "build = release\nuser = 42\n", c.Collect(context.Background(), report.CustomData, crash))
}

func TestSimpleValuesCollector_UnsupportedFieldPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewSimpleValuesCollector("").Collect(context.Background(), report.Uptime, nil)
	})
}

func TestFormatOSVersion(t *testing.T) {
	tests := []struct {
		platform, version, goos, kernel string
		want                            string
	}{
		{"ubuntu", "22.04", "linux", "6.5.0", "ubuntu 22.04 (linux 6.5.0)"},
		{"darwin", "14.2.1", "darwin", "", "darwin 14.2.1"},
		{"", "", "freebsd", "14.0", "freebsd (freebsd 14.0)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatOSVersion(tt.platform, tt.version, tt.goos, tt.kernel))
		})
	}
}

func TestSystemCollector_Uptime(t *testing.T) {
	c := NewSystemCollector(nil)
	got := c.Collect(context.Background(), report.Uptime, nil)
	if got == "" {
		t.Skip("uptime not available on this host")
	}
	assert.Regexp(t, `^\d+$`, got)
}
