// Memory diagnostics collector: dumpsys meminfo output for this process plus
// total and available memory sizes.
package collector

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/memdiag/crashreport/internal/platform"
	"github.com/memdiag/crashreport/internal/report"
	"github.com/memdiag/crashreport/internal/streams"
)

// DefaultCommandTimeout bounds how long the meminfo command may run.
const DefaultCommandTimeout = 30 * time.Second

// MemoryInfoCollector collects DUMPSYS_MEMINFO, TOTAL_MEM_SIZE and
// AVAILABLE_MEM_SIZE. It opts out entirely when the crash itself was an
// out-of-memory condition, since spawning a process then is likely to fail
// or make things worse.
type MemoryInfoCollector struct {
	runner  platform.CommandRunner
	source  platform.MemorySource
	drain   func(io.Reader) (string, error)
	pid     func() int
	timeout time.Duration
	logger  *zap.Logger
}

// MemoryInfoOption customises a MemoryInfoCollector.
type MemoryInfoOption func(*MemoryInfoCollector)

// WithPID overrides how the current process id is obtained.
func WithPID(pid func() int) MemoryInfoOption {
	return func(c *MemoryInfoCollector) { c.pid = pid }
}

// WithCommandTimeout bounds the meminfo command. Zero or negative waits forever.
func WithCommandTimeout(d time.Duration) MemoryInfoOption {
	return func(c *MemoryInfoCollector) { c.timeout = d }
}

// WithDrainer overrides how the command output is read.
func WithDrainer(drain func(io.Reader) (string, error)) MemoryInfoOption {
	return func(c *MemoryInfoCollector) { c.drain = drain }
}

// NewMemoryInfoCollector creates a memory diagnostics collector.
// The logger parameter may be nil for no logging.
func NewMemoryInfoCollector(runner platform.CommandRunner, source platform.MemorySource, logger *zap.Logger, opts ...MemoryInfoOption) *MemoryInfoCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &MemoryInfoCollector{
		runner:  runner,
		source:  source,
		drain:   streams.ToString,
		pid:     os.Getpid,
		timeout: DefaultCommandTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collector identifier.
func (c *MemoryInfoCollector) Name() string { return "memory" }

// SupportedFields implements Collector.
func (c *MemoryInfoCollector) SupportedFields() []report.Field {
	return []report.Field{report.DumpsysMeminfo, report.TotalMemSize, report.AvailableMemSize}
}

// ShouldCollect applies the default rule and refuses out-of-memory crashes.
func (c *MemoryInfoCollector) ShouldCollect(requested report.FieldSet, field report.Field, crash *report.CrashContext) bool {
	return DefaultShouldCollect(c, requested, field) && !crash.IsOutOfMemory()
}

// Collect implements Collector.
func (c *MemoryInfoCollector) Collect(ctx context.Context, field report.Field, _ *report.CrashContext) string {
	switch field {
	case report.DumpsysMeminfo:
		return c.collectMemInfo(ctx)
	case report.TotalMemSize:
		return strconv.FormatInt(c.source.TotalMemorySize(), 10)
	case report.AvailableMemSize:
		return strconv.FormatInt(c.source.AvailableMemorySize(), 10)
	default:
		unsupportedField(c, field)
		return ""
	}
}

// IsAvailable returns true; a missing dumpsys binary just yields an empty field.
func (c *MemoryInfoCollector) IsAvailable() bool { return true }

// collectMemInfo runs dumpsys meminfo scoped to this process and returns its
// output. Launch and read failures are logged once and yield "".
func (c *MemoryInfoCollector) collectMemInfo(ctx context.Context) string {
	argv := platform.MemInfoCommandLine(c.pid())

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.runner.Start(ctx, argv)
	if err != nil {
		c.logger.Error("MemoryInfoCollector.meminfo could not retrieve data",
			zap.Strings("command", argv),
			zap.Error(err))
		return ""
	}

	text, err := c.drain(out)
	waitErr := out.Close()

	// A killed process surfaces as EOF or a closed pipe; keep what it wrote.
	if ctx.Err() != nil {
		c.logger.Warn("meminfo command did not finish, output may be truncated",
			zap.Strings("command", argv),
			zap.Duration("timeout", c.timeout),
			zap.Int("bytes", len(text)))
		return text
	}
	if err != nil {
		c.logger.Error("MemoryInfoCollector.meminfo could not retrieve data",
			zap.Strings("command", argv),
			zap.Error(err))
		return ""
	}
	if waitErr != nil {
		c.logger.Debug("meminfo command exited with error",
			zap.Strings("command", argv),
			zap.Error(waitErr))
	}

	return text
}
