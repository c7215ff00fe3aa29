// Stack trace collector: the triggering error with its goroutine stack, and a
// hash of the stack that stays stable across runs of the same binary.
package collector

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/memdiag/crashreport/internal/report"
)

var (
	// goroutine headers carry run-specific ids.
	goroutineHeader = regexp.MustCompile(`^goroutine \d+ \[[^\]]*\]:$`)
	// frame lines end in " +0x1d" offsets and carry argument addresses.
	hexValue = regexp.MustCompile(`0x[0-9a-fA-F]+`)
)

// StacktraceCollector collects STACK_TRACE and STACK_TRACE_HASH.
type StacktraceCollector struct{}

// NewStacktraceCollector creates a new stack trace collector.
func NewStacktraceCollector() *StacktraceCollector {
	return &StacktraceCollector{}
}

// Name returns the collector identifier.
func (c *StacktraceCollector) Name() string { return "stacktrace" }

// SupportedFields implements Collector.
func (c *StacktraceCollector) SupportedFields() []report.Field {
	return []report.Field{report.StackTrace, report.StackTraceHash}
}

// ShouldCollect implements Collector.
func (c *StacktraceCollector) ShouldCollect(requested report.FieldSet, field report.Field, _ *report.CrashContext) bool {
	return DefaultShouldCollect(c, requested, field)
}

// Collect implements Collector.
func (c *StacktraceCollector) Collect(_ context.Context, field report.Field, crash *report.CrashContext) string {
	switch field {
	case report.StackTrace:
		return formatStackTrace(crash)
	case report.StackTraceHash:
		if crash == nil {
			return stackHash(nil)
		}
		return stackHash(crash.Stack)
	default:
		unsupportedField(c, field)
		return ""
	}
}

// IsAvailable returns true.
func (c *StacktraceCollector) IsAvailable() bool { return true }

func formatStackTrace(crash *report.CrashContext) string {
	if crash == nil {
		return ""
	}
	var b strings.Builder
	if crash.Err != nil {
		b.WriteString(crash.Err.Error())
		b.WriteString("\n")
	}
	if len(crash.Stack) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.Write(crash.Stack)
	}
	return b.String()
}

// stackHash hashes the stack with goroutine ids, addresses and offsets removed.
func stackHash(stack []byte) string {
	h := fnv.New64a()
	for _, line := range strings.Split(string(stack), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || goroutineHeader.MatchString(line) {
			continue
		}
		h.Write([]byte(hexValue.ReplaceAllString(line, "")))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
