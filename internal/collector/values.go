// Simple values collector: report id, crash date, application version and
// custom key/value data.
package collector

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/memdiag/crashreport/internal/report"
)

// SimpleValuesCollector collects values that need no system access.
type SimpleValuesCollector struct {
	appVersion string
}

// NewSimpleValuesCollector creates a collector reporting appVersion as APP_VERSION.
func NewSimpleValuesCollector(appVersion string) *SimpleValuesCollector {
	return &SimpleValuesCollector{appVersion: appVersion}
}

// Name returns the collector identifier.
func (c *SimpleValuesCollector) Name() string { return "values" }

// SupportedFields implements Collector.
func (c *SimpleValuesCollector) SupportedFields() []report.Field {
	return []report.Field{report.ReportID, report.UserCrashDate, report.AppVersion, report.CustomData}
}

// ShouldCollect implements Collector.
func (c *SimpleValuesCollector) ShouldCollect(requested report.FieldSet, field report.Field, _ *report.CrashContext) bool {
	return DefaultShouldCollect(c, requested, field)
}

// Collect implements Collector.
func (c *SimpleValuesCollector) Collect(_ context.Context, field report.Field, crash *report.CrashContext) string {
	switch field {
	case report.ReportID:
		return ulid.Make().String()
	case report.UserCrashDate:
		if crash == nil || crash.Time.IsZero() {
			return time.Now().UTC().Format(time.RFC3339)
		}
		return crash.Time.UTC().Format(time.RFC3339)
	case report.AppVersion:
		return c.appVersion
	case report.CustomData:
		if crash == nil {
			return ""
		}
		return formatCustomData(crash.Custom)
	default:
		unsupportedField(c, field)
		return ""
	}
}

// IsAvailable returns true.
func (c *SimpleValuesCollector) IsAvailable() bool { return true }

// formatCustomData renders one "key = value" line per entry, sorted by key.
func formatCustomData(custom map[string]string) string {
	keys := make([]string, 0, len(custom))
	for k := range custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(" = ")
		b.WriteString(custom[k])
		b.WriteString("\n")
	}
	return b.String()
}
