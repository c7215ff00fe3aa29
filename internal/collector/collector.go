// Package collector defines the Collector interface, the registry that drives
// collectors for one crash report, and the concrete collectors.
package collector

import (
	"context"
	"fmt"

	"github.com/memdiag/crashreport/internal/report"
)

// Collector produces string values for one or more report fields.
type Collector interface {
	// Name returns the unique identifier for this collector.
	Name() string

	// SupportedFields returns the fields this collector can produce.
	// The set is fixed at construction.
	SupportedFields() []report.Field

	// ShouldCollect decides whether the collector participates for field,
	// given the fields the report wants and the current crash.
	ShouldCollect(requested report.FieldSet, field report.Field, crash *report.CrashContext) bool

	// Collect returns the value of field. It never fails: internal errors
	// degrade to an empty or sentinel value. Asking for a field outside
	// SupportedFields is a programming error and panics.
	Collect(ctx context.Context, field report.Field, crash *report.CrashContext) string

	// IsAvailable checks if this collector can run on the current platform.
	// Collectors that return false will not be registered.
	IsAvailable() bool
}

// Supports reports whether c declares field among its supported fields.
func Supports(c Collector, field report.Field) bool {
	for _, f := range c.SupportedFields() {
		if f == field {
			return true
		}
	}
	return false
}

// DefaultShouldCollect is the base participation rule shared by all
// collectors: the field was requested and the collector supports it.
func DefaultShouldCollect(c Collector, requested report.FieldSet, field report.Field) bool {
	return requested.Has(field) && Supports(c, field)
}

// unsupportedField panics with a message naming the collector and field.
func unsupportedField(c Collector, field report.Field) {
	panic(fmt.Sprintf("collector %s: unsupported field %s", c.Name(), field))
}
