package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/memdiag/crashreport/internal/report"
)

// Registry manages the registered collectors and runs them for one report.
// Collection is sequential: one collector, one field at a time.
type Registry struct {
	collectors []Collector
	disabled   map[string]bool
	excluded   report.FieldSet
	logger     *zap.Logger
}

// NewRegistry creates a new collector registry with the given logger.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		collectors: make([]Collector, 0),
		disabled:   make(map[string]bool),
		excluded:   report.NewFieldSet(),
		logger:     logger,
	}
}

// Register adds a collector if it's available on the current platform.
// Unavailable collectors are logged and skipped.
func (r *Registry) Register(c Collector) {
	if c.IsAvailable() {
		r.collectors = append(r.collectors, c)
		r.logger.Debug("Registered collector", zap.String("name", c.Name()))
	} else {
		r.logger.Warn("Collector not available, skipping", zap.String("name", c.Name()))
	}
}

// Disable turns off the named collectors. Unknown names are ignored.
func (r *Registry) Disable(names ...string) {
	for _, n := range names {
		r.disabled[n] = true
	}
}

// Exclude removes fields from every report regardless of what is requested.
func (r *Registry) Exclude(fields ...report.Field) {
	for _, f := range fields {
		r.excluded[f] = struct{}{}
	}
}

// CollectAll asks every enabled collector for each field it supports and
// returns the values of the fields whose collectors agreed to participate.
func (r *Registry) CollectAll(ctx context.Context, requested report.FieldSet, crash *report.CrashContext) report.Data {
	wanted := requested.Without(r.excluded.Sorted()...)
	data := make(report.Data, len(wanted))

	for _, c := range r.collectors {
		if r.disabled[c.Name()] {
			r.logger.Debug("Collector disabled, skipping", zap.String("collector", c.Name()))
			continue
		}
		for _, field := range c.SupportedFields() {
			if !c.ShouldCollect(wanted, field, crash) {
				continue
			}
			start := time.Now()
			data[field] = c.Collect(ctx, field, crash)
			r.logger.Debug("Collected field",
				zap.String("collector", c.Name()),
				zap.Stringer("field", field),
				zap.Duration("took", time.Since(start)))
		}
	}

	return data
}

// Collectors returns a copy of all registered collectors.
func (r *Registry) Collectors() []Collector {
	result := make([]Collector, len(r.collectors))
	copy(result, r.collectors)
	return result
}
