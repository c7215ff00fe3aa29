// Package reporter assembles crash reports. It builds the collector registry
// from configuration, runs it for a crash, and hands the finished report to
// the sender or the local store.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/memdiag/crashreport/internal/collector"
	"github.com/memdiag/crashreport/internal/config"
	"github.com/memdiag/crashreport/internal/platform"
	"github.com/memdiag/crashreport/internal/report"
	"github.com/memdiag/crashreport/internal/sender"
	"github.com/memdiag/crashreport/internal/store"
)

// Sink receives finished reports.
type Sink interface {
	Send(ctx context.Context, data report.Data)
}

// storeSink keeps reports locally when no server is configured.
type storeSink struct {
	store  *store.Store
	logger *zap.Logger
}

func (s *storeSink) Send(_ context.Context, data report.Data) {
	if err := s.store.Store(data); err != nil {
		s.logger.Error("Failed to store report", zap.Error(err))
	}
}

// Reporter runs the collectors for a crash and delivers the result.
type Reporter struct {
	registry *collector.Registry
	fields   report.FieldSet
	sink     Sink
	logger   *zap.Logger
}

// New creates a reporter. A nil sink means reports are only returned.
func New(registry *collector.Registry, fields report.FieldSet, sink Sink, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		registry: registry,
		fields:   fields,
		sink:     sink,
		logger:   logger,
	}
}

// Components holds everything FromConfig wires together.
type Components struct {
	Reporter *Reporter
	Store    *store.Store
	// Sender is nil when no server URL is configured.
	Sender *sender.Sender
}

// FromConfig builds the store, the sender (if enabled), the collector
// registry and the reporter described by cfg.
func FromConfig(cfg *config.Config, appVersion string, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.New(cfg.Store.Dir, cfg.Store.MaxSizeMB, logger)
	if err != nil {
		return nil, err
	}

	var source platform.MemorySource
	switch cfg.Memory.Source {
	case config.MemorySourceRAM:
		source = platform.NewVirtualMemory(logger)
	case config.MemorySourceStorage:
		path := cfg.Memory.StoragePath
		if path == "" {
			path = st.Dir()
		}
		source = platform.NewInternalStorage(path, logger)
	default:
		return nil, fmt.Errorf("unknown memory source %q", cfg.Memory.Source)
	}

	if cfg.Report.AppVersion != "" {
		appVersion = cfg.Report.AppVersion
	}

	registry := collector.NewRegistry(logger)
	registry.Register(collector.NewSimpleValuesCollector(appVersion))
	registry.Register(collector.NewStacktraceCollector())
	registry.Register(collector.NewSystemCollector(logger))
	registry.Register(collector.NewMemoryInfoCollector(platform.NewExecRunner(), source, logger,
		collector.WithCommandTimeout(cfg.Memory.CommandTimeout.Duration)))
	registry.Disable(cfg.Collectors.Disabled...)
	registry.Exclude(cfg.Report.Exclude...)

	c := &Components{Store: st}
	var sink Sink
	if cfg.SendEnabled() {
		c.Sender = sender.New(cfg, logger, st)
		sink = c.Sender
	} else {
		sink = &storeSink{store: st, logger: logger}
	}
	c.Reporter = New(registry, cfg.RequestedFields(), sink, logger)
	return c, nil
}

// Report collects every configured field for crash and delivers the report.
func (r *Reporter) Report(ctx context.Context, crash *report.CrashContext) report.Data {
	if crash == nil {
		crash = report.NewCrashContext(nil, nil)
	}

	data := r.registry.CollectAll(ctx, r.fields, crash)
	r.logger.Info("Crash report assembled",
		zap.String("report_id", data.ID()),
		zap.Int("fields", len(data)),
		zap.Bool("out_of_memory", crash.IsOutOfMemory()))

	if r.sink != nil {
		r.sink.Send(ctx, data)
	}
	return data
}

// HandlePanic reports a panic in progress and then re-panics with the same
// value. Use it directly in a defer statement:
//
//	defer rep.HandlePanic(ctx)
func (r *Reporter) HandlePanic(ctx context.Context) {
	v := recover()
	if v == nil {
		return
	}
	r.Report(ctx, report.NewCrashContext(panicError(v), debug.Stack()))
	panic(v)
}

// panicError converts a recovered value to an error, keeping error chains so
// wrapped out-of-memory conditions stay detectable.
func panicError(v interface{}) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return errors.New(fmt.Sprint("panic: ", v))
}
