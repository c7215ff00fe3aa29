// System collector: OS version, uptime and boot time.
// Uses gopsutil host for cross-platform information.
package collector

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/memdiag/crashreport/internal/report"
)

// SystemCollector collects OS_VERSION, UPTIME and BOOT_TIME.
// The OS version is cached since it rarely changes during runtime.
type SystemCollector struct {
	logger    *zap.Logger
	osVersion string
	once      sync.Once
}

// NewSystemCollector creates a new system collector. Pass nil for no logging.
func NewSystemCollector(logger *zap.Logger) *SystemCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemCollector{logger: logger}
}

// Name returns the collector identifier.
func (c *SystemCollector) Name() string { return "system" }

// SupportedFields implements Collector.
func (c *SystemCollector) SupportedFields() []report.Field {
	return []report.Field{report.OSVersion, report.Uptime, report.BootTime}
}

// ShouldCollect implements Collector.
func (c *SystemCollector) ShouldCollect(requested report.FieldSet, field report.Field, _ *report.CrashContext) bool {
	return DefaultShouldCollect(c, requested, field)
}

// Collect implements Collector. Query failures are logged and yield "".
func (c *SystemCollector) Collect(ctx context.Context, field report.Field, _ *report.CrashContext) string {
	switch field {
	case report.OSVersion:
		c.once.Do(func() {
			c.osVersion = c.collectOSVersion(ctx)
		})
		return c.osVersion
	case report.Uptime:
		uptime, err := host.UptimeWithContext(ctx)
		if err != nil {
			c.logger.Warn("Failed to query uptime", zap.Error(err))
			return ""
		}
		return strconv.FormatUint(uptime, 10)
	case report.BootTime:
		bootTime, err := host.BootTimeWithContext(ctx)
		if err != nil {
			c.logger.Warn("Failed to query boot time", zap.Error(err))
			return ""
		}
		return time.Unix(int64(bootTime), 0).UTC().Format(time.RFC3339)
	default:
		unsupportedField(c, field)
		return ""
	}
}

// IsAvailable returns true — host info is available on all platforms.
func (c *SystemCollector) IsAvailable() bool { return true }

// collectOSVersion formats platform, version and kernel, e.g.
// "ubuntu 22.04 (linux 6.5.0-14-generic)".
func (c *SystemCollector) collectOSVersion(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		c.logger.Warn("Failed to query host info", zap.Error(err))
		return ""
	}
	return formatOSVersion(info.Platform, info.PlatformVersion, info.OS, info.KernelVersion)
}

func formatOSVersion(platform, version, goos, kernel string) string {
	name := strings.TrimSpace(strings.Join([]string{platform, version}, " "))
	if name == "" {
		name = goos
	}
	if kernel == "" {
		return name
	}
	return name + " (" + goos + " " + kernel + ")"
}
