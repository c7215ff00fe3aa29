package platform

import (
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// MemorySource reports total and currently available memory sizes in bytes.
// Implementations report -1 when the size cannot be determined.
type MemorySource interface {
	TotalMemorySize() int64
	AvailableMemorySize() int64
}

// VirtualMemory reports physical RAM via gopsutil.
type VirtualMemory struct {
	logger *zap.Logger
}

// NewVirtualMemory creates a RAM-backed memory source. Pass nil for no logging.
func NewVirtualMemory(logger *zap.Logger) *VirtualMemory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VirtualMemory{logger: logger}
}

// TotalMemorySize returns total physical memory.
func (v *VirtualMemory) TotalMemorySize() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		v.logger.Warn("Failed to query virtual memory", zap.Error(err))
		return -1
	}
	return int64(vm.Total)
}

// AvailableMemorySize returns memory available to new allocations without swapping.
func (v *VirtualMemory) AvailableMemorySize() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		v.logger.Warn("Failed to query virtual memory", zap.Error(err))
		return -1
	}
	return int64(vm.Available)
}

// InternalStorage reports the size of the filesystem holding path.
type InternalStorage struct {
	path   string
	logger *zap.Logger
}

// NewInternalStorage creates a storage-backed memory source for the
// filesystem containing path. Pass nil for no logging.
func NewInternalStorage(path string, logger *zap.Logger) *InternalStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = "."
	}
	return &InternalStorage{path: path, logger: logger}
}

// TotalMemorySize returns the filesystem's total size.
func (s *InternalStorage) TotalMemorySize() int64 {
	total, _, err := statStorage(s.path)
	if err != nil {
		s.logger.Warn("Failed to query storage size",
			zap.String("path", s.path),
			zap.Error(err))
		return -1
	}
	return total
}

// AvailableMemorySize returns the space available to unprivileged users.
func (s *InternalStorage) AvailableMemorySize() int64 {
	_, avail, err := statStorage(s.path)
	if err != nil {
		s.logger.Warn("Failed to query storage size",
			zap.String("path", s.path),
			zap.Error(err))
		return -1
	}
	return avail
}
