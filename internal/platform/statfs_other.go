//go:build !linux && !darwin

package platform

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// statStorage returns total and available bytes of the filesystem holding path.
func statStorage(path string) (total, available int64, err error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return int64(usage.Total), int64(usage.Free), nil
}
