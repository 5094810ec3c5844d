//go:build !(linux || darwin || freebsd)

package usage

import (
	"context"
	"errors"
)

// StatfsSource is unavailable on this platform.
type StatfsSource struct {
	Path string
}

// DiskUsage always fails on this platform.
func (s *StatfsSource) DiskUsage(context.Context) (DiskReport, error) {
	return DiskReport{}, &CollectionError{Op: "disk usage", Command: "statfs " + s.Path, Err: errors.New("statfs not supported on this platform")}
}

// Ensure StatfsSource implements DiskUsageSource.
var _ DiskUsageSource = (*StatfsSource)(nil)
