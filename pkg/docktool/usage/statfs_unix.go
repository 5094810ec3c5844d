//go:build linux || darwin || freebsd

package usage

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"

	"github.com/jamesainslie/docktool/pkg/docktool/units"
)

// StatfsSource reads filesystem usage with statfs(2) instead of parsing df.
// Path is any path on the filesystem, usually its mount point.
type StatfsSource struct {
	Path string
}

// DiskUsage reports size and used space of the filesystem holding s.Path.
// Used space counts reserved blocks, as df does.
func (s *StatfsSource) DiskUsage(ctx context.Context) (DiskReport, error) {
	if err := ctx.Err(); err != nil {
		return DiskReport{}, err
	}

	var st unix.Statfs_t
	if err := unix.Statfs(s.Path, &st); err != nil {
		return DiskReport{}, &CollectionError{Op: "disk usage", Command: "statfs " + s.Path, Err: err}
	}

	bsize := float64(st.Bsize)
	total := units.GiB(float64(st.Blocks) * bsize / units.GiBBytes)
	used := units.GiB(float64(st.Blocks-st.Bfree) * bsize / units.GiBBytes)
	if total <= 0 {
		return DiskReport{}, &CollectionError{Op: "disk usage", Command: "statfs " + s.Path, Err: errors.New("filesystem reports zero size")}
	}

	return DiskReport{Device: s.Path, TotalGB: total, UsedGB: used}, nil
}

// Ensure StatfsSource implements DiskUsageSource.
var _ DiskUsageSource = (*StatfsSource)(nil)
