package usage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/docktool/pkg/docktool/logging"
	"github.com/jamesainslie/docktool/pkg/docktool/units"
)

// DefaultDiskCommand prints human-readable filesystem usage.
var DefaultDiskCommand = []string{"df", "-h"}

// DefaultDevice is the filesystem watched when none is configured.
const DefaultDevice = "/dev/vda1"

// DiskSource reads filesystem usage for one device from `df -h`.
type DiskSource struct {
	Runner  Runner
	Command []string
	Device  string
}

// NewDiskSource returns a DiskSource for device running the default command.
func NewDiskSource(r Runner, device string) *DiskSource {
	return &DiskSource{Runner: r, Command: DefaultDiskCommand, Device: device}
}

// DiskUsage runs the filesystem command and returns the row for s.Device.
// A missing row is a *NotFoundError, never an all-zero report.
func (s *DiskSource) DiskUsage(ctx context.Context) (DiskReport, error) {
	cmdline := commandLine(s.Command)

	out, err := run(ctx, s.Runner, s.Command)
	if err != nil {
		return DiskReport{}, &CollectionError{Op: "disk usage", Command: cmdline, Err: err}
	}

	report, err := ParseDiskTable(out, s.Device)
	if err != nil {
		var (
			cerr *CollectionError
			nerr *NotFoundError
		)
		switch {
		case errors.As(err, &cerr):
			cerr.Command = cmdline
		case errors.As(err, &nerr):
			nerr.Command = cmdline
		}
		return DiskReport{}, err
	}

	logging.Get("usage").Info("disk usage",
		"device", report.Device,
		"total", report.TotalGB.String(),
		"free", report.FreeGB().String())
	return report, nil
}

// ParseDiskTable finds the row of `df -h` output whose first column is device
// and converts its size and used columns.
func ParseDiskTable(out []byte, device string) (DiskReport, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		cols := SplitColumns(scanner.Text())
		if len(cols) == 0 || cols[0] != device {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if len(cols) < 3 {
			return DiskReport{}, &CollectionError{
				Op:   "disk usage",
				Line: line,
				Err:  fmt.Errorf("expected at least 3 columns, got %d", len(cols)),
			}
		}

		total, err := units.ParseSize(cols[1])
		if err != nil {
			return DiskReport{}, &CollectionError{Op: "disk usage", Line: line, Err: err}
		}
		used, err := units.ParseSize(cols[2])
		if err != nil {
			return DiskReport{}, &CollectionError{Op: "disk usage", Line: line, Err: err}
		}
		if total <= 0 {
			return DiskReport{}, &CollectionError{Op: "disk usage", Line: line, Err: errors.New("filesystem reports zero size")}
		}

		return DiskReport{Device: device, TotalGB: total, UsedGB: used}, nil
	}
	if err := scanner.Err(); err != nil {
		return DiskReport{}, &CollectionError{Op: "disk usage", Err: err}
	}

	return DiskReport{}, &NotFoundError{Device: device}
}

// Ensure DiskSource implements DiskUsageSource.
var _ DiskUsageSource = (*DiskSource)(nil)
