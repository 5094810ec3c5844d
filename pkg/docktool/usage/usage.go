// Package usage collects docker build-cache usage and filesystem usage by
// running external commands and parsing their tabular output.
//
// Command execution goes through the Runner interface so the parsers can be
// exercised against canned output in tests.
package usage

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/jamesainslie/docktool/pkg/docktool/units"
)

// ErrNotFound is matched by NotFoundError via errors.Is.
var ErrNotFound = errors.New("device not found")

// CollectionError reports a failure to run a usage command or to make sense
// of its output.
type CollectionError struct {
	// Op names the collector, e.g. "cache usage".
	Op string
	// Command is the command line that was run.
	Command string
	// Line is the offending output line, if any.
	Line string
	Err  error
}

func (e *CollectionError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("%s: %s: %v (line %q)", e.Op, e.Command, e.Err, e.Line)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Command, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// NotFoundError reports that no row of the filesystem table matched the
// configured device.
type NotFoundError struct {
	Device  string
	Command string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("disk usage: %s: no filesystem named %q", e.Command, e.Device)
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Runner runs an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and returns stdout. Stderr is folded into the
// error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}

// Ensure ExecRunner implements Runner.
var _ Runner = ExecRunner{}

// CacheUsageSource yields the container runtime's cache usage.
type CacheUsageSource interface {
	CacheUsage(ctx context.Context) (CacheReport, error)
}

// DiskUsageSource yields the usage of one filesystem.
type DiskUsageSource interface {
	DiskUsage(ctx context.Context) (DiskReport, error)
}

// Category is one row of the `docker system df` table.
type Category struct {
	Type          string    `json:"type" yaml:"type"`
	Total         string    `json:"total" yaml:"total"`
	Active        string    `json:"active" yaml:"active"`
	SizeGB        units.GiB `json:"size_gb" yaml:"size_gb"`
	ReclaimableGB units.GiB `json:"reclaimable_gb" yaml:"reclaimable_gb"`
}

// CacheReport sums the docker disk-usage table.
type CacheReport struct {
	TotalUsedGB   units.GiB  `json:"total_used_gb" yaml:"total_used_gb"`
	ReclaimableGB units.GiB  `json:"reclaimable_gb" yaml:"reclaimable_gb"`
	Categories    []Category `json:"categories" yaml:"categories"`
}

// DiskReport is the size and usage of one filesystem.
type DiskReport struct {
	Device  string    `json:"device" yaml:"device"`
	TotalGB units.GiB `json:"total_gb" yaml:"total_gb"`
	UsedGB  units.GiB `json:"used_gb" yaml:"used_gb"`
}

// FreeGB returns the space not yet used.
func (r DiskReport) FreeGB() units.GiB {
	if r.UsedGB >= r.TotalGB {
		return 0
	}
	return r.TotalGB - r.UsedGB
}

// UsedFraction returns UsedGB/TotalGB, or 0 for a zero-sized report.
func (r DiskReport) UsedFraction() float64 {
	if r.TotalGB <= 0 {
		return 0
	}
	return float64(r.UsedGB) / float64(r.TotalGB)
}

// columnSep separates columns: two or more whitespace characters.
var columnSep = regexp.MustCompile(`\s{2,}`)

// SplitColumns trims line and splits it on runs of two or more whitespace
// characters. Single spaces stay inside a column ("Build Cache").
func SplitColumns(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return columnSep.Split(line, -1)
}

func commandLine(argv []string) string {
	return strings.Join(argv, " ")
}

func run(ctx context.Context, r Runner, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	return r.Run(ctx, argv[0], argv[1:]...)
}
