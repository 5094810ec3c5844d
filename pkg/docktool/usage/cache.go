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

// DefaultCacheCommand summarizes docker disk usage by category.
var DefaultCacheCommand = []string{"docker", "system", "df"}

// cacheHeaderToken starts the header row of `docker system df`.
const cacheHeaderToken = "TYPE"

// cacheColumns is the column count of every `docker system df` row:
// TYPE, TOTAL, ACTIVE, SIZE, RECLAIMABLE.
const cacheColumns = 5

// CacheSource reads docker cache usage from `docker system df`.
type CacheSource struct {
	Runner  Runner
	Command []string
}

// NewCacheSource returns a CacheSource running the default command.
func NewCacheSource(r Runner) *CacheSource {
	return &CacheSource{Runner: r, Command: DefaultCacheCommand}
}

// CacheUsage runs the disk-usage command and sums its SIZE and RECLAIMABLE
// columns. Any malformed row fails the whole report.
func (s *CacheSource) CacheUsage(ctx context.Context) (CacheReport, error) {
	out, err := run(ctx, s.Runner, s.Command)
	if err != nil {
		return CacheReport{}, &CollectionError{Op: "cache usage", Command: commandLine(s.Command), Err: err}
	}

	report, err := ParseCacheTable(out)
	if err != nil {
		var cerr *CollectionError
		if errors.As(err, &cerr) {
			cerr.Command = commandLine(s.Command)
		}
		return CacheReport{}, err
	}

	logging.Get("usage").Info("docker disk usage",
		"used", report.TotalUsedGB.String(),
		"reclaimable", report.ReclaimableGB.String())
	return report, nil
}

// ParseCacheTable parses the text printed by `docker system df`.
func ParseCacheTable(out []byte) (CacheReport, error) {
	var (
		report     CacheReport
		seenHeader bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, cacheHeaderToken) {
			seenHeader = true
			continue
		}

		cols := SplitColumns(line)
		if len(cols) != cacheColumns {
			return CacheReport{}, &CollectionError{
				Op:   "cache usage",
				Line: line,
				Err:  fmt.Errorf("expected %d columns, got %d", cacheColumns, len(cols)),
			}
		}

		size, err := units.ParseSize(cols[3])
		if err != nil {
			return CacheReport{}, &CollectionError{Op: "cache usage", Line: line, Err: err}
		}
		reclaimable, err := units.ParseSize(cols[4])
		if err != nil {
			return CacheReport{}, &CollectionError{Op: "cache usage", Line: line, Err: err}
		}

		report.Categories = append(report.Categories, Category{
			Type:          cols[0],
			Total:         cols[1],
			Active:        cols[2],
			SizeGB:        size,
			ReclaimableGB: reclaimable,
		})
		report.TotalUsedGB += size
		report.ReclaimableGB += reclaimable
	}
	if err := scanner.Err(); err != nil {
		return CacheReport{}, &CollectionError{Op: "cache usage", Err: err}
	}
	if !seenHeader {
		return CacheReport{}, &CollectionError{
			Op:  "cache usage",
			Err: fmt.Errorf("no %s header in output", cacheHeaderToken),
		}
	}

	return report, nil
}

// Ensure CacheSource implements CacheUsageSource.
var _ CacheUsageSource = (*CacheSource)(nil)
