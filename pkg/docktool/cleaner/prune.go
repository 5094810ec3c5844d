package cleaner

import (
	"context"
	"fmt"
	"strings"

	"github.com/jamesainslie/docktool/pkg/docktool/logging"
	"github.com/jamesainslie/docktool/pkg/docktool/units"
	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

// DefaultBinary is the container runtime CLI.
const DefaultBinary = "docker"

// Pruner removes build cache older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, olderThan units.Seconds) error
}

// CommandPruner runs `docker builder prune --force --filter until=<d>`.
type CommandPruner struct {
	runner usage.Runner
	binary string
	dryRun bool
}

// PrunerOption configures a CommandPruner.
type PrunerOption func(*CommandPruner)

// WithBinary replaces the docker binary name or path.
func WithBinary(binary string) PrunerOption {
	return func(p *CommandPruner) {
		if binary != "" {
			p.binary = binary
		}
	}
}

// WithDryRun logs the prune command instead of running it.
func WithDryRun(dryRun bool) PrunerOption {
	return func(p *CommandPruner) {
		p.dryRun = dryRun
	}
}

// NewPruner returns a CommandPruner running commands through r.
func NewPruner(r usage.Runner, opts ...PrunerOption) *CommandPruner {
	p := &CommandPruner{runner: r, binary: DefaultBinary}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PruneArgs returns the arguments of the prune command for a retention window.
func PruneArgs(olderThan units.Seconds) []string {
	return []string{"builder", "prune", "--force", "--filter", "until=" + units.FormatDuration(olderThan)}
}

// Prune runs the prune command. Its output is logged at debug level.
func (p *CommandPruner) Prune(ctx context.Context, olderThan units.Seconds) error {
	logger := logging.Get("cleaner")
	args := PruneArgs(olderThan)
	cmdline := p.binary + " " + strings.Join(args, " ")

	if p.dryRun {
		logger.Info("dry run: skipping prune", "command", cmdline)
		return nil
	}

	out, err := p.runner.Run(ctx, p.binary, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", cmdline, err)
	}
	logger.Debug("prune finished", "command", cmdline, "output", strings.TrimSpace(string(out)))
	return nil
}

// Ensure CommandPruner implements Pruner.
var _ Pruner = (*CommandPruner)(nil)
