package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/docktool/pkg/docktool/cleaner"
	"github.com/jamesainslie/docktool/pkg/docktool/config"
	"github.com/jamesainslie/docktool/pkg/docktool/lifecycle"
	"github.com/jamesainslie/docktool/pkg/docktool/logging"
	"github.com/jamesainslie/docktool/pkg/docktool/notify"
	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear_cache",
	Short: "Prune build cache periodically and alert on low disk space",
	Long: `Run the cleanup loop until interrupted.

Every cycle prunes build cache older than --cache_time, measures docker and
filesystem usage, and compares the used share of --disk_name with the
configured thresholds:

  used >= thresholds.emergency  prune with --emergency_cache_time, send an emergency mail
  used >= thresholds.warning    send a warning mail

The loop then sleeps for --sleep_time. Durations take a d, h, m/min or s
suffix; a bare number is seconds.

Mail credentials come from the config file or the environment:
  DOCKTOOL_MAIL_SENDER, DOCKTOOL_MAIL_RECIPIENT, DOCKTOOL_MAIL_PASSWORD

Threshold changes in the config file are applied without a restart.`,
	Args: cobra.NoArgs,
	RunE: runClearCache,
}

func init() {
	flags := clearCacheCmd.Flags()
	flags.String("sleep_time", config.DefaultSleepTime, "pause between cleanup cycles")
	flags.String("cache_time", config.DefaultCacheTime, "prune build cache older than this")
	flags.String("emergency_cache_time", config.DefaultEmergencyCacheTime, "retention of the emergency prune")
	flags.String("disk_name", config.DefaultDiskName, "filesystem to watch, as printed by df")
	flags.String("disk-source", config.DefaultDiskSource, "disk usage source: df or statfs")
	flags.String("docker", config.DefaultDockerBinary, "docker binary")
	flags.Bool("dry-run", false, "log prune commands instead of running them")
	flags.String("pid-file", "", "PID file guarding against a second instance")
	flags.Bool("no-mail", false, "log alerts instead of mailing them")
	rootCmd.AddCommand(clearCacheCmd)
}

// runClearCache validates the configuration, takes the PID file and runs the
// loop until SIGINT or SIGTERM.
func runClearCache(cmd *cobra.Command, _ []string) error {
	logger := logging.Get("docktool")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pidFile, err := lifecycle.Acquire(cfg.PIDPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Release(); err != nil {
			logger.Warn("failed to remove PID file", "path", pidFile.Path(), "error", err)
		}
	}()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	updates := make(chan cleaner.Thresholds, 1)
	if config.Watch(vp, func(t config.ThresholdsConfig) {
		publishThresholds(updates, t.Thresholds())
	}, func(err error) {
		logging.Get("config").Warn("config reload rejected", "error", err)
	}) {
		logger.Info("watching config file for threshold changes", "path", vp.ConfigFileUsed())
	}

	loop, err := newLoop(cfg, newRunner(), notifier, updates)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("docktool starting",
		"disk", cfg.Disk.Name,
		"source", cfg.Disk.Source,
		"dry_run", cfg.DryRun,
		"mail", cfg.Mail.Enabled,
		"pid", os.Getpid())
	printVerbose("run %s, pid file %s", runID, pidFile.Path())

	if err := loop.Run(ctx); err != nil {
		return err
	}
	printInfo(cmd, "docktool stopped after %d cycles", loop.Stats().Cycles)
	return nil
}

// newLoop wires the sources, pruner and notifier described by c.
func newLoop(c *config.Config, runner usage.Runner, notifier notify.Notifier, updates <-chan cleaner.Thresholds) (*cleaner.Loop, error) {
	d, err := c.Durations()
	if err != nil {
		return nil, err
	}

	diskSource, err := newDiskSource(c, runner)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()

	return cleaner.New(
		newCacheSource(c, runner),
		diskSource,
		cleaner.NewPruner(runner, cleaner.WithBinary(c.DockerBinary), cleaner.WithDryRun(c.DryRun)),
		notifier,
		cleaner.Settings{
			Sleep:              d.Sleep,
			CacheRetention:     d.Cache,
			EmergencyRetention: d.EmergencyCache,
			Thresholds:         c.Thresholds.Thresholds(),
		},
		cleaner.WithThresholdUpdates(updates),
		cleaner.WithHostname(hostname),
		cleaner.WithRunID(runID),
	)
}

func newCacheSource(c *config.Config, runner usage.Runner) *usage.CacheSource {
	src := usage.NewCacheSource(runner)
	if c.DockerBinary != "" {
		src.Command = append([]string{c.DockerBinary}, usage.DefaultCacheCommand[1:]...)
	}
	return src
}

func newDiskSource(c *config.Config, runner usage.Runner) (usage.DiskUsageSource, error) {
	switch c.Disk.Source {
	case config.DiskSourceDF, "":
		return usage.NewDiskSource(runner, c.Disk.Name), nil
	case config.DiskSourceStatfs:
		return &usage.StatfsSource{Path: c.Disk.Name}, nil
	default:
		return nil, fmt.Errorf("%w (got %q)", config.ErrInvalidDiskSource, c.Disk.Source)
	}
}

// newNotifier returns a Mailer, or a LogNotifier when mail is disabled.
func newNotifier(c *config.Config) (notify.Notifier, error) {
	if !c.Mail.Enabled {
		return notify.LogNotifier{}, nil
	}

	d, err := c.Durations()
	if err != nil {
		return nil, err
	}
	mailer, err := notify.NewMailer(notify.MailConfig{
		Host:      c.Mail.Host,
		Port:      c.Mail.Port,
		Username:  c.Mail.Username,
		Password:  c.Mail.Password,
		Sender:    c.Mail.Sender,
		Recipient: c.Mail.Recipient,
		Timeout:   d.MailTimeout,
	})
	if errors.Is(err, notify.ErrMissingCredentials) {
		return nil, fmt.Errorf("%w (set DOCKTOOL_MAIL_SENDER, DOCKTOOL_MAIL_RECIPIENT and DOCKTOOL_MAIL_PASSWORD or use --no-mail)", err)
	}
	if err != nil {
		return nil, err
	}
	return mailer, nil
}

// publishThresholds replaces any update the loop has not consumed yet. Only
// the config watcher sends on ch.
func publishThresholds(ch chan cleaner.Thresholds, t cleaner.Thresholds) {
	select {
	case ch <- t:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- t:
	default:
	}
}
