package main

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/docktool/pkg/docktool/config"
	"github.com/jamesainslie/docktool/pkg/docktool/logging"
	"github.com/jamesainslie/docktool/pkg/docktool/output"
)

var (
	outputFormat string
	templateStr  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show disk and docker usage once",
	Long: `Take one measurement of the watched filesystem and of docker's disk usage,
evaluate it against the configured thresholds and print it. Nothing is pruned
and no mail is sent.

Formats: ` + strings.Join(output.Available(), ", "),
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	flags := statusCmd.Flags()
	flags.String("disk_name", config.DefaultDiskName, "filesystem to measure, as printed by df")
	flags.String("disk-source", config.DefaultDiskSource, "disk usage source: df or statfs")
	flags.String("docker", config.DefaultDockerBinary, "docker binary")
	flags.StringVarP(&outputFormat, "format", "o", "pretty", "output format")
	flags.StringVar(&templateStr, "template", "", "Go template for --format template")
	rootCmd.AddCommand(statusCmd)
}

// runStatus measures, evaluates and renders one snapshot. A docker failure is
// reported as a warning; a disk failure is an error.
func runStatus(cmd *cobra.Command, _ []string) error {
	logger := logging.Get("docktool")

	formatter, err := output.Get(outputFormat)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(output.Available(), ", "))
	}
	if tf, ok := formatter.(*output.TemplateFormatter); ok && templateStr != "" {
		tf.SetTemplate(templateStr)
	}

	runner := newRunner()
	diskSource, err := newDiskSource(cfg, runner)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	disk, err := diskSource.DiskUsage(ctx)
	if err != nil {
		return fmt.Errorf("measuring %s: %w", cfg.Disk.Name, err)
	}

	thresholds := cfg.Thresholds.Thresholds()
	if err := thresholds.Validate(); err != nil {
		return err
	}

	var warnings []string
	cache, err := newCacheSource(cfg, runner).CacheUsage(ctx)
	result := output.NewResult(disk, &cache, thresholds, time.Now())
	if err != nil {
		logger.Warn("docker usage unavailable", "error", err)
		result.Cache = nil
		warnings = append(warnings, err.Error())
	}
	result.Warnings = warnings

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
