package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/docktool/pkg/docktool/config"
	"github.com/jamesainslie/docktool/pkg/docktool/logging"
	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

var (
	cfgFile string

	// vp holds the configuration of the running command.
	vp *viper.Viper

	// cfg is the configuration loaded by initializeLogging.
	cfg *config.Config

	// runID tags every log line and alert of this process.
	runID = uuid.NewString()

	// newRunner creates the subprocess runner; tests replace it.
	newRunner = func() usage.Runner { return usage.ExecRunner{} }

	rootCmd = &cobra.Command{
		Use:   "docktool",
		Short: "Keep docker build cache from filling the disk",
		Long: `Docktool periodically prunes the docker build cache and emails an alert
when the watched filesystem runs low on space.

Examples:
  docktool clear_cache                          # Prune every 12h, keep 48h of cache
  docktool clear_cache --sleep_time 6h --cache_time 1d
  docktool status --format json                 # One measurement, no pruning
  docktool config init                          # Write a default config file`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentPreRunE = initializeLogging

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/docktool/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only print errors to the console")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
}

// initConfig creates the viper instance for the requested config file.
func initConfig() {
	vp = config.New(cfgFile)
	_ = vp.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = vp.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// Execute runs the root command, then flushes and closes the log file.
func Execute() error {
	err := rootCmd.Execute()
	if closeErr := logging.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"sleep_time":           "sleep_time",
	"cache_time":           "cache_time",
	"emergency_cache_time": "emergency_cache_time",
	"disk_name":            "disk.name",
	"disk-source":          "disk.source",
	"docker":               "docker_binary",
	"dry-run":              "dry_run",
	"pid-file":             "pid_path",
}

// bindFlags binds the flags of cmd that have a configuration key, so an
// explicitly set flag overrides file and environment values.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}
	if f := cmd.Flags().Lookup("no-mail"); f != nil && f.Changed {
		noMail, err := cmd.Flags().GetBool("no-mail")
		if err != nil {
			return fmt.Errorf("reading --no-mail: %w", err)
		}
		if noMail {
			v.Set("mail.enabled", false)
		}
	}
	return nil
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return vp != nil && vp.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return vp != nil && vp.GetBool("quiet")
}

// printInfo prints a message to w unless quiet mode is enabled.
func printInfo(cmd *cobra.Command, format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	}
}

// printVerbose prints a message to stderr if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}
