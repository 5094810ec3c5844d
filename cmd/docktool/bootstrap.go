package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/docktool/pkg/docktool/config"
	"github.com/jamesainslie/docktool/pkg/docktool/logging"
	"github.com/jamesainslie/docktool/pkg/docktool/units"
)

// defaultMaxLogSize is used when logging.rotation.max_size is empty or invalid.
const defaultMaxLogSize = 10 * 1024 * 1024

// annotationConfigOptional marks commands that work before the --config file
// exists, such as config init.
const annotationConfigOptional = "docktool/config-optional"

// initializeLogging is the root PersistentPreRunE hook. It loads the
// configuration with the command's flags applied and initializes logging.
func initializeLogging(cmd *cobra.Command, _ []string) error {
	if vp == nil {
		initConfig()
	}
	if cmd != nil {
		if err := bindFlags(vp, cmd); err != nil {
			return err
		}
	}

	loaded, err := config.Read(vp)
	if err != nil && errors.Is(err, fs.ErrNotExist) && cmd != nil && cmd.Annotations[annotationConfigOptional] == "true" {
		loaded, err = config.Decode(vp)
	}
	if err != nil {
		return err
	}
	cfg = loaded

	if err := os.MkdirAll(config.StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if err := logging.Init(loggingConfig(cfg, getVerbose(), getQuiet())); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}

// loggingConfig translates the logging section of cfg and the verbosity
// flags into a logging.Config.
func loggingConfig(c *config.Config, verbose, quiet bool) logging.Config {
	lc := logging.Config{
		Level:        c.Logging.Level,
		Path:         c.Logging.Path,
		Rotation:     parseRotationConfig(c.Logging.Rotation),
		Components:   c.Logging.Components,
		ConsoleLevel: c.Logging.Console,
		Fields:       []interface{}{"run", runID},
	}
	if lc.Path == "" {
		lc.Path = config.DefaultLogPath()
	}
	if verbose {
		lc.Level = "debug"
		lc.ConsoleLevel = "debug"
	}
	if quiet {
		lc.ConsoleLevel = "error"
	}
	return lc
}

// parseRotationConfig converts the config file's rotation settings.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize := int64(defaultMaxLogSize)
	if rc.MaxSize != "" {
		if parsed, err := units.ParseSize(rc.MaxSize); err == nil && parsed > 0 {
			maxSize = int64(parsed.Bytes())
		}
	}
	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}
