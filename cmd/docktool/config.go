package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/docktool/pkg/docktool/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage docktool configuration settings.

Configuration is loaded from:
  1. --config FILE
  2. $XDG_CONFIG_HOME/docktool/config.yaml (if set)
  3. ~/.config/docktool/config.yaml
  4. /etc/docktool/config.yaml

Environment variables override config file settings using the DOCKTOOL_ prefix:
  DOCKTOOL_SLEEP_TIME=6h
  DOCKTOOL_THRESHOLDS_WARNING=0.9
  DOCKTOOL_MAIL_PASSWORD=...`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration from all sources. The mail password is redacted.`,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Annotations: map[string]string{annotationConfigOptional: "true"},
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Annotations: map[string]string{annotationConfigOptional: "true"},
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	if configFile := vp.ConfigFileUsed(); configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fmt.Fprintf(w, "# Config file: %s\n", configFile)
		}
	} else {
		fmt.Fprintln(w, "# Config file: (using defaults, no file found)")
	}

	shown := *cfg
	if shown.Mail.Password != "" {
		shown.Mail.Password = "********"
	}

	data, err := yaml.Marshal(shown)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}

	overrides := envOverrides()
	fmt.Fprintln(w, "\n# Environment overrides:")
	if len(overrides) == 0 {
		fmt.Fprintln(w, "#   (none)")
	}
	for _, name := range overrides {
		fmt.Fprintf(w, "#   %s\n", name)
	}
	return nil
}

// envOverrides lists the DOCKTOOL_ variables set in the environment, with
// secret values hidden.
func envOverrides() []string {
	prefix := config.EnvPrefix + "_"
	var names []string
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.Contains(name, "PASSWORD") {
			value = "********"
		}
		names = append(names, name+"="+value)
	}
	sort.Strings(names)
	return names
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath, err := targetConfigPath()
	if err != nil {
		return err
	}

	written, err := config.WriteDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if !written {
		printInfo(cmd, "Config file already exists: %s", configPath)
		return nil
	}

	printInfo(cmd, "Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, _ []string) error {
	configPath, err := targetConfigPath()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}
	return nil
}

// targetConfigPath is --config when given, else the default location.
func targetConfigPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	path, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return path, nil
}
