package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/jamesainslie/docktool/pkg/docktool/cleaner"
	"github.com/jamesainslie/docktool/pkg/docktool/units"
)

// Validation errors.
var (
	ErrMissingCredentials = errors.New("mail.sender, mail.recipient and mail.password must be set (e.g. DOCKTOOL_MAIL_PASSWORD)")
	ErrInvalidThresholds  = cleaner.ErrInvalidThresholds
	ErrInvalidDiskSource  = errors.New("disk.source must be df or statfs")
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Console    string            `mapstructure:"console" yaml:"console"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// DiskConfig selects the watched filesystem.
type DiskConfig struct {
	// Name is the df device name, or a mount path when Source is statfs.
	Name   string `mapstructure:"name" yaml:"name"`
	Source string `mapstructure:"source" yaml:"source"`
}

// ThresholdsConfig holds used-space fractions in (0, 1].
type ThresholdsConfig struct {
	Warning   float64 `mapstructure:"warning" yaml:"warning"`
	Emergency float64 `mapstructure:"emergency" yaml:"emergency"`
}

// Thresholds converts t for the cleanup loop.
func (t ThresholdsConfig) Thresholds() cleaner.Thresholds {
	return cleaner.Thresholds{Warning: t.Warning, Emergency: t.Emergency}
}

// Validate checks t with the loop's own threshold rule.
func (t ThresholdsConfig) Validate() error {
	return t.Thresholds().Validate()
}

// MailConfig configures the SMTP notifier. Credentials come from the config
// file or DOCKTOOL_MAIL_* environment variables.
type MailConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
	Sender    string `mapstructure:"sender" yaml:"sender"`
	Recipient string `mapstructure:"recipient" yaml:"recipient"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
}

// Config represents the application configuration.
type Config struct {
	SleepTime          string           `mapstructure:"sleep_time" yaml:"sleep_time"`
	CacheTime          string           `mapstructure:"cache_time" yaml:"cache_time"`
	EmergencyCacheTime string           `mapstructure:"emergency_cache_time" yaml:"emergency_cache_time"`
	DryRun             bool             `mapstructure:"dry_run" yaml:"dry_run"`
	DockerBinary       string           `mapstructure:"docker_binary" yaml:"docker_binary"`
	PIDPath            string           `mapstructure:"pid_path" yaml:"pid_path"`
	Disk               DiskConfig       `mapstructure:"disk" yaml:"disk"`
	Thresholds         ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds"`
	Mail               MailConfig       `mapstructure:"mail" yaml:"mail"`
	Logging            LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// Durations are the parsed time settings of a Config.
type Durations struct {
	Sleep          units.Seconds
	Cache          units.Seconds
	EmergencyCache units.Seconds
	MailTimeout    time.Duration
}

// Durations parses the duration strings of c.
func (c *Config) Durations() (Durations, error) {
	var (
		d   Durations
		err error
	)
	if d.Sleep, err = units.ParseDuration(c.SleepTime); err != nil {
		return Durations{}, fmt.Errorf("sleep_time: %w", err)
	}
	if d.Sleep <= 0 {
		return Durations{}, fmt.Errorf("sleep_time: must be positive, got %q", c.SleepTime)
	}
	if d.Cache, err = units.ParseDuration(c.CacheTime); err != nil {
		return Durations{}, fmt.Errorf("cache_time: %w", err)
	}
	if d.EmergencyCache, err = units.ParseDuration(c.EmergencyCacheTime); err != nil {
		return Durations{}, fmt.Errorf("emergency_cache_time: %w", err)
	}
	timeout, err := units.ParseDuration(c.Mail.Timeout)
	if err != nil {
		return Durations{}, fmt.Errorf("mail.timeout: %w", err)
	}
	d.MailTimeout = timeout.Duration()
	return d, nil
}

// Validate reports the first setting that would make the cleanup loop
// unable to start.
func (c *Config) Validate() error {
	if _, err := c.Durations(); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	switch c.Disk.Source {
	case DiskSourceDF, DiskSourceStatfs:
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidDiskSource, c.Disk.Source)
	}
	if c.Disk.Name == "" {
		return errors.New("disk.name must be set")
	}
	if c.Mail.Enabled && (c.Mail.Sender == "" || c.Mail.Recipient == "" || c.Mail.Password == "") {
		return ErrMissingCredentials
	}
	return nil
}

// New returns a viper instance with docktool's defaults, search paths and
// environment binding. cfgFile, when set, replaces the search paths.
func New(cfgFile string) *viper.Viper {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("/etc/docktool")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// SetDefaults registers every key with its default. Keys must be known to
// viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sleep_time", DefaultSleepTime)
	v.SetDefault("cache_time", DefaultCacheTime)
	v.SetDefault("emergency_cache_time", DefaultEmergencyCacheTime)
	v.SetDefault("dry_run", false)
	v.SetDefault("docker_binary", DefaultDockerBinary)
	v.SetDefault("pid_path", DefaultPIDPath())

	v.SetDefault("disk.name", DefaultDiskName)
	v.SetDefault("disk.source", DefaultDiskSource)

	v.SetDefault("thresholds.warning", DefaultWarningThreshold)
	v.SetDefault("thresholds.emergency", DefaultEmergencyThreshold)

	v.SetDefault("mail.enabled", true)
	v.SetDefault("mail.host", DefaultMailHost)
	v.SetDefault("mail.port", DefaultMailPort)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.recipient", "")
	v.SetDefault("mail.timeout", DefaultMailTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{})
}

// Read loads the config file and unmarshals v. Finding no file on the search
// path is fine; a missing --config file is an error.
func Read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Decode(v)
}

// Decode unmarshals v without reading a config file.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expanded, err := ExpandPath(cfg.PIDPath)
	if err != nil {
		return nil, err
	}
	cfg.PIDPath = expanded
	return &cfg, nil
}

// Load is New followed by Read.
func Load(cfgFile string) (*Config, error) {
	return Read(New(cfgFile))
}

// Watch calls onChange with the new thresholds whenever the config
// file in use is rewritten. Invalid thresholds are reported through onError
// and not forwarded. It is a no-op without a config file.
func Watch(v *viper.Viper, onChange func(ThresholdsConfig), onError func(error)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var t ThresholdsConfig
		if err := v.UnmarshalKey("thresholds", &t); err != nil {
			onError(fmt.Errorf("reloading %s: %w", e.Name, err))
			return
		}
		if err := t.Validate(); err != nil {
			onError(fmt.Errorf("reloading %s: %w", e.Name, err))
			return
		}
		onChange(t)
	})
	v.WatchConfig()
	return true
}

// ConfigDir returns $XDG_CONFIG_HOME/docktool, falling back to ~/.config/docktool.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "docktool"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "docktool"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StateDir returns $XDG_STATE_HOME/docktool for the log and PID files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "docktool")
}

// DefaultPIDPath returns the default PID file path.
func DefaultPIDPath() string {
	return filepath.Join(StateDir(), "docktool.pid")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "docktool.log")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a commented default config file to path unless one
// exists. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may end up holding the mail password.
	if err := os.WriteFile(path, []byte(defaultConfigYAML()), 0o600); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

func defaultConfigYAML() string {
	return fmt.Sprintf(`# docktool configuration

# Pause between cleanup cycles (d, h, m/min, s)
sleep_time: %s

# Build cache older than this is pruned every cycle
cache_time: %s

# Retention used by the emergency prune
emergency_cache_time: %s

# Log prune commands instead of running them
dry_run: false

disk:
  # Filesystem as printed in the first column of df -h (or a mount path for statfs)
  name: %s
  # df or statfs
  source: %s

# Used-space fractions; changes are picked up without a restart
thresholds:
  warning: %g
  emergency: %g

mail:
  enabled: true
  host: %s
  port: %d
  # Prefer DOCKTOOL_MAIL_SENDER, DOCKTOOL_MAIL_RECIPIENT and DOCKTOOL_MAIL_PASSWORD
  sender: ""
  recipient: ""
  password: ""
  timeout: %s

logging:
  # Log level: debug, info, warn, error
  level: info
  # Console (stderr) level; empty disables console output
  console: info
  # Log file path (empty means $XDG_STATE_HOME/docktool/docktool.log, "-" disables it)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels: cleaner, usage, notify, config
  components: {}
`, DefaultSleepTime, DefaultCacheTime, DefaultEmergencyCacheTime,
		DefaultDiskName, DefaultDiskSource,
		DefaultWarningThreshold, DefaultEmergencyThreshold,
		DefaultMailHost, DefaultMailPort, DefaultMailTimeout)
}
