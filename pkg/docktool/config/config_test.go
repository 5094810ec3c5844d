package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/docktool/pkg/docktool/cleaner"
	"github.com/jamesainslie/docktool/pkg/docktool/units"
)

func isolate(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tempDir
}

func validConfig() *Config {
	return &Config{
		SleepTime:          DefaultSleepTime,
		CacheTime:          DefaultCacheTime,
		EmergencyCacheTime: DefaultEmergencyCacheTime,
		Disk:               DiskConfig{Name: DefaultDiskName, Source: DiskSourceDF},
		Thresholds:         ThresholdsConfig{Warning: DefaultWarningThreshold, Emergency: DefaultEmergencyThreshold},
		Mail: MailConfig{
			Enabled:   true,
			Sender:    "ops@example.com",
			Recipient: "oncall@example.com",
			Password:  "secret",
			Timeout:   DefaultMailTimeout,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SleepTime != DefaultSleepTime {
		t.Errorf("SleepTime = %q, want %q", cfg.SleepTime, DefaultSleepTime)
	}
	if cfg.CacheTime != DefaultCacheTime {
		t.Errorf("CacheTime = %q, want %q", cfg.CacheTime, DefaultCacheTime)
	}
	if cfg.EmergencyCacheTime != DefaultEmergencyCacheTime {
		t.Errorf("EmergencyCacheTime = %q, want %q", cfg.EmergencyCacheTime, DefaultEmergencyCacheTime)
	}
	if cfg.Disk.Name != DefaultDiskName {
		t.Errorf("Disk.Name = %q, want %q", cfg.Disk.Name, DefaultDiskName)
	}
	if cfg.Thresholds.Warning != DefaultWarningThreshold || cfg.Thresholds.Emergency != DefaultEmergencyThreshold {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Mail.Host != DefaultMailHost || cfg.Mail.Port != DefaultMailPort {
		t.Errorf("Mail endpoint = %s:%d", cfg.Mail.Host, cfg.Mail.Port)
	}
	if cfg.Mail.Password != "" {
		t.Error("Mail.Password must have no default")
	}
	if cfg.PIDPath != DefaultPIDPath() {
		t.Errorf("PIDPath = %q, want %q", cfg.PIDPath, DefaultPIDPath())
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := isolate(t)
	configDir := filepath.Join(tempDir, ".config", "docktool")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `
sleep_time: 6h
cache_time: 1d
disk:
  name: /dev/sda2
thresholds:
  warning: 0.9
  emergency: 0.98
mail:
  sender: ops@example.com
  recipient: oncall@example.com
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SleepTime != "6h" {
		t.Errorf("SleepTime = %q, want %q", cfg.SleepTime, "6h")
	}
	if cfg.CacheTime != "1d" {
		t.Errorf("CacheTime = %q, want %q", cfg.CacheTime, "1d")
	}
	if cfg.Disk.Name != "/dev/sda2" {
		t.Errorf("Disk.Name = %q, want %q", cfg.Disk.Name, "/dev/sda2")
	}
	if cfg.Disk.Source != DefaultDiskSource {
		t.Errorf("Disk.Source = %q, want default %q", cfg.Disk.Source, DefaultDiskSource)
	}
	if cfg.Thresholds.Warning != 0.9 || cfg.Thresholds.Emergency != 0.98 {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Mail.Sender != "ops@example.com" {
		t.Errorf("Mail.Sender = %q", cfg.Mail.Sender)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("emergency_cache_time: 15m\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EmergencyCacheTime != "15m" {
		t.Errorf("EmergencyCacheTime = %q, want %q", cfg.EmergencyCacheTime, "15m")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() of a missing explicit file should fail")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DOCKTOOL_MAIL_PASSWORD", "from-env")
	t.Setenv("DOCKTOOL_THRESHOLDS_WARNING", "0.8")
	t.Setenv("DOCKTOOL_SLEEP_TIME", "30m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mail.Password != "from-env" {
		t.Errorf("Mail.Password = %q, want %q", cfg.Mail.Password, "from-env")
	}
	if cfg.Thresholds.Warning != 0.8 {
		t.Errorf("Thresholds.Warning = %v, want 0.8", cfg.Thresholds.Warning)
	}
	if cfg.SleepTime != "30m" {
		t.Errorf("SleepTime = %q, want %q", cfg.SleepTime, "30m")
	}
}

func TestLoad_ExpandsPIDPath(t *testing.T) {
	tempDir := isolate(t)
	t.Setenv("DOCKTOOL_PID_PATH", "~/run/docktool.pid")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := filepath.Join(tempDir, "run", "docktool.pid")
	if cfg.PIDPath != want {
		t.Errorf("PIDPath = %q, want %q", cfg.PIDPath, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		wantMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Mail.Password = "" },
			wantErr: ErrMissingCredentials,
		},
		{
			name:    "missing recipient",
			mutate:  func(c *Config) { c.Mail.Recipient = "" },
			wantErr: ErrMissingCredentials,
		},
		{
			name: "mail disabled without credentials",
			mutate: func(c *Config) {
				c.Mail = MailConfig{Timeout: DefaultMailTimeout}
			},
		},
		{
			name:    "inverted thresholds",
			mutate:  func(c *Config) { c.Thresholds = ThresholdsConfig{Warning: 0.99, Emergency: 0.9} },
			wantErr: ErrInvalidThresholds,
		},
		{
			name:    "emergency above one",
			mutate:  func(c *Config) { c.Thresholds.Emergency = 1.5 },
			wantErr: ErrInvalidThresholds,
		},
		{
			name:    "zero warning",
			mutate:  func(c *Config) { c.Thresholds.Warning = 0 },
			wantErr: ErrInvalidThresholds,
		},
		{
			name:    "bad sleep time",
			mutate:  func(c *Config) { c.SleepTime = "soon" },
			wantMsg: "sleep_time",
		},
		{
			name:    "zero sleep time",
			mutate:  func(c *Config) { c.SleepTime = "0s" },
			wantMsg: "must be positive",
		},
		{
			name:    "bad cache time",
			mutate:  func(c *Config) { c.CacheTime = "-3h" },
			wantMsg: "cache_time",
		},
		{
			name:    "unknown disk source",
			mutate:  func(c *Config) { c.Disk.Source = "lsblk" },
			wantErr: ErrInvalidDiskSource,
		},
		{
			name:    "empty disk name",
			mutate:  func(c *Config) { c.Disk.Name = "" },
			wantMsg: "disk.name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
			case tt.wantMsg != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
					t.Errorf("Validate() error = %v, want message containing %q", err, tt.wantMsg)
				}
			default:
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
			}
		})
	}
}

func TestDurations(t *testing.T) {
	d, err := validConfig().Durations()
	if err != nil {
		t.Fatalf("Durations() error = %v", err)
	}
	if d.Sleep != 43200 {
		t.Errorf("Sleep = %v, want 43200", d.Sleep)
	}
	if d.Cache != 172800 {
		t.Errorf("Cache = %v, want 172800", d.Cache)
	}
	if d.EmergencyCache != 1800 {
		t.Errorf("EmergencyCache = %v, want 1800", d.EmergencyCache)
	}
	if d.MailTimeout != 30*time.Second {
		t.Errorf("MailTimeout = %v, want 30s", d.MailTimeout)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("XDG_CONFIG_HOME", func(t *testing.T) {
		xdgHome := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdgHome)

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if want := filepath.Join(xdgHome, "docktool"); dir != want {
			t.Errorf("ConfigDir() = %q, want %q", dir, want)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		home := isolate(t)

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if want := filepath.Join(home, ".config", "docktool"); dir != want {
			t.Errorf("ConfigDir() = %q, want %q", dir, want)
		}
	})
}

func TestWriteDefault(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if !written {
		t.Fatal("WriteDefault() = false on a fresh path")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	// The written file must load and carry the defaults.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of default file error = %v", err)
	}
	if cfg.SleepTime != DefaultSleepTime || cfg.Thresholds.Emergency != DefaultEmergencyThreshold {
		t.Errorf("default file round trip: %+v", cfg)
	}

	written, err = WriteDefault(path)
	if err != nil {
		t.Fatalf("second WriteDefault() error = %v", err)
	}
	if written {
		t.Error("WriteDefault() overwrote an existing file")
	}
}

func TestWatch_NoConfigFile(t *testing.T) {
	isolate(t)
	v := New("")
	if Watch(v, func(ThresholdsConfig) {}, func(error) {}) {
		t.Error("Watch() without a config file should be a no-op")
	}
}

func TestWatch_ReloadsThresholds(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(warning string) {
		t.Helper()
		content := "thresholds:\n  warning: " + warning + "\n  emergency: 0.99\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("0.9")

	v := New(path)
	if _, err := Read(v); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	changes := make(chan ThresholdsConfig, 8)
	if !Watch(v, func(th ThresholdsConfig) { changes <- th }, func(error) {}) {
		t.Fatal("Watch() = false with a config file in use")
	}

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case th := <-changes:
			if th.Warning == 0.85 {
				if th.Emergency != 0.99 {
					t.Errorf("Emergency = %v, want 0.99", th.Emergency)
				}
				return
			}
		case <-tick.C:
			write("0.85")
		case <-deadline:
			t.Fatal("no threshold reload observed")
		}
	}
}

func TestThresholdsShareLoopRule(t *testing.T) {
	tests := []ThresholdsConfig{
		{Warning: 0.95, Emergency: 0.999},
		{Warning: 0.99, Emergency: 0.9},
		{Warning: 0, Emergency: 0.5},
		{Warning: 0.5, Emergency: 1.01},
	}

	for _, tc := range tests {
		got := tc.Thresholds()
		if got != (cleaner.Thresholds{Warning: tc.Warning, Emergency: tc.Emergency}) {
			t.Errorf("Thresholds() = %+v", got)
		}

		cfgErr, loopErr := tc.Validate(), got.Validate()
		if (cfgErr == nil) != (loopErr == nil) {
			t.Errorf("%+v: config error %v, loop error %v", tc, cfgErr, loopErr)
		}
		if cfgErr != nil && !errors.Is(cfgErr, cleaner.ErrInvalidThresholds) {
			t.Errorf("%+v: error %v does not match cleaner.ErrInvalidThresholds", tc, cfgErr)
		}
	}
}

func TestDurationsRejectOutOfRange(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg.SleepTime = "300000d"
	_, err = cfg.Durations()
	if !errors.Is(err, units.ErrOutOfRange) {
		t.Errorf("Durations() error = %v, want ErrOutOfRange", err)
	}
	if err := cfg.Validate(); !errors.Is(err, units.ErrOutOfRange) {
		t.Errorf("Validate() error = %v, want ErrOutOfRange", err)
	}
}
