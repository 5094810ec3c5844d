// Package config provides configuration management for docktool.
package config

// Default configuration values for docktool.
const (
	// DefaultSleepTime is the pause between two cleanup cycles.
	DefaultSleepTime = "12h"

	// DefaultCacheTime is the build-cache retention window of a regular prune.
	DefaultCacheTime = "48h"

	// DefaultEmergencyCacheTime is the retention window of an emergency prune.
	DefaultEmergencyCacheTime = "0.5h"

	// DefaultDiskName is the filesystem watched, as printed in df's first column.
	DefaultDiskName = "/dev/vda1"

	// DefaultDiskSource selects df parsing; "statfs" is the alternative.
	DefaultDiskSource = "df"

	// DefaultDockerBinary is the container runtime CLI.
	DefaultDockerBinary = "docker"

	// DefaultWarningThreshold is the used fraction that triggers a warning mail.
	DefaultWarningThreshold = 0.95

	// DefaultEmergencyThreshold is the used fraction that triggers an
	// emergency prune and mail.
	DefaultEmergencyThreshold = 0.999

	// DefaultMailHost is the SMTP-over-TLS submission host.
	DefaultMailHost = "smtp.163.com"

	// DefaultMailPort is the implicit-TLS submission port.
	DefaultMailPort = 465

	// DefaultMailTimeout bounds dialing and each SMTP exchange.
	DefaultMailTimeout = "30s"

	// EnvPrefix prefixes environment overrides, e.g. DOCKTOOL_MAIL_PASSWORD.
	EnvPrefix = "DOCKTOOL"
)

// Disk source names.
const (
	DiskSourceDF     = "df"
	DiskSourceStatfs = "statfs"
)
