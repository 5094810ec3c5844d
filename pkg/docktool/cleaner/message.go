package cleaner

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

// Alert is a notification ready to hand to a notify.Notifier.
type Alert struct {
	Title string
	Body  string
}

// AlertContext carries the context added to every alert body.
type AlertContext struct {
	Hostname string
	RunID    string
	Cycle    uint64
}

// ComposeAlert builds the alert for level, or returns false for LevelNone.
func ComposeAlert(level Level, disk usage.DiskReport, cache usage.CacheReport, d AlertContext) (Alert, bool) {
	var title, action string
	switch level {
	case LevelWarning:
		title = "Disk space low"
		action = "Please clean up soon."
	case LevelEmergency:
		title = "Disk space critically low"
		action = "Emergency build-cache prune applied."
	default:
		return Alert{}, false
	}
	if d.Hostname != "" {
		title += " on " + d.Hostname
	}

	freePct := (1 - disk.UsedFraction()) * 100

	var b strings.Builder
	fmt.Fprintf(&b, "Disk %s is %s with %s used, %.2f%% free. ",
		disk.Device,
		disk.TotalGB,
		disk.UsedGB,
		freePct)
	fmt.Fprintf(&b, "Docker uses %s, %s reclaimable. %s\n",
		cache.TotalUsedGB,
		cache.ReclaimableGB,
		action)
	b.WriteString("\n")
	fmt.Fprintf(&b, "cycle: %d\n", d.Cycle)
	if d.RunID != "" {
		fmt.Fprintf(&b, "run: %s\n", d.RunID)
	}

	return Alert{Title: title, Body: b.String()}, true
}
