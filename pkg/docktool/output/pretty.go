package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/docktool/pkg/docktool/cleaner"
)

// barWidth is the number of cells in the usage bar.
const barWidth = 30

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatCache(r))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

// formatHeader builds the header box with the disk summary and usage bar.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	levelStyle := styleForLevel(r.Level)

	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Device:"), ValueStyle.Render(r.Disk.Device)),
		fmt.Sprintf("%s %s  %s %s  %s %s",
			LabelStyle.Render("Size:"), SizeStyle.Render(r.Disk.TotalGB.String()),
			LabelStyle.Render("Used:"), SizeStyle.Render(r.Disk.UsedGB.String()),
			LabelStyle.Render("Free:"), SizeStyle.Render(r.Disk.FreeGB().String())),
		fmt.Sprintf("%s %s",
			levelStyle.Render(usageBar(r.Disk.UsedFraction(), barWidth)),
			levelStyle.Bold(true).Render(fmt.Sprintf("%.2f%% %s", r.UsedPercent(), r.Level))),
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatCache builds the docker usage table.
func (f *PrettyFormatter) formatCache(r *Result) string {
	if r.Cache == nil {
		return MutedStyle.Render("  Docker usage unavailable") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Docker"))
	sb.WriteString(fmt.Sprintf("  %s %s  %s %s\n",
		LabelStyle.Render("Total:"), SizeStyle.Render(r.Cache.TotalUsedGB.String()),
		LabelStyle.Render("Reclaimable:"), SizeStyle.Render(r.Cache.ReclaimableGB.String())))

	if len(r.Cache.Categories) == 0 {
		return sb.String()
	}

	typeWidth := len("TYPE")
	for _, c := range r.Cache.Categories {
		if len(c.Type) > typeWidth {
			typeWidth = len(c.Type)
		}
	}

	sb.WriteString(fmt.Sprintf("  %s%s%s\n",
		TableHeaderStyle.Render(padRight("TYPE", typeWidth)),
		TableHeaderStyle.Render(padLeft("SIZE", 10)),
		TableHeaderStyle.Render(padLeft("RECLAIMABLE", 12))))
	for _, c := range r.Cache.Categories {
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			ValueStyle.Render(padRight(c.Type, typeWidth)),
			SizeStyle.Render(padLeft(c.SizeGB.String(), 10)),
			MutedStyle.Render(padLeft(c.ReclaimableGB.String(), 12))))
	}
	return sb.String()
}

// formatFooter builds the footer box with thresholds and check time.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Warning:"),
			ValueStyle.Render(fmt.Sprintf("%.1f%%", r.Thresholds.Warning*100))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Emergency:"),
			ValueStyle.Render(fmt.Sprintf("%.1f%%", r.Thresholds.Emergency*100))),
	}
	if !r.CheckedAt.IsZero() {
		parts = append(parts, MutedStyle.Render("checked "+r.CheckedAt.Format(time.DateTime)))
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func styleForLevel(level cleaner.Level) lipgloss.Style {
	switch level {
	case cleaner.LevelEmergency:
		return ErrorStyle
	case cleaner.LevelWarning:
		return WarningStyle
	default:
		return SuccessStyle
	}
}

// usageBar renders fraction as a bar of width cells.
func usageBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// padLeft pads a string with spaces on the left to achieve the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
