package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats output as aligned key/value lines followed by the
// docker usage table. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "DEVICE\t%s\n", r.Disk.Device)
	fmt.Fprintf(tw, "SIZE\t%s\n", r.Disk.TotalGB)
	fmt.Fprintf(tw, "USED\t%s\n", r.Disk.UsedGB)
	fmt.Fprintf(tw, "FREE\t%s\n", r.Disk.FreeGB())
	fmt.Fprintf(tw, "USE%%\t%.2f%%\n", r.UsedPercent())
	fmt.Fprintf(tw, "LEVEL\t%s\n", r.Level)
	if r.Cache != nil {
		fmt.Fprintf(tw, "DOCKER\t%s\n", r.Cache.TotalUsedGB)
		fmt.Fprintf(tw, "RECLAIMABLE\t%s\n", r.Cache.ReclaimableGB)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Cache != nil && len(r.Cache.Categories) > 0 {
		w.WriteString("\n")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprint(tw, "TYPE\tTOTAL\tACTIVE\tSIZE\tRECLAIMABLE\n")
		for _, c := range r.Cache.Categories {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Type, c.Total, c.Active, c.SizeGB, c.ReclaimableGB)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
