package ui

import (
	"fmt"
	"time"
)

// StatusInfo is what the bottom bar reports.
type StatusInfo struct {
	Bound     bool
	Beacons   int
	Regions   int
	Inside    int
	LastRange time.Time
	Err       string
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, s StatusInfo) string {
	status := StyleStatusUnbound.Render("[UNBOUND]")
	if s.Bound {
		status = StyleStatusBound.Render("[RANGING]")
	}

	info := fmt.Sprintf(" Beacons: %d  Regions: %d  Inside: %d  Last range: %s",
		s.Beacons, s.Regions, s.Inside, formatAge(s.LastRange))

	content := status + StyleStatusBar.Foreground(ColorGreen).Render(info)
	errInfo := ""
	if s.Err != "" {
		errInfo = StyleStatusError.Render(s.Err) + " "
	}
	return StyleStatusBar.Width(width).Render(padRight(content, errInfo, width))
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	if d < time.Second {
		return "now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}
