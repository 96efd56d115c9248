package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"beacon-bridge.klederson.com/internal/bridge"
)

// RenderDetailPanel renders the beacon detail view that replaces the
// region panel.
func RenderDetailPanel(b bridge.DetectedBeacon, width, height int, rssiHistory []float64, lastSeen time.Time) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	title := StylePanelTitle.Render("BEACON DETAIL")
	escHint := StyleHelp.Render("[ESC]")
	titleLine := title + strings.Repeat(" ", max(0, innerW-lipgloss.Width(title)-lipgloss.Width(escHint))) + escHint
	sep := StyleSeparator.Render(strings.Repeat("-", innerW))

	lines := []string{titleLine, sep, ""}

	fields := []struct{ label, value string }{
		{"Name", BeaconLabel(b)},
		{"MAC", orDash(b.MACAddress)},
		{"UUID", orDash(b.UUID)},
		{"Major", optInt(b.Major)},
		{"Minor", optInt(b.Minor)},
		{"RSSI", fmt.Sprintf("%d dBm", b.RSSI)},
		{"Distance", formatDistance(b.Distance)},
		{"Proximity", string(b.Proximity)},
		{"Last", formatAge(lastSeen)},
	}
	for _, f := range fields {
		lines = append(lines, StyleLabel.Render(fmt.Sprintf("  %-10s", f.label))+StyleValue.Render(f.value))
	}
	lines = append(lines, "")

	barWidth := innerW - 22
	if barWidth < 10 {
		barWidth = 10
	}
	lines = append(lines,
		StyleLabel.Render("  Signal ")+renderSignalBar(b.RSSI, barWidth)+StyleValue.Render(fmt.Sprintf(" %ddBm", b.RSSI)),
		"",
	)

	if len(rssiHistory) > 0 {
		sparkW := innerW - 4
		if sparkW < 10 {
			sparkW = 10
		}
		lines = append(lines,
			StyleLabel.Render("  RSSI History:"),
			"  "+lipgloss.NewStyle().Foreground(ColorGreen).Render(renderSparkline(rssiHistory, sparkW)),
		)
	}

	rendered := StylePanelActive.Width(width - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
	return fitLines(rendered, height)
}

func renderSignalBar(rssi, width int) string {
	// map RSSI -100..-30 to 0..width
	ratio := (float64(rssi) + 100.0) / 70.0
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(math.Round(ratio * float64(width)))

	filledPart := lipgloss.NewStyle().Foreground(rssiColor(rssi)).Render(strings.Repeat("|", filled))
	emptyPart := lipgloss.NewStyle().Foreground(ColorDimGreen).Render(strings.Repeat("-", width-filled))
	return StyleHelp.Render("[") + filledPart + emptyPart + StyleHelp.Render("]")
}

func renderSparkline(values []float64, width int) string {
	if len(values) == 0 {
		return ""
	}
	chars := []byte{'_', '.', '-', '~', '^'}

	// take last `width` values
	if len(values) > width {
		values = values[len(values)-width:]
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	rng := maxV - minV
	if rng < 1 {
		rng = 1
	}

	var sb strings.Builder
	for _, v := range values {
		idx := int((v - minV) / rng * float64(len(chars)-1))
		idx = min(max(idx, 0), len(chars)-1)
		sb.WriteByte(chars[idx])
	}
	return sb.String()
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
