package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ComposeLayout joins the main panel and the beacon list horizontally,
// with menu bar on top and status bar on bottom.
func ComposeLayout(menuBar, mainPanel, beaconList, statusBar string) string {
	middle := lipgloss.JoinHorizontal(lipgloss.Top, mainPanel, beaconList)
	return lipgloss.JoinVertical(lipgloss.Left, menuBar, middle, statusBar)
}

// fitLines clamps rendered output to exactly height lines.
// lipgloss Height() only sets a minimum; it won't truncate overflow.
func fitLines(rendered string, height int) string {
	lines := strings.Split(rendered, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// padRight fills the gap between left and right so the pair spans width.
func padRight(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

// truncRaw pads or truncates a raw string to exactly w characters.
func truncRaw(s string, w int) string {
	if len(s) > w {
		return s[:w]
	}
	if len(s) < w {
		return s + strings.Repeat(" ", w-len(s))
	}
	return s
}
