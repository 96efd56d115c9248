package ui

import (
	"fmt"
	"strings"

	"beacon-bridge.klederson.com/internal/bridge"
)

// RegionRow is one monitored or ranged region as shown in the region panel.
type RegionRow struct {
	ID      string
	UUID    string
	Major   *int
	Minor   *int
	Ranged  bool
	Monitor bool
	State   string // last region event name, empty when none arrived yet
}

// RenderRegionPanel renders the table of regions with their last known
// state.
func RenderRegionPanel(width, height int, rows []RegionRow) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}

	lines := []string{
		StylePanelTitle.Render(fmt.Sprintf("REGIONS [%d]", len(rows))),
		StyleSeparator.Render(strings.Repeat("-", innerW)),
	}
	if len(rows) == 0 {
		lines = append(lines, "", StyleHelp.Render(" No regions. Press [S] to start."))
	}
	for _, r := range rows {
		mode := ""
		if r.Monitor {
			mode += "M"
		}
		if r.Ranged {
			mode += "R"
		}
		id := truncRaw(r.ID, 16)
		lines = append(lines,
			fmt.Sprintf(" %s %s %s",
				StyleValue.Render(id),
				StyleLabel.Render(fmt.Sprintf("[%-2s]", mode)),
				renderState(r.State)),
			"   "+StyleLabel.Render(describeRegion(r)),
		)
	}

	rendered := StylePanelBorder.Width(width - 2).Height(height - 2).Render(strings.Join(lines, "\n"))
	return fitLines(rendered, height)
}

func describeRegion(r RegionRow) string {
	uuid := r.UUID
	if uuid == "" {
		uuid = "any uuid"
	}
	parts := []string{uuid}
	if r.Major != nil {
		parts = append(parts, fmt.Sprintf("major %d", *r.Major))
	}
	if r.Minor != nil {
		parts = append(parts, fmt.Sprintf("minor %d", *r.Minor))
	}
	return strings.Join(parts, "  ")
}

func renderState(state string) string {
	switch state {
	case bridge.EventRegionDidEnter, bridge.EventRegionInside:
		return StyleStatusBound.Render("INSIDE")
	case bridge.EventRegionDidExit, bridge.EventRegionOutside:
		return StyleStatusUnbound.Render("OUTSIDE")
	default:
		return StyleHelp.Render("UNKNOWN")
	}
}
