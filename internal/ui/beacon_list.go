package ui

import (
	"fmt"
	"strings"

	"beacon-bridge.klederson.com/internal/bridge"
)

// RenderBeaconList renders the scrollable list of ranged beacons with a
// cursor. The title stays fixed at the top; only the entries scroll.
func RenderBeaconList(beacons []bridge.DetectedBeacon, width, height, cursor int) string {
	innerW := width - 4
	if innerW < 10 {
		innerW = 10
	}

	title := StylePanelTitle.Render(fmt.Sprintf("BEACONS [%d]", len(beacons)))
	separator := StyleSeparator.Render(strings.Repeat("-", innerW))
	header := []string{title, separator}

	innerH := height - 2
	if innerH < len(header)+1 {
		innerH = len(header) + 1
	}
	space := innerH - len(header)

	var lines []string
	if len(beacons) == 0 {
		lines = append(lines, "", StyleHelp.Render(" No beacons..."), StyleHelp.Render(" Waiting for range"))
	} else {
		const linesPerBeacon = 4 // 3 content + 1 blank
		maxVisible := space / linesPerBeacon
		if maxVisible < 1 {
			maxVisible = 1
		}

		// viewport start keeps the cursor visible
		viewStart := 0
		if cursor >= maxVisible {
			viewStart = cursor - maxVisible + 1
		}

		for i := viewStart; i < len(beacons) && len(lines) < space; i++ {
			lines = append(lines, renderBeaconEntry(beacons[i], innerW, i == cursor)...)
		}
	}
	if len(lines) > space {
		lines = lines[:space]
	}

	all := append(header, lines...)
	rendered := StylePanelBorder.Width(width - 2).Height(innerH).Render(strings.Join(all, "\n"))
	return fitLines(rendered, height)
}

func renderBeaconEntry(b bridge.DetectedBeacon, maxW int, isCursor bool) []string {
	name := BeaconLabel(b)
	nameMax := maxW - 16
	if nameMax < 4 {
		nameMax = 4
	}
	if len(name) > nameMax {
		name = name[:nameMax]
	}

	cursor := "  "
	if isCursor {
		cursor = ">>"
	}
	tag := "[" + strings.ToUpper(string(b.Proximity)) + "]"

	mac := b.MACAddress
	if len(mac) > maxW-8 {
		mac = mac[:maxW-8]
	}
	rssiStr := fmt.Sprintf("%ddBm", b.RSSI)
	distStr := formatDistance(b.Distance)

	if isCursor {
		return []string{
			StyleCursorRow.Render(truncRaw(fmt.Sprintf("%s %s %s", cursor, name, tag), maxW)),
			StyleCursorRow.Render(truncRaw("       "+mac, maxW)),
			StyleCursorRow.Render(truncRaw(fmt.Sprintf("       %s  %s", rssiStr, distStr), maxW)),
			"",
		}
	}

	tagSty := StyleBeaconRSSI.Foreground(ProximityColor(b.Proximity))
	return []string{
		fmt.Sprintf("%s %s %s", cursor, StyleBeaconName.Render(name), tagSty.Render(tag)),
		"       " + StyleBeaconMAC.Render(mac),
		fmt.Sprintf("       %s  %s", StyleBeaconRSSI.Render(rssiStr), StyleBeaconRSSI.Render(distStr)),
		"",
	}
}

// BeaconLabel is the short label of a beacon: its name when known,
// otherwise its major/minor pair or uuid.
func BeaconLabel(b bridge.DetectedBeacon) string {
	if b.Name != "" {
		return b.Name
	}
	if b.Major != nil && b.Minor != nil {
		return fmt.Sprintf("%d/%d", *b.Major, *b.Minor)
	}
	if b.UUID != "" {
		return b.UUID
	}
	return "[unnamed]"
}

func formatDistance(d float64) string {
	if d < 0 {
		return "~?m"
	}
	return fmt.Sprintf("~%.1fm", d)
}
