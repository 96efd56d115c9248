package app

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"beacon-bridge.klederson.com/internal/bridge"
	"beacon-bridge.klederson.com/internal/config"
	"beacon-bridge.klederson.com/internal/engine"
	"beacon-bridge.klederson.com/internal/ui"
)

// Commands is the part of the bridge the watcher drives.
type Commands interface {
	BindManager() error
	UnbindManager() error
	StartRanging(regionID, uuid string) error
	StartMonitoring(regionID, uuid string, minor, major int) error
	GetMonitoredRegions() []bridge.RegionPayload
	GetRangedRegions() []bridge.RegionPayload
}

// Options configures the watcher.
type Options struct {
	Source     string // shown in the menu bar
	RegionID   string
	RegionUUID string
	AutoBind   bool
}

// shared holds state shared between the Bubble Tea model copies.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	commands Commands
	history  *History
	states   map[string]string // region id -> last region event
}

// Model is the root Bubble Tea model of the beacon watcher.
type Model struct {
	width  int
	height int

	opts Options

	bound     bool
	cursor    int
	detail    bool
	detailKey string

	beacons   []bridge.DetectedBeacon
	monitored []bridge.RegionPayload
	ranged    []bridge.RegionPayload
	lastRange time.Time
	lastErr   string

	shared *shared
}

// New creates the watcher model.
func New(cmds Commands, opts Options) Model {
	return Model{
		opts: opts,
		shared: &shared{
			commands: cmds,
			history:  NewHistory(config.RSSIHistoryLen),
			states:   make(map[string]string),
		},
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), pruneCmd()}
	if m.opts.AutoBind {
		cmds = append(cmds, m.bindCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		return m, tickCmd()

	case PruneMsg:
		m.shared.history.Prune(time.Time(msg), config.BeaconTimeout)
		return m, pruneCmd()

	case EventMsg:
		return m.handleEvent(msg)

	case regionsMsg:
		m.monitored = msg.monitored
		m.ranged = msg.ranged
		return m, nil

	case CommandErrMsg:
		m.lastErr = msg.Err.Error()
		return m, nil
	}

	return m, nil
}

func (m Model) handleEvent(msg EventMsg) (tea.Model, tea.Cmd) {
	switch msg.Name {
	case bridge.EventBeaconServiceConnected:
		return m, m.watchCmd()

	case bridge.EventBindStatus:
		if p, ok := msg.Payload.(bridge.BindStatusPayload); ok {
			m.bound = p.Status == "true"
		}
		if !m.bound {
			m.beacons = nil
			m.cursor = 0
		}

	case bridge.EventBeaconsDidRange:
		p, ok := msg.Payload.(bridge.RangingPayload)
		if !ok || p.Identifier != m.opts.RegionID {
			return m, nil
		}
		now := time.Now()
		m.beacons = p.Beacons
		m.lastRange = now
		m.shared.history.Record(p.Beacons, now)
		if m.cursor >= len(m.beacons) {
			m.cursor = max(len(m.beacons)-1, 0)
		}

	case bridge.EventRegionDidEnter, bridge.EventRegionDidExit,
		bridge.EventRegionInside, bridge.EventRegionOutside:
		if p, ok := msg.Payload.(bridge.RegionPayload); ok {
			m.shared.states[p.Identifier] = msg.Name
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "s", "S":
		m.lastErr = ""
		return m, m.bindCmd()

	case "p", "P":
		return m, m.unbindCmd()

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.beacons)-1 {
			m.cursor++
		}

	case "home":
		m.cursor = 0

	case "end":
		if len(m.beacons) > 0 {
			m.cursor = len(m.beacons) - 1
		}

	case "enter":
		if m.cursor < len(m.beacons) {
			m.detail = true
			m.detailKey = BeaconKey(m.beacons[m.cursor])
		}

	case "esc":
		m.detail = false
	}

	return m, nil
}

func (m Model) bindCmd() tea.Cmd {
	cmds := m.shared.commands
	return func() tea.Msg {
		if err := cmds.BindManager(); err != nil {
			return CommandErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) unbindCmd() tea.Cmd {
	cmds := m.shared.commands
	return func() tea.Msg {
		if err := cmds.UnbindManager(); err != nil {
			return CommandErrMsg{Err: err}
		}
		return nil
	}
}

// watchCmd starts ranging and monitoring of the configured region. On a
// rebind the regions are still registered, which is not an error here.
func (m Model) watchCmd() tea.Cmd {
	cmds := m.shared.commands
	id, uuid := m.opts.RegionID, m.opts.RegionUUID
	return func() tea.Msg {
		if err := cmds.StartRanging(id, uuid); err != nil && !errors.Is(err, engine.ErrAlreadyRanged) {
			return CommandErrMsg{Err: err}
		}
		err := cmds.StartMonitoring(id, uuid, bridge.Unspecified, bridge.Unspecified)
		if err != nil && !errors.Is(err, engine.ErrAlreadyMonitored) {
			return CommandErrMsg{Err: err}
		}
		return regionsMsg{monitored: cmds.GetMonitoredRegions(), ranged: cmds.GetRangedRegions()}
	}
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing beacon watcher..."
	}

	bodyH := m.height - 2 // menu + status
	if bodyH < 5 {
		bodyH = 5
	}
	listW := m.width / 3
	if listW < 30 {
		listW = 30
	}
	mainW := m.width - listW
	if mainW < 30 {
		mainW = 30
	}

	menuBar := ui.RenderMenuBar(m.width, m.opts.Source, m.bound)

	var mainPanel string
	if b, ok := m.detailBeacon(); ok {
		key := BeaconKey(b)
		mainPanel = ui.RenderDetailPanel(b, mainW, bodyH,
			m.shared.history.Values(key), m.shared.history.LastSeen(key))
	} else {
		mainPanel = ui.RenderRegionPanel(mainW, bodyH, m.regionRows())
	}

	list := ui.RenderBeaconList(m.beacons, listW, bodyH, m.cursor)

	rows := m.regionRows()
	inside := 0
	for _, r := range rows {
		if r.State == bridge.EventRegionDidEnter || r.State == bridge.EventRegionInside {
			inside++
		}
	}
	statusBar := ui.RenderStatusBar(m.width, ui.StatusInfo{
		Bound:     m.bound,
		Beacons:   len(m.beacons),
		Regions:   len(rows),
		Inside:    inside,
		LastRange: m.lastRange,
		Err:       m.lastErr,
	})

	return ui.ComposeLayout(menuBar, mainPanel, list, statusBar)
}

// detailBeacon returns the beacon the detail panel follows, if it is still
// ranged.
func (m Model) detailBeacon() (bridge.DetectedBeacon, bool) {
	if !m.detail {
		return bridge.DetectedBeacon{}, false
	}
	for _, b := range m.beacons {
		if BeaconKey(b) == m.detailKey {
			return b, true
		}
	}
	return bridge.DetectedBeacon{}, false
}

// regionRows merges monitored and ranged regions by identifier, monitored
// first.
func (m Model) regionRows() []ui.RegionRow {
	var rows []ui.RegionRow
	index := make(map[string]int)
	add := func(p bridge.RegionPayload, monitor bool) {
		i, ok := index[p.Identifier]
		if !ok {
			index[p.Identifier] = len(rows)
			rows = append(rows, ui.RegionRow{
				ID:    p.Identifier,
				UUID:  p.UUID,
				Major: p.Major,
				Minor: p.Minor,
				State: m.shared.states[p.Identifier],
			})
			i = len(rows) - 1
		}
		if monitor {
			rows[i].Monitor = true
		} else {
			rows[i].Ranged = true
		}
	}
	for _, p := range m.monitored {
		add(p, true)
	}
	for _, p := range m.ranged {
		add(p, false)
	}
	return rows
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(config.TargetFPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func pruneCmd() tea.Cmd {
	return tea.Tick(config.BeaconTimeout, func(t time.Time) tea.Msg {
		return PruneMsg(t)
	})
}
