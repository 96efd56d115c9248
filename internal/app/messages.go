package app

import (
	"time"

	"beacon-bridge.klederson.com/internal/bridge"
)

// TickMsg triggers a frame update.
type TickMsg time.Time

// PruneMsg triggers RSSI history pruning.
type PruneMsg time.Time

// EventMsg carries one bridge event into the model.
type EventMsg struct {
	Name    string
	Payload any
}

// CommandErrMsg reports a failed bridge command.
type CommandErrMsg struct {
	Err error
}

// regionsMsg refreshes the region table after region commands ran.
type regionsMsg struct {
	monitored []bridge.RegionPayload
	ranged    []bridge.RegionPayload
}
