package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"beacon-bridge.klederson.com/internal/bridge"
)

// Bridge is the command surface exposed over RPC. *bridge.Bridge
// implements it.
type Bridge interface {
	BindManager() error
	UnbindManager() error
	SetHardwareEqualityEnforced(enabled bool)
	AddParser(layout string) error
	RemoveParser(layout string) error
	AddParsersListToDetection(layouts []string) ([]string, error)
	RemoveParsersListToDetection(layouts []string) ([]string, error)
	SetBackgroundScanPeriod(ms int)
	SetBackgroundBetweenScanPeriod(ms int)
	SetForegroundScanPeriod(ms int)
	SetForegroundBetweenScanPeriod(ms int)
	SetRssiFilter(kind int, modifier float64)
	CheckTransmissionSupported() int
	GetMonitoredRegions() []bridge.RegionPayload
	GetRangedRegions() []bridge.RegionPayload
	StartMonitoring(regionID, uuid string, minor, major int) error
	StopMonitoring(regionID, uuid string, minor, major int) error
	StartRanging(regionID, uuid string) error
	StopRanging(regionID, uuid string) error
	RequestStateForRegion(regionID, uuid string, minor, major int) error
	Constants() map[string]int
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type layoutRequest struct {
	Layout string `json:"layout"`
}

type layoutsRequest struct {
	Layouts []string `json:"layouts"`
}

type periodRequest struct {
	Period int `json:"period"`
}

type rssiFilterRequest struct {
	Kind     int     `json:"kind"`
	Modifier float64 `json:"modifier"`
}

type regionRequest struct {
	RegionID string `json:"regionId"`
	UUID     string `json:"uuid"`
	Minor    *int   `json:"minor,omitempty"`
	Major    *int   `json:"major,omitempty"`
}

func (r regionRequest) minor() int { return orUnspecified(r.Minor) }
func (r regionRequest) major() int { return orUnspecified(r.Major) }

func orUnspecified(v *int) int {
	if v == nil {
		return bridge.Unspecified
	}
	return *v
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrRPCInvalidPayload, err)
	}
	return nil
}

// RegisterBridgeHandlers exposes every bridge command as an RPC method
// named after the command.
func RegisterBridgeHandlers(s *Server, b Bridge) {
	s.RegisterHandler("bindManager", noArgs(b.BindManager))
	s.RegisterHandler("unbindManager", noArgs(b.UnbindManager))

	s.RegisterHandler("setHardwareEqualityEnforced", func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req enabledRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		b.SetHardwareEqualityEnforced(req.Enabled)
		return nil, nil
	})

	s.RegisterHandler("addParser", layoutHandler(b.AddParser))
	s.RegisterHandler("removeParser", layoutHandler(b.RemoveParser))
	s.RegisterHandler("addParsersListToDetection", layoutsHandler(b.AddParsersListToDetection))
	s.RegisterHandler("removeParsersListToDetection", layoutsHandler(b.RemoveParsersListToDetection))

	s.RegisterHandler("setBackgroundScanPeriod", periodHandler(b.SetBackgroundScanPeriod))
	s.RegisterHandler("setBackgroundBetweenScanPeriod", periodHandler(b.SetBackgroundBetweenScanPeriod))
	s.RegisterHandler("setForegroundScanPeriod", periodHandler(b.SetForegroundScanPeriod))
	s.RegisterHandler("setForegroundBetweenScanPeriod", periodHandler(b.SetForegroundBetweenScanPeriod))

	s.RegisterHandler("setRssiFilter", func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req rssiFilterRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		b.SetRssiFilter(req.Kind, req.Modifier)
		return nil, nil
	})

	s.RegisterHandler("checkTransmissionSupported", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(b.CheckTransmissionSupported())
	})
	s.RegisterHandler("getMonitoredRegions", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(b.GetMonitoredRegions())
	})
	s.RegisterHandler("getRangedRegions", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(b.GetRangedRegions())
	})
	s.RegisterHandler("getConstants", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(b.Constants())
	})

	s.RegisterHandler("startMonitoring", regionHandler(func(r regionRequest) error {
		return b.StartMonitoring(r.RegionID, r.UUID, r.minor(), r.major())
	}))
	s.RegisterHandler("stopMonitoring", regionHandler(func(r regionRequest) error {
		return b.StopMonitoring(r.RegionID, r.UUID, r.minor(), r.major())
	}))
	s.RegisterHandler("requestStateForRegion", regionHandler(func(r regionRequest) error {
		return b.RequestStateForRegion(r.RegionID, r.UUID, r.minor(), r.major())
	}))
	s.RegisterHandler("startRanging", regionHandler(func(r regionRequest) error {
		return b.StartRanging(r.RegionID, r.UUID)
	}))
	s.RegisterHandler("stopRanging", regionHandler(func(r regionRequest) error {
		return b.StopRanging(r.RegionID, r.UUID)
	}))
}

func noArgs(fn func() error) RPCHandler {
	return func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, fn()
	}
}

func layoutHandler(fn func(string) error) RPCHandler {
	return func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req layoutRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return nil, fn(req.Layout)
	}
}

func layoutsHandler(fn func([]string) ([]string, error)) RPCHandler {
	return func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req layoutsRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		out, err := fn(req.Layouts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
}

func periodHandler(fn func(int)) RPCHandler {
	return func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req periodRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		fn(req.Period)
		return nil, nil
	}
}

func regionHandler(fn func(regionRequest) error) RPCHandler {
	return func(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var req regionRequest
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		return nil, fn(req)
	}
}
