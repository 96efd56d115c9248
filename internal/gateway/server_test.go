package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"beacon-bridge.klederson.com/internal/beacon"
	"beacon-bridge.klederson.com/internal/bluetooth"
	"beacon-bridge.klederson.com/internal/bridge"
	"beacon-bridge.klederson.com/internal/engine"
)

const testUUID = "2f234454-cf6d-4a0f-adf2-f4911ba9ffa6"

// --- test doubles ---

type idleSource struct{}

func (idleSource) Start(context.Context, bluetooth.Handler) error { return nil }
func (idleSource) Stop()                                          {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestServer(t *testing.T) (*Server, *bridge.Bridge) {
	t.Helper()
	srv := NewServer("127.0.0.1:0", discardLogger())
	mgr := engine.New(idleSource{}, bluetooth.MockTransmitter{Status: bluetooth.NotSupportedCannotGetAdvertiser}, discardLogger())
	b, err := bridge.New(mgr, srv, discardLogger())
	require.NoError(t, err)
	RegisterBridgeHandlers(srv, b)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = srv.Start(ctx)
	}()

	select {
	case <-srv.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("server did not start in time")
	}

	t.Cleanup(func() {
		_ = b.UnbindManager()
		_ = srv.Stop(context.Background())
	})
	return srv, b
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

// call sends a request and returns its response along with every event
// frame received before it.
func call(t *testing.T, ws *websocket.Conn, id uint64, method string, params any) (Frame, []Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req := Frame{Type: FrameTypeRequest, ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		req.Payload = data
	}
	require.NoError(t, wsjson.Write(ctx, ws, req))

	var events []Frame
	for {
		var f Frame
		require.NoError(t, wsjson.Read(ctx, ws, &f))
		if f.Type == FrameTypeEvent {
			events = append(events, f)
			continue
		}
		require.Equal(t, FrameTypeResponse, f.Type)
		require.Equal(t, id, f.ID)
		return f, events
	}
}

// --- tests ---

func TestServerLifecycle(t *testing.T) {
	srv, _ := startTestServer(t)
	require.NotEmpty(t, srv.BoundAddr())
	assert.False(t, srv.Active())

	resp, err := http.Get("http://" + srv.BoundAddr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	dialWS(t, srv.BoundAddr())
	assert.Eventually(t, srv.Active, time.Second, 5*time.Millisecond)
}

func TestUnknownMethod(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	resp, _ := call(t, ws, 1, "launchRockets", nil)
	assert.Equal(t, "rpc method not found", resp.Error)
}

func TestInvalidPayload(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	resp, _ := call(t, ws, 1, "addParser", []int{1, 2})
	assert.Contains(t, resp.Error, "rpc payload invalid: ")
}

func TestBindManagerEmitsBindStatus(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())
	require.Eventually(t, srv.Active, time.Second, 5*time.Millisecond)

	resp, events := call(t, ws, 1, "bindManager", nil)
	assert.Empty(t, resp.Error)

	var status *Frame
	for i := range events {
		if events[i].Method == bridge.EventBindStatus {
			status = &events[i]
		}
	}
	require.NotNil(t, status, "bindStatus event before the response")
	assert.JSONEq(t, `{"status":"true"}`, string(status.Payload))
}

func TestRegionCommands(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	resp, _ := call(t, ws, 1, "startMonitoring", map[string]any{"regionId": "r1", "uuid": testUUID, "major": 1})
	require.Empty(t, resp.Error)

	resp, _ = call(t, ws, 2, "startMonitoring", map[string]any{"regionId": "r1", "uuid": testUUID})
	assert.Equal(t, `region "r1" is already monitored`, resp.Error)

	resp, _ = call(t, ws, 3, "getMonitoredRegions", nil)
	assert.JSONEq(t, `[{"identifier":"r1","uuid":"`+testUUID+`","major":1}]`, string(resp.Payload))

	resp, _ = call(t, ws, 4, "stopMonitoring", map[string]any{"regionId": "r1", "uuid": testUUID, "minor": -1, "major": -1})
	require.Empty(t, resp.Error)
	resp, _ = call(t, ws, 5, "getMonitoredRegions", nil)
	assert.JSONEq(t, `[]`, string(resp.Payload))

	resp, _ = call(t, ws, 6, "startRanging", map[string]any{"regionId": "all", "uuid": ""})
	require.Empty(t, resp.Error)
	resp, _ = call(t, ws, 7, "getRangedRegions", nil)
	assert.JSONEq(t, `[{"identifier":"all","uuid":""}]`, string(resp.Payload))

	resp, events := call(t, ws, 8, "requestStateForRegion", map[string]any{"regionId": "adhoc", "uuid": testUUID})
	require.Empty(t, resp.Error)
	require.Len(t, events, 1)
	assert.Equal(t, bridge.EventRegionOutside, events[0].Method)
}

func TestParserCommands(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	resp, _ := call(t, ws, 1, "addParser", map[string]any{"layout": "m:2-3=beac,oops"})
	assert.Equal(t, "cannot parse beacon layout term: oops", resp.Error)

	batch := []string{beacon.LayoutEddystoneUID, beacon.LayoutEddystoneTLM}
	resp, _ = call(t, ws, 2, "addParsersListToDetection", map[string]any{"layouts": batch})
	require.Empty(t, resp.Error)
	var got []string
	require.NoError(t, json.Unmarshal(resp.Payload, &got))
	assert.Equal(t, batch, got)

	resp, _ = call(t, ws, 3, "removeParsersListToDetection", map[string]any{"layouts": batch})
	require.Empty(t, resp.Error)
}

func TestSettingsAndConstants(t *testing.T) {
	srv, _ := startTestServer(t)
	ws := dialWS(t, srv.BoundAddr())

	for i, method := range []string{
		"setBackgroundScanPeriod", "setBackgroundBetweenScanPeriod",
		"setForegroundScanPeriod", "setForegroundBetweenScanPeriod",
	} {
		resp, _ := call(t, ws, uint64(i+1), method, map[string]any{"period": 1500})
		assert.Empty(t, resp.Error, method)
	}

	resp, _ := call(t, ws, 10, "setRssiFilter", map[string]any{"kind": 1, "modifier": 0.2})
	assert.Empty(t, resp.Error)
	resp, _ = call(t, ws, 11, "setHardwareEqualityEnforced", map[string]any{"enabled": true})
	assert.Empty(t, resp.Error)

	resp, _ = call(t, ws, 12, "checkTransmissionSupported", nil)
	assert.Equal(t, "4", string(resp.Payload))

	resp, _ = call(t, ws, 13, "getConstants", nil)
	var constants map[string]int
	require.NoError(t, json.Unmarshal(resp.Payload, &constants))
	assert.Equal(t, 1, constants["ARMA_RSSI_FILTER"])
	assert.Equal(t, 3, constants["DEPRECATED_NOT_SUPPORTED_MULTIPLE_ADVERTISEMENTS"])
}

func TestEmitWithoutClientsIsInactive(t *testing.T) {
	srv := NewServer("127.0.0.1:0", discardLogger())
	assert.False(t, srv.Active())
	assert.NotPanics(t, func() { srv.Emit(bridge.EventBeaconsDidRange, nil) })
}
