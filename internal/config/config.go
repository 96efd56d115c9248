package config

import "time"

const (
	// RSSI to distance estimation
	MeasuredPower = -59.0 // RSSI at 1 meter (dBm), used when a beacon carries no tx power
	PathLossExp   = 2.5   // Path loss exponent (N)

	// Proximity classification
	ImmediateRange    = 1.0   // meters
	NearRange         = 3.0   // meters
	UnknownDistance   = -1.0  // distance reported when RSSI is unavailable
	NonFiniteDistance = 999.0 // replaces NaN/Inf distances at the bridge boundary

	// Scan scheduling defaults
	ForegroundScanPeriod        = 1100 * time.Millisecond
	ForegroundBetweenScanPeriod = time.Duration(0)
	BackgroundScanPeriod        = 10 * time.Second
	BackgroundBetweenScanPeriod = 5 * time.Minute
	MinScanPeriod               = 10 * time.Millisecond // shorter scan periods are raised to this

	// RSSI filters
	RunningAverageSampleExpiration = 20 * time.Second
	RunningAverageTrim             = 0.1 // fraction dropped at both ends before averaging
	ArmaSpeed                      = 0.1

	// Beacon and region tracking
	BeaconTimeout    = 30 * time.Second // Remove beacons not seen for this long
	RegionExitPeriod = 10 * time.Second // Region is exited when nothing matched for this long

	// Caller boundary
	EventQueueSize = 64 // per WebSocket client, events beyond it are dropped
	MQTTQoS        = 0

	// Demo mode
	DemoEmitInterval = 200 * time.Millisecond
	DemoUUID         = "2f234454-cf6d-4a0f-adf2-f4911ba9ffa6"

	// Watcher
	RSSIHistoryLen = 60
	TargetFPS      = 10

	// App
	AppName    = "BEACON-BRIDGE"
	AppVersion = "1.0"
)
