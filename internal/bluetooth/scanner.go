package bluetooth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// BLEScanner handles Bluetooth Low Energy scanning.
type BLEScanner struct {
	adapter *bluetooth.Adapter
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewBLEScanner creates a scanner for the given adapter name (e.g., "hci0").
// The name is only honoured on Linux; other platforms use the default adapter.
func NewBLEScanner(adapterName string, logger *slog.Logger) *BLEScanner {
	return &BLEScanner{
		adapter: openAdapter(adapterName),
		logger:  logger,
	}
}

// Start enables the adapter and scans in a goroutine until ctx is done or
// Stop is called. Every advertising report is passed to handle.
func (s *BLEScanner) Start(ctx context.Context, handle Handler) error {
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE adapter: %w (try running with sudo or setcap cap_net_admin+ep)", err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		err := s.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !s.isRunning() || ctx.Err() != nil {
				_ = adapter.StopScan()
				return
			}
			handle(toAdvertisement(result, time.Now()))
		})
		if err != nil {
			s.logger.Warn("ble scan ended", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the BLE scanner.
func (s *BLEScanner) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if wasRunning {
		_ = s.adapter.StopScan()
	}
}

func (s *BLEScanner) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func toAdvertisement(result bluetooth.ScanResult, now time.Time) Advertisement {
	adv := Advertisement{
		MAC:    result.Address.String(),
		Name:   result.LocalName(),
		RSSI:   result.RSSI,
		SeenAt: now,
	}
	for _, m := range result.ManufacturerData() {
		adv.Manufacturer = append(adv.Manufacturer, ManufacturerData{
			CompanyID: m.CompanyID,
			Data:      append([]byte(nil), m.Data...),
		})
	}
	for _, sd := range result.ServiceData() {
		if !sd.UUID.Is16Bit() {
			continue
		}
		adv.Services = append(adv.Services, ServiceData{
			UUID: sd.UUID.Get16Bit(),
			Data: append([]byte(nil), sd.Data...),
		})
	}
	if adv.Name == "" {
		adv.Name = fallbackName(adv)
	}
	return adv
}
