package bluetooth

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TransmissionStatus reports whether this host can act as a beacon. The
// numeric values are exported to callers and must not be reordered.
type TransmissionStatus int

const (
	TransmissionSupported TransmissionStatus = iota
	NotSupportedMinSDK
	NotSupportedBLE
	DeprecatedNotSupportedMultipleAdvertisements
	NotSupportedCannotGetAdvertiser
	NotSupportedCannotGetAdvertiserMultipleAdvertisements
)

// TransmissionStatuses lists every status in code order.
var TransmissionStatuses = []TransmissionStatus{
	TransmissionSupported,
	NotSupportedMinSDK,
	NotSupportedBLE,
	DeprecatedNotSupportedMultipleAdvertisements,
	NotSupportedCannotGetAdvertiser,
	NotSupportedCannotGetAdvertiserMultipleAdvertisements,
}

func (s TransmissionStatus) String() string {
	switch s {
	case TransmissionSupported:
		return "SUPPORTED"
	case NotSupportedMinSDK:
		return "NOT_SUPPORTED_MIN_SDK"
	case NotSupportedBLE:
		return "NOT_SUPPORTED_BLE"
	case DeprecatedNotSupportedMultipleAdvertisements:
		return "DEPRECATED_NOT_SUPPORTED_MULTIPLE_ADVERTISEMENTS"
	case NotSupportedCannotGetAdvertiser:
		return "NOT_SUPPORTED_CANNOT_GET_ADVERTISER"
	case NotSupportedCannotGetAdvertiserMultipleAdvertisements:
		return "NOT_SUPPORTED_CANNOT_GET_ADVERTISER_MULTIPLE_ADVERTISEMENTS"
	default:
		return fmt.Sprintf("TransmissionStatus(%d)", int(s))
	}
}

// BLETransmitter probes the local adapter for advertising support.
type BLETransmitter struct {
	adapter *bluetooth.Adapter

	once   sync.Once
	status TransmissionStatus
}

// NewBLETransmitter creates a probe for the named adapter.
func NewBLETransmitter(adapterName string) *BLETransmitter {
	return &BLETransmitter{adapter: openAdapter(adapterName)}
}

// TransmissionStatus enables the adapter and asks it for an advertisement
// handle. The result is cached.
func (t *BLETransmitter) TransmissionStatus() TransmissionStatus {
	t.once.Do(func() {
		if err := t.adapter.Enable(); err != nil {
			t.status = NotSupportedBLE
			return
		}
		if t.adapter.DefaultAdvertisement() == nil {
			t.status = NotSupportedCannotGetAdvertiser
			return
		}
		t.status = TransmissionSupported
	})
	return t.status
}

// MockTransmitter reports a fixed status.
type MockTransmitter struct {
	Status TransmissionStatus
}

func (t MockTransmitter) TransmissionStatus() TransmissionStatus {
	return t.Status
}
