package bluetooth

import (
	"strings"
	"time"
)

// ManufacturerData is one manufacturer specific AD structure.
type ManufacturerData struct {
	CompanyID uint16
	Data      []byte
}

// PDU returns the AD payload as broadcast: little-endian company ID followed
// by the data.
func (m ManufacturerData) PDU() []byte {
	pdu := make([]byte, 0, 2+len(m.Data))
	pdu = append(pdu, byte(m.CompanyID), byte(m.CompanyID>>8))
	return append(pdu, m.Data...)
}

// ServiceData is one 16-bit service data AD structure.
type ServiceData struct {
	UUID uint16
	Data []byte
}

// PDU returns the AD payload as broadcast: little-endian service UUID
// followed by the data.
func (s ServiceData) PDU() []byte {
	pdu := make([]byte, 0, 2+len(s.Data))
	pdu = append(pdu, byte(s.UUID), byte(s.UUID>>8))
	return append(pdu, s.Data...)
}

// Advertisement is a single received advertising report.
type Advertisement struct {
	MAC          string
	Name         string
	RSSI         int16
	Manufacturer []ManufacturerData
	Services     []ServiceData
	SeenAt       time.Time
}

// Handler receives advertisements from a scanner. It is called from the
// scanner goroutine and must not block.
type Handler func(Advertisement)

// DisplayName returns the advertised name, a vendor based fallback or
// "[unnamed]".
func (a Advertisement) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if name := fallbackName(a); name != "" {
		return name
	}
	return "[unnamed]"
}

// fallbackName identifies a device by the vendor of its first manufacturer
// or service data element plus the last two octets of its address.
func fallbackName(a Advertisement) string {
	vendor := ""
	if len(a.Manufacturer) > 0 {
		vendor = LookupManufacturer(a.Manufacturer[0].CompanyID)
	}
	if vendor == "" && len(a.Services) > 0 {
		vendor = LookupService(a.Services[0].UUID)
	}
	if vendor == "" {
		return ""
	}
	suffix := a.MAC
	if len(suffix) >= 17 {
		suffix = suffix[12:] // "EE:FF"
	}
	return vendor + " " + strings.ToUpper(suffix)
}
