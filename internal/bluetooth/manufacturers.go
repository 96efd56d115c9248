package bluetooth

// Company identifiers that show up in beacon manufacturer data.
// See: https://www.bluetooth.com/specifications/assigned-numbers/
const (
	CompanyApple     uint16 = 0x004C
	CompanyRadius    uint16 = 0x0118
	CompanyEstimote  uint16 = 0x015D
	CompanyKontakt   uint16 = 0x0DE6
	CompanyGoogle    uint16 = 0x00E0
	CompanyNordic    uint16 = 0x0059
	CompanyRuuvi     uint16 = 0x0499
	CompanyEspressif uint16 = 0x02E5
)

// 16-bit service UUIDs used by service data beacons.
const (
	ServiceEddystone uint16 = 0xFEAA
	ServiceEstimote  uint16 = 0xFE9A
	ServiceKontakt   uint16 = 0xFE6A
	ServiceExposure  uint16 = 0xFD6F
)

// LookupManufacturer returns a human-readable name for a Bluetooth SIG company ID.
func LookupManufacturer(companyID uint16) string {
	return companyNames[companyID]
}

// LookupService returns the name of the beacon family behind a 16-bit
// service UUID.
func LookupService(uuid uint16) string {
	return serviceNames[uuid]
}

var companyNames = map[uint16]string{
	CompanyApple:     "Apple",
	CompanyRadius:    "Radius",
	CompanyEstimote:  "Estimote",
	CompanyKontakt:   "Kontakt.io",
	CompanyGoogle:    "Google",
	CompanyNordic:    "Nordic",
	CompanyRuuvi:     "Ruuvi",
	CompanyEspressif: "Espressif",
	0x0006:           "Microsoft",
	0x0075:           "Samsung",
	0x000D:           "Texas Inst.",
	0x02FF:           "Tile",
	0x0822:           "Tuya/Govee",
	0x0157:           "Huawei",
	0x0310:           "Xiaomi",
	0x0171:           "Amazon",
	0x0131:           "Cypress",
	0x0030:           "ST Micro",
	0x0158:           "Anhui Huami",
	0x00D7:           "Qualcomm Tech.",
	0x0247:           "Gimbal",
	0x0399:           "Minew",
	0x0A12:           "Blue Up",
}

var serviceNames = map[uint16]string{
	ServiceEddystone: "Eddystone",
	ServiceEstimote:  "Estimote",
	ServiceKontakt:   "Kontakt.io",
	ServiceExposure:  "Exposure Notification",
}
