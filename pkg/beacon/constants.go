package beacon

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxIdentifierLength is the number of characters of the user id carried in a beacon.
	MaxIdentifierLength = 8
	// MaxAdvertisementSize is the legacy BLE advertising PDU data budget.
	MaxAdvertisementSize = 31

	// DefaultManufacturerID tags the manufacturer-specific segment holding the identifier.
	DefaultManufacturerID = uint16(0x00FF)

	// LowLatencyInterval mirrors the platform "low latency" advertise mode.
	LowLatencyInterval = 100 * time.Millisecond

	DefaultScanBuffer = 64
)

// DefaultServiceUUID identifies the proxima discovery protocol.
var DefaultServiceUUID = uuid.MustParse("6e7f0001-5a1c-4b8e-9d3f-b1e5c0a7d2f4")

// AD structure types used in the advertisement payload.
const (
	adTypeFlags            = 0x01
	adTypeIncomplete128    = 0x06
	adTypeComplete128      = 0x07
	adTypeShortName        = 0x08
	adTypeCompleteName     = 0x09
	adTypeManufacturerData = 0xFF

	adFlagsGeneralNoBREDR = 0x06
)

// AdvertiseMode selects the broadcast interval class.
type AdvertiseMode int

const (
	AdvertiseLowPower AdvertiseMode = iota
	AdvertiseBalanced
	AdvertiseLowLatency
)

// TxPower selects the transmit power class.
type TxPower int

const (
	TxPowerUltraLow TxPower = iota
	TxPowerLow
	TxPowerMedium
	TxPowerHigh
)

// ScanMode selects the scan duty cycle class.
type ScanMode int

const (
	ScanLowPower ScanMode = iota
	ScanBalanced
	ScanLowLatency
)
