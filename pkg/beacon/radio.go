package beacon

import (
	"slices"

	"github.com/google/uuid"
)

// AdvertiseSettings are the broadcast parameters requested from the radio.
type AdvertiseSettings struct {
	Mode        AdvertiseMode
	TxPower     TxPower
	Connectable bool
}

// BeaconSettings is what the engine always asks for: low latency,
// non-connectable, maximum transmit power.
var BeaconSettings = AdvertiseSettings{
	Mode:        AdvertiseLowLatency,
	TxPower:     TxPowerHigh,
	Connectable: false,
}

// ScanRecord is one advertisement observed by the radio.
type ScanRecord struct {
	Address          string
	RSSI             int16
	ServiceUUIDs     []uuid.UUID
	ManufacturerData map[uint16][]byte
}

// HasService reports whether the record advertises service.
func (r ScanRecord) HasService(service uuid.UUID) bool {
	return slices.Contains(r.ServiceUUIDs, service)
}

// RecordFromRaw builds a ScanRecord from raw AD structures.
func RecordFromRaw(address string, rssi int16, raw []byte) (ScanRecord, error) {
	p, err := ParseAdvertisement(raw)
	if err != nil {
		return ScanRecord{}, err
	}
	return ScanRecord{
		Address:          address,
		RSSI:             rssi,
		ServiceUUIDs:     p.ServiceUUIDs,
		ManufacturerData: p.ManufacturerData,
	}, nil
}

// Radio is the platform Bluetooth stack as seen by the Engine.
//
// Scan must return once scanning has started (or failed to start) and then
// deliver records to onRecord from any goroutine until StopScan.
type Radio interface {
	Advertise(adv Advertisement, settings AdvertiseSettings) error
	StopAdvertise() error
	Scan(service uuid.UUID, mode ScanMode, onRecord func(ScanRecord)) error
	StopScan() error
}
