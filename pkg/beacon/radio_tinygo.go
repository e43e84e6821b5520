package beacon

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"

	"github.com/tinyland-inc/proxima/pkg/logger"
)

// scanStartWindow is how long Scan waits for the stack to reject a scan
// before treating it as started.
const scanStartWindow = 150 * time.Millisecond

// TinyGoRadio drives the host adapter through tinygo.org/x/bluetooth.
// The stack exposes neither transmit power nor connectability, so those
// settings are best effort; the interval follows AdvertiseSettings.Mode.
type TinyGoRadio struct {
	adapter *bluetooth.Adapter

	mu         sync.Mutex
	enabled    bool
	adv        *bluetooth.Advertisement
	configured []byte
	scanErr    chan error
}

// NewTinyGoRadio wraps adapter, or bluetooth.DefaultAdapter when nil.
func NewTinyGoRadio(adapter *bluetooth.Adapter) *TinyGoRadio {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	return &TinyGoRadio{adapter: adapter}
}

func (r *TinyGoRadio) enable(op string) error {
	if r.enabled {
		return nil
	}
	if err := r.adapter.Enable(); err != nil {
		return &CapabilityError{Op: op, Reason: ReasonRadioDisabled, Err: err}
	}
	r.enabled = true
	return nil
}

func (r *TinyGoRadio) Advertise(adv Advertisement, settings AdvertiseSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enable("advertise"); err != nil {
		return err
	}
	service, err := bluetooth.ParseUUID(adv.ServiceUUID.String())
	if err != nil {
		return &TransportError{Op: "advertise", Code: CodeInternal, Err: err}
	}

	if r.adv == nil {
		r.adv = r.adapter.DefaultAdvertisement()
	}
	// BlueZ cannot reconfigure an advertisement, so only configure on change.
	if r.configured == nil || string(r.configured) != string(adv.Identifier) {
		err = r.adv.Configure(bluetooth.AdvertisementOptions{
			ServiceUUIDs: []bluetooth.UUID{service},
			Interval:     bluetooth.NewDuration(intervalFor(settings.Mode)),
			ManufacturerData: []bluetooth.ManufacturerDataElement{
				{CompanyID: adv.ManufacturerID, Data: adv.Identifier},
			},
		})
		if err != nil {
			return &TransportError{Op: "advertise", Code: CodeRegistration, Err: err}
		}
		r.configured = append([]byte(nil), adv.Identifier...)
	}
	if err := r.adv.Start(); err != nil {
		return &TransportError{Op: "advertise", Code: CodeInternal, Err: err}
	}
	return nil
}

func (r *TinyGoRadio) StopAdvertise() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adv == nil {
		return nil
	}
	return r.adv.Stop()
}

func (r *TinyGoRadio) Scan(service uuid.UUID, _ ScanMode, onRecord func(ScanRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enable("scan"); err != nil {
		return err
	}
	if r.scanErr != nil {
		return &TransportError{Op: "scan", Code: CodeAlreadyStarted, Err: errors.New("scan already running")}
	}
	filter, err := bluetooth.ParseUUID(service.String())
	if err != nil {
		return &TransportError{Op: "scan", Code: CodeInternal, Err: err}
	}

	done := make(chan error, 1)
	r.scanErr = done
	go func() {
		done <- r.adapter.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
			if !res.HasServiceUUID(filter) {
				return
			}
			rec := ScanRecord{
				Address:      res.Address.String(),
				RSSI:         res.RSSI,
				ServiceUUIDs: []uuid.UUID{service},
			}
			for _, md := range res.ManufacturerData() {
				if rec.ManufacturerData == nil {
					rec.ManufacturerData = make(map[uint16][]byte)
				}
				rec.ManufacturerData[md.CompanyID] = md.Data
			}
			onRecord(rec)
		})
	}()

	select {
	case err := <-done:
		r.scanErr = nil
		if err == nil {
			err = errors.New("scan ended immediately")
		}
		return &TransportError{Op: "scan", Code: CodeRegistration, Err: err}
	case <-time.After(scanStartWindow):
		return nil
	}
}

func (r *TinyGoRadio) StopScan() error {
	r.mu.Lock()
	done := r.scanErr
	r.scanErr = nil
	r.mu.Unlock()

	if done == nil {
		return nil
	}
	if err := r.adapter.StopScan(); err != nil {
		return fmt.Errorf("stop scan: %w", err)
	}
	if err := <-done; err != nil {
		logger.DebugCF("beacon", "Scan loop returned", map[string]any{"error": err.Error()})
	}
	return nil
}

func intervalFor(mode AdvertiseMode) time.Duration {
	switch mode {
	case AdvertiseLowLatency:
		return LowLatencyInterval
	case AdvertiseBalanced:
		return 250 * time.Millisecond
	default:
		return time.Second
	}
}

var _ Radio = (*TinyGoRadio)(nil)
