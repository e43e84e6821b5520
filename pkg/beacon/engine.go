// Package beacon implements proximity discovery over Bluetooth Low Energy.
//
// The Engine broadcasts a truncated user identifier tagged with the
// discovery service UUID and scans for peers doing the same. Advertising
// and scanning are independent and may run at the same time.
package beacon

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tinyland-inc/proxima/pkg/logger"
)

// PeerBeacon is one deduplicated sighting within a scan session.
type PeerBeacon struct {
	HardwareAddress string
	ShortUserID     string // empty when Identified is false
	Identified      bool
	RSSI            int16
	SeenAt          time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithScanBuffer sets the per-session delivery buffer.
func WithScanBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.scanBuffer = n
		}
	}
}

// WithManufacturerID overrides the manufacturer tag used for the identifier.
func WithManufacturerID(id uint16) Option {
	return func(e *Engine) { e.manufacturerID = id }
}

// WithClock overrides time.Now for sighting timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the advertise and scan state for one radio.
type Engine struct {
	radio          Radio
	scanBuffer     int
	manufacturerID uint16
	now            func() time.Time

	mu          sync.Mutex
	advertising bool
	session     *ScanSession
	sessionSeq  uint64
}

// NewEngine creates an idle engine on radio.
func NewEngine(radio Radio, opts ...Option) *Engine {
	e := &Engine{
		radio:          radio,
		scanBuffer:     DefaultScanBuffer,
		manufacturerID: DefaultManufacturerID,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartAdvertising broadcasts the first MaxIdentifierLength characters of
// userID under service. Calling it while advertising replaces the payload.
func (e *Engine) StartAdvertising(userID string, service uuid.UUID) error {
	adv := NewAdvertisement(userID, service, e.manufacturerID)
	adv.Connectable = BeaconSettings.Connectable
	if _, err := adv.Encode(); err != nil {
		logger.ErrorCF("beacon", "Advertisement rejected", map[string]any{"error": err.Error()})
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.advertising {
		_ = guard("stop advertising", e.radio.StopAdvertise)
		e.advertising = false
	}

	err := guard("start advertising", func() error {
		return e.radio.Advertise(adv, BeaconSettings)
	})
	if err != nil {
		logger.ErrorCF("beacon", "Advertising failed to start", errFields(err))
		return err
	}
	e.advertising = true
	logger.InfoCF("beacon", "Advertising started", map[string]any{
		"service":    service.String(),
		"identifier": string(adv.Identifier),
	})
	return nil
}

// StopAdvertising releases the broadcast. Safe to call when idle.
func (e *Engine) StopAdvertising() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.advertising {
		return nil
	}
	e.advertising = false
	if err := guard("stop advertising", e.radio.StopAdvertise); err != nil {
		logger.WarnCF("beacon", "Stop advertising failed", errFields(err))
		return err
	}
	logger.InfoC("beacon", "Advertising stopped")
	return nil
}

// IsAdvertising reports whether a broadcast is active.
func (e *Engine) IsAdvertising() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advertising
}

// StartScanning begins a fresh scan session filtered to service. An active
// session is stopped first, so every call starts with an empty dedup set.
func (e *Engine) StartScanning(service uuid.UUID) (*ScanSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		e.stopScanLocked()
	}

	e.sessionSeq++
	s := newScanSession(e.sessionSeq, service, e.manufacturerID, e.scanBuffer, e.now)
	err := guard("start scan", func() error {
		return e.radio.Scan(service, ScanLowLatency, s.handle)
	})
	if err != nil {
		s.close()
		logger.ErrorCF("beacon", "Scan failed to start", errFields(err))
		return nil, err
	}
	e.session = s
	logger.InfoCF("beacon", "Scan started", map[string]any{
		"service": service.String(),
		"session": s.ID(),
	})
	return s, nil
}

// StopScanning ends the active session and clears its dedup set. Safe to call when idle.
func (e *Engine) StopScanning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopScanLocked()
}

func (e *Engine) stopScanLocked() {
	if e.session == nil {
		return
	}
	if err := guard("stop scan", e.radio.StopScan); err != nil {
		logger.WarnCF("beacon", "Stop scan failed", errFields(err))
	}
	e.session.close()
	logger.InfoCF("beacon", "Scan stopped", map[string]any{
		"session":   e.session.ID(),
		"delivered": e.session.Delivered(),
	})
	e.session = nil
}

// IsScanning reports whether a scan session is active.
func (e *Engine) IsScanning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// Close stops both activities.
func (e *Engine) Close() {
	_ = e.StopAdvertising()
	e.StopScanning()
}

// ScanSession delivers each hardware address at most once.
type ScanSession struct {
	id             uint64
	service        uuid.UUID
	manufacturerID uint16
	now            func() time.Time

	mu        sync.Mutex
	seen      map[string]struct{}
	peers     chan PeerBeacon
	done      chan struct{}
	closed    bool
	delivered int
}

func newScanSession(id uint64, service uuid.UUID, manufacturerID uint16, buffer int, now func() time.Time) *ScanSession {
	return &ScanSession{
		id:             id,
		service:        service,
		manufacturerID: manufacturerID,
		now:            now,
		seen:           make(map[string]struct{}),
		peers:          make(chan PeerBeacon, buffer),
		done:           make(chan struct{}),
	}
}

// ID identifies the session within its engine.
func (s *ScanSession) ID() uint64 { return s.id }

// Peers yields new sightings; it is closed when the session ends.
func (s *ScanSession) Peers() <-chan PeerBeacon { return s.peers }

// Done is closed when the session ends.
func (s *ScanSession) Done() <-chan struct{} { return s.done }

// Delivered returns how many peers have been handed to the consumer.
func (s *ScanSession) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

func (s *ScanSession) handle(rec ScanRecord) {
	if len(rec.ServiceUUIDs) > 0 && !rec.HasService(s.service) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if _, dup := s.seen[rec.Address]; dup {
		return
	}

	peer := decodePeer(rec, s.manufacturerID, s.now())
	select {
	case s.peers <- peer:
		s.seen[rec.Address] = struct{}{}
		s.delivered++
		logger.DebugCF("beacon", "Peer discovered", map[string]any{
			"address":    peer.HardwareAddress,
			"identifier": peer.ShortUserID,
			"rssi":       peer.RSSI,
		})
	default:
		// not marked seen, so a later sighting can still be delivered
		logger.WarnCF("beacon", "Scan consumer is behind, sighting dropped", map[string]any{
			"address": rec.Address,
		})
	}
}

func (s *ScanSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	clear(s.seen)
	close(s.peers)
	close(s.done)
}

// decodePeer reads the identifier from the manufacturerID segment. A missing
// or non-UTF-8 segment yields an unidentified peer, which is still delivered.
func decodePeer(rec ScanRecord, manufacturerID uint16, at time.Time) PeerBeacon {
	p := PeerBeacon{
		HardwareAddress: rec.Address,
		RSSI:            rec.RSSI,
		SeenAt:          at,
	}
	if data, ok := rec.ManufacturerData[manufacturerID]; ok && len(data) > 0 && utf8.Valid(data) {
		p.ShortUserID = string(data)
		p.Identified = true
	}
	return p
}

// guard runs a radio call and turns panics into TransportError.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransportError{Op: op, Code: CodeInternal, Err: fmt.Errorf("radio panic: %v", r)}
		}
	}()
	return classify(op, fn())
}

func errFields(err error) map[string]any {
	f := map[string]any{"error": err.Error()}
	if t, ok := err.(*TransportError); ok {
		f["code"] = t.Code
	}
	return f
}
