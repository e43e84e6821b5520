package beacon

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeRadio struct {
	mu          sync.Mutex
	advertised  []Advertisement
	settings    AdvertiseSettings
	stopAdv     int
	stopScan    int
	onRecord    func(ScanRecord)
	advertErr   error
	scanErr     error
	panicOnScan bool
}

func (r *fakeRadio) Advertise(adv Advertisement, s AdvertiseSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.advertErr != nil {
		return r.advertErr
	}
	r.advertised = append(r.advertised, adv)
	r.settings = s
	return nil
}

func (r *fakeRadio) StopAdvertise() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopAdv++
	return nil
}

func (r *fakeRadio) Scan(_ uuid.UUID, _ ScanMode, onRecord func(ScanRecord)) error {
	if r.panicOnScan {
		panic("stack exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanErr != nil {
		return r.scanErr
	}
	r.onRecord = onRecord
	return nil
}

func (r *fakeRadio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopScan++
	return nil
}

func (r *fakeRadio) emit(rec ScanRecord) {
	r.mu.Lock()
	fn := r.onRecord
	r.mu.Unlock()
	fn(rec)
}

func sighting(addr, id string) ScanRecord {
	rec := ScanRecord{Address: addr, RSSI: -50, ServiceUUIDs: []uuid.UUID{DefaultServiceUUID}}
	if id != "" {
		rec.ManufacturerData = map[uint16][]byte{DefaultManufacturerID: []byte(id)}
	}
	return rec
}

func drain(s *ScanSession) []PeerBeacon {
	var out []PeerBeacon
	for {
		select {
		case p, ok := <-s.Peers():
			if !ok {
				return out
			}
			out = append(out, p)
		case <-time.After(20 * time.Millisecond):
			return out
		}
	}
}

func TestEngine_StartAdvertisingTruncates(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	if err := e.StartAdvertising("abcdefghij", DefaultServiceUUID); err != nil {
		t.Fatalf("StartAdvertising() error: %v", err)
	}
	if !e.IsAdvertising() {
		t.Error("expected advertising")
	}
	got := string(radio.advertised[0].Identifier)
	if got != "abcdefgh" {
		t.Errorf("identifier: got %q, want %q", got, "abcdefgh")
	}
	if radio.settings != BeaconSettings {
		t.Errorf("settings: got %+v, want %+v", radio.settings, BeaconSettings)
	}
}

func TestEngine_StartAdvertisingCapabilityDenied(t *testing.T) {
	radio := &fakeRadio{advertErr: &CapabilityError{Op: "advertise", Reason: ReasonPermission}}
	e := NewEngine(radio)

	err := e.StartAdvertising("user", DefaultServiceUUID)
	if !errors.Is(err, ErrCapabilityDenied) {
		t.Fatalf("expected ErrCapabilityDenied, got %v", err)
	}
	if e.IsAdvertising() {
		t.Error("should not be advertising after failure")
	}
}

func TestEngine_StartAdvertisingPlatformErrorIsTransport(t *testing.T) {
	radio := &fakeRadio{advertErr: errors.New("too many advertisers")}
	e := NewEngine(radio)

	err := e.StartAdvertising("user", DefaultServiceUUID)
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if tErr.Code != CodeInternal {
		t.Errorf("code: got %d, want %d", tErr.Code, CodeInternal)
	}
}

func TestEngine_StopAdvertisingIdempotent(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	if err := e.StopAdvertising(); err != nil {
		t.Fatalf("stop while idle: %v", err)
	}
	_ = e.StartAdvertising("user", DefaultServiceUUID)
	_ = e.StopAdvertising()
	_ = e.StopAdvertising()
	if radio.stopAdv != 1 {
		t.Errorf("radio stop calls: got %d, want 1", radio.stopAdv)
	}
}

func TestEngine_ScanDeduplicatesByAddress(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	s, err := e.StartScanning(DefaultServiceUUID)
	if err != nil {
		t.Fatalf("StartScanning() error: %v", err)
	}
	radio.emit(sighting("AA:BB", "alice"))
	radio.emit(sighting("AA:BB", "glitch"))
	radio.emit(sighting("CC:DD", "bob"))

	peers := drain(s)
	if len(peers) != 2 {
		t.Fatalf("peers: got %d, want 2", len(peers))
	}
	if peers[0].HardwareAddress != "AA:BB" || peers[0].ShortUserID != "alice" {
		t.Errorf("first peer: got %+v, want AA:BB/alice", peers[0])
	}
	if peers[1].ShortUserID != "bob" {
		t.Errorf("second peer: got %q, want bob", peers[1].ShortUserID)
	}
}

func TestEngine_UnidentifiedPeerStillDelivered(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	s, _ := e.StartScanning(DefaultServiceUUID)
	radio.emit(sighting("AA:BB", ""))

	peers := drain(s)
	if len(peers) != 1 {
		t.Fatalf("peers: got %d, want 1", len(peers))
	}
	if peers[0].Identified || peers[0].ShortUserID != "" {
		t.Errorf("expected unidentified peer, got %+v", peers[0])
	}
}

func TestEngine_ForeignServiceIgnored(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	s, _ := e.StartScanning(DefaultServiceUUID)
	rec := sighting("AA:BB", "x")
	rec.ServiceUUIDs = []uuid.UUID{uuid.New()}
	radio.emit(rec)

	if peers := drain(s); len(peers) != 0 {
		t.Errorf("expected no peers, got %v", peers)
	}
}

func TestEngine_RestartClearsDedup(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	first, _ := e.StartScanning(DefaultServiceUUID)
	radio.emit(sighting("AA:BB", "alice"))
	e.StopScanning()
	if got := len(drain(first)); got != 1 {
		t.Fatalf("first session peers: got %d, want 1", got)
	}
	select {
	case <-first.Done():
	default:
		t.Error("first session should be done after StopScanning")
	}

	second, _ := e.StartScanning(DefaultServiceUUID)
	radio.emit(sighting("AA:BB", "alice"))
	if got := len(drain(second)); got != 1 {
		t.Errorf("second session peers: got %d, want 1", got)
	}
	if second.ID() == first.ID() {
		t.Error("expected a new session id")
	}
}

func TestEngine_StopScanningIdempotent(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	e.StopScanning()
	_, _ = e.StartScanning(DefaultServiceUUID)
	e.StopScanning()
	e.StopScanning()
	if radio.stopScan != 1 {
		t.Errorf("radio stop calls: got %d, want 1", radio.stopScan)
	}
	if e.IsScanning() {
		t.Error("expected idle")
	}
}

func TestEngine_ScanPanicIsReported(t *testing.T) {
	e := NewEngine(&fakeRadio{panicOnScan: true})

	_, err := e.StartScanning(DefaultServiceUUID)
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected TransportError from panicking radio, got %v", err)
	}
	if e.IsScanning() {
		t.Error("should not be scanning after failure")
	}
}

func TestEngine_ScanStartErrorKeepsCode(t *testing.T) {
	radio := &fakeRadio{scanErr: &TransportError{Op: "scan", Code: CodeAlreadyStarted}}
	e := NewEngine(radio)

	_, err := e.StartScanning(DefaultServiceUUID)
	var tErr *TransportError
	if !errors.As(err, &tErr) || tErr.Code != CodeAlreadyStarted {
		t.Errorf("expected code %d, got %v", CodeAlreadyStarted, err)
	}
}

func TestEngine_FullBufferDoesNotMarkSeen(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio, WithScanBuffer(1))

	s, _ := e.StartScanning(DefaultServiceUUID)
	radio.emit(sighting("AA:BB", "alice"))
	radio.emit(sighting("CC:DD", "bob")) // dropped, buffer full

	<-s.Peers()
	radio.emit(sighting("CC:DD", "bob"))
	p := <-s.Peers()
	if p.HardwareAddress != "CC:DD" {
		t.Errorf("expected retry of dropped sighting, got %+v", p)
	}
}

func TestEngine_AdvertiseAndScanIndependent(t *testing.T) {
	radio := &fakeRadio{}
	e := NewEngine(radio)

	_ = e.StartAdvertising("me", DefaultServiceUUID)
	_, _ = e.StartScanning(DefaultServiceUUID)
	e.StopScanning()
	if !e.IsAdvertising() {
		t.Error("stopping scan should not stop advertising")
	}
	e.Close()
	if e.IsAdvertising() || e.IsScanning() {
		t.Error("expected idle after Close")
	}
}
