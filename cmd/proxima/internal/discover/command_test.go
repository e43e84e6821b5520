package discover

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/proxima/pkg/beacon"
)

func TestNewDiscoverCommand(t *testing.T) {
	cmd := NewDiscoverCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "discover", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.Nil(t, cmd.Run)
	assert.NotNil(t, cmd.RunE)

	for _, name := range []string{"user", "no-advertise", "no-scan", "duration", "debug"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubRadio struct {
	mu       sync.Mutex
	onRecord func(beacon.ScanRecord)
	advErr   error
	stopped  bool
}

func (r *stubRadio) Advertise(beacon.Advertisement, beacon.AdvertiseSettings) error {
	return r.advErr
}

func (r *stubRadio) StopAdvertise() error { return nil }

func (r *stubRadio) Scan(_ uuid.UUID, _ beacon.ScanMode, onRecord func(beacon.ScanRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRecord = onRecord
	return nil
}

func (r *stubRadio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

func (r *stubRadio) deliver(rec beacon.ScanRecord) {
	r.mu.Lock()
	fn := r.onRecord
	r.mu.Unlock()
	fn(rec)
}

func TestRun_PrintsDedupedPeers(t *testing.T) {
	radio := &stubRadio{}
	engine := beacon.NewEngine(radio)
	service := beacon.DefaultServiceUUID
	var out syncBuffer

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, engine, service, "alice-the-long-name", options{}, &out)
	}()

	require.Eventually(t, engine.IsScanning, time.Second, 5*time.Millisecond)

	rec := beacon.ScanRecord{
		Address:          "AA:BB",
		RSSI:             -60,
		ServiceUUIDs:     []uuid.UUID{service},
		ManufacturerData: map[uint16][]byte{beacon.DefaultManufacturerID: []byte("bob")},
	}
	radio.deliver(rec)
	radio.deliver(rec)
	radio.deliver(beacon.ScanRecord{Address: "CC:DD", ServiceUUIDs: []uuid.UUID{service}})

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("CC:DD"))
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	s := out.String()
	assert.Contains(t, s, `Advertising as "alice-th"`)
	assert.Equal(t, 1, bytes.Count([]byte(s), []byte("AA:BB")))
	assert.Contains(t, s, "bob")
	assert.Contains(t, s, "(unidentified)")
	assert.False(t, engine.IsScanning())
	assert.False(t, engine.IsAdvertising())
}

func TestRun_RequiresUserToAdvertise(t *testing.T) {
	engine := beacon.NewEngine(&stubRadio{})
	err := run(context.Background(), engine, beacon.DefaultServiceUUID, "", options{}, &syncBuffer{})
	assert.ErrorContains(t, err, "no user id")
}

func TestRun_CapabilityDenied(t *testing.T) {
	radio := &stubRadio{advErr: &beacon.CapabilityError{Op: "advertise", Reason: beacon.ReasonPermission}}
	engine := beacon.NewEngine(radio)

	err := run(context.Background(), engine, beacon.DefaultServiceUUID, "alice", options{noScan: true}, &syncBuffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, beacon.ErrCapabilityDenied))
	assert.Contains(t, err.Error(), "bluetooth unavailable")
}
