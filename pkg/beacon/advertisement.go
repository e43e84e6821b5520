package beacon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrMalformedAdvertisement is returned by ParseAdvertisement for truncated AD structures.
var ErrMalformedAdvertisement = errors.New("malformed advertisement data")

// TruncateIdentifier keeps the first MaxIdentifierLength characters of id and
// then trims on a rune boundary until the UTF-8 encoding fits in
// MaxIdentifierLength bytes. Truncation is silent.
func TruncateIdentifier(id string) string {
	n := 0
	for i := range id {
		if n == MaxIdentifierLength {
			id = id[:i]
			break
		}
		n++
	}
	for len(id) > MaxIdentifierLength {
		_, size := utf8.DecodeLastRuneInString(id)
		id = id[:len(id)-size]
	}
	return id
}

// Advertisement is the beacon payload. The device name is never included.
type Advertisement struct {
	ServiceUUID    uuid.UUID
	ManufacturerID uint16
	Identifier     []byte
	Connectable    bool
}

// NewAdvertisement builds a non-connectable beacon for userID.
func NewAdvertisement(userID string, service uuid.UUID, manufacturerID uint16) Advertisement {
	return Advertisement{
		ServiceUUID:    service,
		ManufacturerID: manufacturerID,
		Identifier:     []byte(TruncateIdentifier(userID)),
	}
}

// EncodedLength is the size of the AD structures Encode would produce.
// Flags are only present for connectable advertisements.
func (a Advertisement) EncodedLength() int {
	n := 2 + 16 + 2 + 2 + len(a.Identifier)
	if a.Connectable {
		n += 3
	}
	return n
}

// Encode serializes the advertisement as BLE AD structures.
func (a Advertisement) Encode() ([]byte, error) {
	if n := a.EncodedLength(); n > MaxAdvertisementSize {
		return nil, &CapabilityError{
			Op:     "encode advertisement",
			Reason: ReasonPayloadTooLarge,
			Err:    fmt.Errorf("%d bytes > %d", n, MaxAdvertisementSize),
		}
	}
	buf := make([]byte, 0, a.EncodedLength())
	if a.Connectable {
		buf = append(buf, 2, adTypeFlags, adFlagsGeneralNoBREDR)
	}
	buf = append(buf, 17, adTypeComplete128)
	buf = append(buf, reverseUUID(a.ServiceUUID)...)

	buf = append(buf, byte(3+len(a.Identifier)), adTypeManufacturerData)
	buf = binary.LittleEndian.AppendUint16(buf, a.ManufacturerID)
	buf = append(buf, a.Identifier...)
	return buf, nil
}

// ParsedAdvertisement is the decoded content of raw AD structures.
type ParsedAdvertisement struct {
	ServiceUUIDs     []uuid.UUID
	ManufacturerData map[uint16][]byte
	LocalName        string
}

// ParseAdvertisement decodes raw AD structures. Unknown types are skipped.
func ParseAdvertisement(raw []byte) (ParsedAdvertisement, error) {
	var p ParsedAdvertisement
	for i := 0; i < len(raw); {
		length := int(raw[i])
		if length == 0 {
			break
		}
		if i+1+length > len(raw) {
			return p, fmt.Errorf("%w: structure at %d overruns payload", ErrMalformedAdvertisement, i)
		}
		typ := raw[i+1]
		data := raw[i+2 : i+1+length]
		switch typ {
		case adTypeComplete128, adTypeIncomplete128:
			if len(data)%16 != 0 {
				return p, fmt.Errorf("%w: uuid list length %d", ErrMalformedAdvertisement, len(data))
			}
			for j := 0; j < len(data); j += 16 {
				p.ServiceUUIDs = append(p.ServiceUUIDs, uuidFromLE(data[j:j+16]))
			}
		case adTypeManufacturerData:
			if len(data) < 2 {
				return p, fmt.Errorf("%w: manufacturer data too short", ErrMalformedAdvertisement)
			}
			if p.ManufacturerData == nil {
				p.ManufacturerData = make(map[uint16][]byte)
			}
			id := binary.LittleEndian.Uint16(data[:2])
			p.ManufacturerData[id] = append([]byte(nil), data[2:]...)
		case adTypeShortName, adTypeCompleteName:
			p.LocalName = string(data)
		}
		i += 1 + length
	}
	return p, nil
}

// reverseUUID returns the little-endian wire order of a 128-bit UUID.
func reverseUUID(u uuid.UUID) []byte {
	out := make([]byte, 16)
	for i := range 16 {
		out[i] = u[15-i]
	}
	return out
}

func uuidFromLE(b []byte) uuid.UUID {
	var u uuid.UUID
	for i := range 16 {
		u[i] = b[15-i]
	}
	return u
}
