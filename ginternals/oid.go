package ginternals

import (
	"crypto/sha1" //nolint:gosec // sha1 is the hash git uses for object ids
	"encoding/hex"
	"errors"
)

// OidSize is the length of an Oid, in bytes
const OidSize = 20

var (
	// NullOid is the value of an empty Oid, or one that's all 0s
	NullOid = Oid{}

	// ErrInvalidOid is returned when a given value isn't a valid Oid
	ErrInvalidOid = errors.New("invalid Oid")
)

// Oid represents the ID of a git object: the SHA-1 digest of its
// uncompressed, header-prefixed payload.
type Oid [OidSize]byte

// Bytes returns the raw Oid as []byte.
// This is different from doing []byte(oid.String()):
// For the oid 642480605b8b0fd464ab5762e044269cf29a60a3:
//   oid.Bytes(): []byte{0x64, 0x24, 0x80, ...}
//   []byte(oid.String()): []byte{'6', '4', '2', '4', '8', '0', ...}
func (o Oid) Bytes() []byte {
	return o[:]
}

// String returns the 40-character lowercase hex representation of the Oid
func (o Oid) String() string {
	return hex.EncodeToString(o[:])
}

// IsZero returns whether the oid has the zero value (NullOid)
func (o Oid) IsZero() bool {
	return o == NullOid
}

// NewOidFromContent returns the Oid of the given content.
// The oid is the SHA-1 sum of the content (which, for a stored object,
// is the header-prefixed payload — callers are responsible for building
// that payload before calling this).
func NewOidFromContent(data []byte) Oid {
	return sha1.Sum(data) //nolint:gosec
}

// NewOidFromHex returns an Oid from the provided byte-encoded (raw, not
// hex-string) oid, such as the 20 raw bytes following a tree entry name.
func NewOidFromHex(id []byte) (Oid, error) {
	if len(id) < OidSize {
		return NullOid, ErrInvalidOid
	}
	var oid Oid
	copy(oid[:], id)
	return oid, nil
}

// NewOidFromChars creates an Oid from the given char bytes.
// For the SHA {'9', 'b', '9', '1', 'd', 'a', ...} the oid will be
// {0x9b, 0x91, 0xda, ...}
func NewOidFromChars(id []byte) (Oid, error) {
	return NewOidFromStr(string(id))
}

// NewOidFromStr creates an Oid from the given hex string.
// For the SHA "9b91da06e69613397b38e0808e0ba5ee6983251b" the oid will be
// {0x9b, 0x91, 0xda, ...}
func NewOidFromStr(id string) (Oid, error) {
	b, err := hex.DecodeString(id)
	if err != nil {
		return NullOid, ErrInvalidOid
	}
	if len(b) != OidSize {
		return NullOid, ErrInvalidOid
	}
	var oid Oid
	copy(oid[:], b)
	return oid, nil
}
