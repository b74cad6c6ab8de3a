package packfile_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/bhorowitz/gitgo/ginternals/packfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zlibCompress is a small helper to avoid repeating the
// compress/zlib dance in every test case.
func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zlib.NewWriter(buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// buildPack assembles a minimal but well-formed packfile around the
// given already-encoded entries (header byte(s) + payload, per entry).
func buildPack(t *testing.T, entries ...[]byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.WriteString("PACK")
	binary.Write(buf, binary.BigEndian, uint32(2)) //nolint:errcheck // bytes.Buffer never fails
	binary.Write(buf, binary.BigEndian, uint32(len(entries))) //nolint:errcheck
	for _, e := range entries {
		buf.Write(e)
	}
	// the decoder never validates the checksum, so any 20 bytes do
	buf.Write(bytes.Repeat([]byte{0xAB}, ginternals.OidSize))
	return buf.Bytes()
}

// blobEntry encodes a single non-deltified blob entry. content must be
// shorter than 16 bytes so the size fits the single metadata byte.
func blobEntry(t *testing.T, content []byte) []byte {
	t.Helper()
	require.Less(t, len(content), 16)
	header := byte(object.TypeBlob)<<4 | byte(len(content))
	buf := new(bytes.Buffer)
	buf.WriteByte(header)
	buf.Write(zlibCompress(t, content))
	return buf.Bytes()
}

func TestDecodeUndeltifiedObject(t *testing.T) {
	t.Parallel()

	content := []byte("Hello, World!")
	raw := buildPack(t, blobEntry(t, content))

	pack, err := packfile.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pack.ObjectCount())

	wantOid, err := ginternals.NewOidFromStr("5dd01c177f5d7d1be5346a5bc18a569a7410c2ef")
	require.NoError(t, err)

	o, err := pack.GetObject(wantOid)
	require.NoError(t, err)
	assert.Equal(t, object.TypeBlob, o.Type())
	assert.Equal(t, content, o.Bytes())
}

func TestDecodeRefDeltaInsert(t *testing.T) {
	t.Parallel()

	base := object.New(object.TypeBlob, []byte("Hello, World!"))
	target := []byte("Hello, Go!")

	// delta raw bytes: source size (13), target size (10), then a
	// single INSERT instruction copying all 10 bytes verbatim
	deltaRaw := new(bytes.Buffer)
	deltaRaw.WriteByte(byte(len("Hello, World!"))) // source size varint, fits in one byte
	deltaRaw.WriteByte(byte(len(target)))          // target size varint, fits in one byte
	deltaRaw.WriteByte(byte(len(target)))           // INSERT: MSB unset, low 7 bits = byte count
	deltaRaw.Write(target)

	deltaHeader := byte(object.ObjectDeltaRef)<<4 | byte(deltaRaw.Len())
	deltaEntry := new(bytes.Buffer)
	deltaEntry.WriteByte(deltaHeader)
	deltaEntry.Write(base.ID().Bytes())
	deltaEntry.Write(zlibCompress(t, deltaRaw.Bytes()))

	raw := buildPack(t, blobEntry(t, base.Bytes()), deltaEntry.Bytes())

	pack, err := packfile.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pack.ObjectCount())

	resolved := object.New(object.TypeBlob, target)
	o, err := pack.GetObject(resolved.ID())
	require.NoError(t, err)
	assert.Equal(t, target, o.Bytes())
}

func TestDecodeRefDeltaCopy(t *testing.T) {
	t.Parallel()

	base := object.New(object.TypeBlob, []byte("Hello, World!"))
	target := append(append([]byte{}, base.Bytes()...), base.Bytes()...)

	// delta raw bytes: source size (13), target size (26), then two
	// COPY instructions, each copying all 13 bytes of the base from
	// offset 0 (no offset bytes needed) for a length of 13 (one size
	// byte present)
	copyInstr := []byte{0b1001_0000, 13} // MSB set, size-byte-0 present, offset omitted
	deltaRaw := new(bytes.Buffer)
	deltaRaw.WriteByte(byte(len(base.Bytes())))
	deltaRaw.WriteByte(byte(len(target)))
	deltaRaw.Write(copyInstr)
	deltaRaw.Write(copyInstr)

	deltaHeader := byte(object.ObjectDeltaRef)<<4 | byte(deltaRaw.Len())
	deltaEntry := new(bytes.Buffer)
	deltaEntry.WriteByte(deltaHeader)
	deltaEntry.Write(base.ID().Bytes())
	deltaEntry.Write(zlibCompress(t, deltaRaw.Bytes()))

	raw := buildPack(t, blobEntry(t, base.Bytes()), deltaEntry.Bytes())

	pack, err := packfile.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	resolved := object.New(object.TypeBlob, target)
	o, err := pack.GetObject(resolved.ID())
	require.NoError(t, err)
	assert.Equal(t, target, o.Bytes())
}

func TestDecodeInvalidHeader(t *testing.T) {
	t.Parallel()

	_, err := packfile.Decode(bytes.NewReader([]byte("not a packfile at all")))
	require.Error(t, err)
	assert.ErrorIs(t, err, packfile.ErrInvalidMagic)
}

func TestWalkOids(t *testing.T) {
	t.Parallel()

	a := []byte("aaaaaaaaaaaaaaa")
	b := []byte("bbbbbbbbbbbbbbb")
	raw := buildPack(t, blobEntry(t, a[:13]), blobEntry(t, b[:13]))

	pack, err := packfile.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	t.Run("walks every object", func(t *testing.T) {
		t.Parallel()
		count := 0
		err := pack.WalkOids(func(ginternals.Oid) error {
			count++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("stops early on the sentinel error", func(t *testing.T) {
		t.Parallel()
		count := 0
		err := pack.WalkOids(func(ginternals.Oid) error {
			count++
			return packfile.OidWalkStop
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}
