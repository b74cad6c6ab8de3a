// Package packfile contains methods and structs to read and decode
// packfiles.
//
// Unlike an on-disk .idx-backed reader, Pack decodes a packfile in a
// single sequential pass over an io.Reader: every object (including
// deltas) is resolved the moment it's read, in stream order, and kept
// in memory so later entries can find their base without seeking. This
// is the shape a packfile actually arrives in during a clone: a stream
// of bytes read off an HTTP response body, with no companion index and
// no ability to seek backwards.
package packfile

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"io"

	"github.com/bhorowitz/gitgo/ginternals"
	"github.com/bhorowitz/gitgo/ginternals/object"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

const (
	// packfileHeaderSize is the size of a packfile's header: 4 bytes of
	// magic, 4 bytes of version, 4 bytes of object count.
	packfileHeaderSize = 12

	// ExtPackfile is the extension used by packfiles on disk.
	ExtPackfile = ".pack"
	// ExtIndex is the extension historically used by a packfile's
	// companion index. This decoder doesn't use or produce one.
	ExtIndex = ".idx"
)

func packfileMagic() []byte {
	return []byte{'P', 'A', 'C', 'K'}
}

func packfileVersion() []byte {
	return []byte{0, 0, 0, 2}
}

var (
	// ErrIntOverflow is an error thrown when the packfile couldn't
	// be parsed because some data couldn't fit in an int64
	ErrIntOverflow = errors.New("int64 overflow")
	// ErrInvalidMagic is an error thrown when a file doesn't have
	// the expected magic.
	ErrInvalidMagic = errors.New("invalid magic")
	// ErrInvalidVersion is an error thrown when a file has an
	// unsupported version
	ErrInvalidVersion = errors.New("invalid version")
	// ErrDeltaBaseNotFound is returned when a delta entry references a
	// base object this decoder hasn't seen yet (or at all).
	ErrDeltaBaseNotFound = errors.New("delta base not found")
	// ErrDeltaTruncated is returned when a delta's instruction stream
	// ends in the middle of an instruction's operand bytes.
	ErrDeltaTruncated = errors.New("insert-truncated")
	// ErrDeltaCopyOutOfRange is returned when a COPY instruction
	// references bytes outside the bounds of the base object.
	ErrDeltaCopyOutOfRange = errors.New("copy-out-of-range")

	// OidWalkStop is a sentinel a OidWalkFunc can return to stop a walk
	// early without it being treated as a real failure.
	OidWalkStop = errors.New("stop walking")
)

// OidWalkFunc is called once per oid by WalkOids. Returning OidWalkStop
// ends the walk early without propagating an error.
type OidWalkFunc func(oid ginternals.Oid) error

// entry is a fully resolved object decoded from the pack, plus the byte
// offset (relative to the start of the pack, the 12 byte header
// included) it was read from.
type entry struct {
	offset uint64
	object *object.Object
}

// Pack is the result of decoding a packfile. All objects it contains,
// deltified or not, have already been resolved to their final content.
type Pack struct {
	id          ginternals.Oid
	objectCount uint32

	entries  []entry
	byOffset map[uint64]int
	byOid    map[ginternals.Oid]int
}

// countingReader tracks how many bytes have been pulled from the
// underlying reader, independent of any buffering layered on top of it.
type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// NewFromFile opens the packfile at filePath and decodes it fully.
// The file is read once, from start to finish, and closed before
// returning: the decoded Pack holds no open handles.
func NewFromFile(fs afero.Fs, filePath string) (pack *Pack, err error) {
	f, err := fs.Open(filePath)
	if err != nil {
		return nil, xerrors.Errorf("could not open %s: %w", filePath, err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	pack, err = Decode(f)
	if err != nil {
		return nil, xerrors.Errorf("could not decode %s: %w", filePath, err)
	}
	return pack, nil
}

// Decode reads a full packfile from r in a single sequential pass,
// resolving every object (undeltified, ref-delta, and ofs-delta alike)
// as it goes. r only needs to support Read: this is what lets a clone
// decode a packfile directly off an HTTP response body.
func Decode(r io.Reader) (*Pack, error) {
	cr := &countingReader{r: r}
	br := bufio.NewReaderSize(cr, 64*1024)

	var header [packfileHeaderSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, xerrors.Errorf("could not read packfile header: %w", err)
	}
	if !bytes.Equal(header[0:4], packfileMagic()) {
		return nil, xerrors.Errorf("invalid header: %w", ErrInvalidMagic)
	}
	if !bytes.Equal(header[4:8], packfileVersion()) {
		return nil, xerrors.Errorf("invalid header: %w", ErrInvalidVersion)
	}
	count := binary.BigEndian.Uint32(header[8:12])

	p := &Pack{
		objectCount: count,
		entries:     make([]entry, 0, count),
		byOffset:    make(map[uint64]int, count),
		byOid:       make(map[ginternals.Oid]int, count),
	}

	for i := uint32(0); i < count; i++ {
		// the offset of this entry, relative to the start of the pack
		// (header included), is how many bytes we've pulled off the wire minus what's
		// still sitting unread in the bufio buffer
		offset := cr.n - uint64(br.Buffered())

		o, err := p.decodeEntryAt(br, offset)
		if err != nil {
			return nil, xerrors.Errorf("could not decode entry %d at offset %d: %w", i, offset, err)
		}

		idx := len(p.entries)
		p.entries = append(p.entries, entry{offset: offset, object: o})
		p.byOffset[offset] = idx
		p.byOid[o.ID()] = idx
	}

	footer := make([]byte, ginternals.OidSize)
	if _, err := io.ReadFull(br, footer); err != nil {
		return nil, xerrors.Errorf("could not read packfile checksum: %w", err)
	}
	id, err := ginternals.NewOidFromHex(footer)
	if err != nil {
		return nil, xerrors.Errorf("could not parse packfile checksum: %w", err)
	}
	p.id = id

	return p, nil
}

// decodeEntryAt decodes the object header, delta-base reference (if
// any) and zlib-compressed payload starting at the reader's current
// position, and resolves it to a final object.
//
// The per-entry metadata byte is laid out as:
//   MTTT_SSSS // M = continuation bit ; T = type (3 bits) ; S = size (4 bits)
// Each following metadata byte (while the continuation bit is set)
// contributes 7 more bits to the size, least significant chunk first.
func (p *Pack) decodeEntryAt(br *bufio.Reader, offset uint64) (*object.Object, error) {
	metadata, err := br.Peek(10)
	if err != nil && len(metadata) == 0 {
		return nil, xerrors.Errorf("could not read object header: %w", err)
	}

	objectType := object.Type((metadata[0] & 0b_0111_0000) >> 4)
	if !objectType.IsValid() {
		return nil, xerrors.Errorf("unknown object type %d", objectType)
	}

	objectSize := uint64(metadata[0] & 0b_0000_1111)
	metadataSize := 1
	if isMSBSet(metadata[0]) {
		size, byteRead, err := readSize(metadata[1:])
		if err != nil {
			return nil, xerrors.Errorf("couldn't read object size: %w", err)
		}
		metadataSize += byteRead
		objectSize |= size << 4
	}
	if _, err := br.Discard(metadataSize); err != nil {
		return nil, xerrors.Errorf("could not skip the metadata: %w", err)
	}

	var baseOid ginternals.Oid
	var baseOffset uint64
	haveBaseOid := false
	haveBaseOffset := false

	switch objectType { //nolint:exhaustive // only 2 types have a special treatment
	case object.ObjectDeltaRef:
		raw := make([]byte, ginternals.OidSize)
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, xerrors.Errorf("could not read base object oid: %w", err)
		}
		oid, err := ginternals.NewOidFromHex(raw)
		if err != nil {
			return nil, xerrors.Errorf("could not parse base object oid %#v: %w", raw, err)
		}
		baseOid = oid
		haveBaseOid = true
	case object.ObjectDeltaOFS:
		// an offset can span at most 9 bytes of 7 usable bits each to
		// cover a 64 bit value
		offsetParts, err := br.Peek(9)
		if err != nil && len(offsetParts) == 0 {
			return nil, xerrors.Errorf("could not read base object offset: %w", err)
		}
		rel, bytesRead, err := readDeltaOffset(offsetParts)
		if err != nil {
			return nil, xerrors.Errorf("couldn't read base object offset: %w", err)
		}
		baseOffset = offset - rel
		haveBaseOffset = true
		if _, err := br.Discard(bytesRead); err != nil {
			return nil, xerrors.Errorf("could not skip the offset: %w", err)
		}
	}

	zlibR, err := zlib.NewReader(br)
	if err != nil {
		return nil, xerrors.Errorf("could not get zlib reader: %w", err)
	}
	var content bytes.Buffer
	if _, err := io.Copy(&content, zlibR); err != nil {
		return nil, xerrors.Errorf("could not decompress: %w", err)
	}
	if err := zlibR.Close(); err != nil {
		return nil, xerrors.Errorf("could not finish decompression: %w", err)
	}
	if content.Len() != int(objectSize) {
		return nil, xerrors.Errorf("object size not valid. expecting %d, got %d", objectSize, content.Len())
	}

	if objectType != object.ObjectDeltaRef && objectType != object.ObjectDeltaOFS {
		return object.New(objectType, content.Bytes()), nil
	}

	var base *object.Object
	if haveBaseOid {
		idx, ok := p.byOid[baseOid]
		if !ok {
			return nil, xerrors.Errorf("base object %s: %w", baseOid.String(), ErrDeltaBaseNotFound)
		}
		base = p.entries[idx].object
	} else if haveBaseOffset {
		idx, ok := p.byOffset[baseOffset]
		if !ok {
			return nil, xerrors.Errorf("base object at offset %d: %w", baseOffset, ErrDeltaBaseNotFound)
		}
		base = p.entries[idx].object
	}

	return applyDelta(base, content.Bytes())
}

// applyDelta rebuilds the full object content referenced by a delta
// instruction stream against the (already resolved) base object.
//
// The delta format is:
//   - the size of the base object (varint)
//   - the size of the resulting object (varint)
//   - a stream of COPY/INSERT instructions
// A COPY instruction (MSB set) carries, in its low 7 bits, which of the
// up-to-4 offset bytes and up-to-3 size bytes follow it in the stream.
// An INSERT instruction (MSB unset) carries, in its 7 bits, how many of
// the following bytes to copy verbatim into the output.
func applyDelta(base *object.Object, delta []byte) (*object.Object, error) {
	sourceSize, sourceSizeLen, err := readSize(delta)
	if err != nil {
		return nil, xerrors.Errorf("couldn't read source size of delta: %w", err)
	}
	if int(sourceSize) != base.Size() {
		return nil, xerrors.Errorf("invalid base object size. expected %d, got %d", base.Size(), sourceSize)
	}
	_, targetSizeLen, err := readSize(delta[sourceSizeLen:])
	if err != nil {
		return nil, xerrors.Errorf("couldn't read target size of delta: %w", err)
	}

	instructions := delta[sourceSizeLen+targetSizeLen:]
	baseContent := base.Bytes()

	var out bytes.Buffer
	for i := 0; i < len(instructions); i++ {
		instr := instructions[i]

		if !isMSBSet(instr) { // INSERT: low 7 bits are a literal byte count
			start := i + 1
			end := start + int(instr)
			if end > len(instructions) {
				return nil, xerrors.Errorf("insert instruction wants %d bytes, only %d left: %w",
					int(instr), len(instructions)-start, ErrDeltaTruncated)
			}
			out.Write(instructions[start:end])
			i += int(instr)
			continue
		}

		// COPY: 4 bits say which offset bytes follow, 3 bits say which
		// size bytes follow, both little-endian over up to 4/3 bytes
		offsetInfo := uint(instr & 0b_0000_1111)
		offsetBytes := make([]byte, 4)
		byteRead := 0
		for j := uint(0); j < 4; j++ {
			if (offsetInfo>>j)&1 == 1 {
				if i+1+byteRead >= len(instructions) {
					return nil, xerrors.Errorf("copy instruction missing offset byte: %w", ErrDeltaTruncated)
				}
				offsetBytes[j] = instructions[i+1+byteRead]
				byteRead++
			}
		}
		offset := binary.LittleEndian.Uint32(offsetBytes)
		i += byteRead

		copyLenInfo := uint((instr & 0b_0111_0000) >> 4)
		copyLenBytes := make([]byte, 4)
		byteRead = 0
		for j := uint(0); j < 3; j++ {
			if (copyLenInfo>>j)&1 == 1 {
				if i+1+byteRead >= len(instructions) {
					return nil, xerrors.Errorf("copy instruction missing size byte: %w", ErrDeltaTruncated)
				}
				copyLenBytes[j] = instructions[i+1+byteRead]
				byteRead++
			}
		}
		copyLenBytes[3] = 0
		copyLen := binary.LittleEndian.Uint32(copyLenBytes)
		if copyLen == 0 {
			copyLen = 65536
		}
		i += byteRead

		end := uint64(offset) + uint64(copyLen)
		if end > uint64(len(baseContent)) {
			return nil, xerrors.Errorf("copy instruction wants base[%d:%d], base is %d bytes: %w",
				offset, end, len(baseContent), ErrDeltaCopyOutOfRange)
		}
		out.Write(baseContent[offset:end])
	}

	return object.New(base.Type(), out.Bytes()), nil
}

// GetObject returns the already-resolved object with the given oid, or
// ginternals.ErrObjectNotFound if this pack doesn't contain it.
func (p *Pack) GetObject(oid ginternals.Oid) (*object.Object, error) {
	idx, ok := p.byOid[oid]
	if !ok {
		return nil, ginternals.ErrObjectNotFound
	}
	return p.entries[idx].object, nil
}

// ObjectCount returns the number of objects in the packfile
func (p *Pack) ObjectCount() uint32 {
	return p.objectCount
}

// ID returns the checksum of the packfile
func (p *Pack) ID() ginternals.Oid {
	return p.id
}

// WalkOids runs f on every oid contained in the pack, in the order the
// objects were decoded. Returning OidWalkStop from f ends the walk
// early without it being reported as an error.
func (p *Pack) WalkOids(f OidWalkFunc) error {
	for _, e := range p.entries {
		if err := f(e.object.ID()); err != nil {
			if errors.Is(err, OidWalkStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// readSize reads the provided bytes to extract what's left for the
// size from an object metadata.
// This method is only to read the remaining parts of a size.
func readSize(data []byte) (objectSize uint64, bytesRead int, err error) {
	for i, b := range data {
		bytesRead++

		chunk := unsetMSB(b)
		objectSize = insertLittleEndian7(objectSize, chunk, uint8(i))

		if !isMSBSet(b) {
			break
		}
	}

	if isMSBSet(data[bytesRead-1]) {
		return 0, 0, ErrIntOverflow
	}

	return objectSize, bytesRead, nil
}

// readDeltaOffset reads the provided bytes to extract an ofs-delta base
// offset. Each byte carries a continuation bit (MSB) and 7 bits of the
// offset, assembled big-endian. Every chunk but the last is stored
// minus one (the canonical "plus-one" encoding), so it needs adding
// back before being folded in.
func readDeltaOffset(data []byte) (offset uint64, bytesRead int, err error) {
	for _, b := range data {
		bytesRead++

		chunk := unsetMSB(b)
		if isMSBSet(b) {
			chunk++
		}
		offset = insertBigEndian7(offset, chunk)

		if !isMSBSet(b) {
			break
		}
	}
	if isMSBSet(data[bytesRead-1]) {
		return 0, 0, ErrIntOverflow
	}

	return offset, bytesRead, nil
}

// insertLittleEndian7 inserts the 7 low bits of chunk into base at the
// given 7-bit-wide position, least significant chunk first.
func insertLittleEndian7(base uint64, chunk, position uint8) uint64 {
	return (uint64(chunk) << (position * 7)) | base
}

// insertBigEndian7 shifts base left by 7 bits and adds chunk to it.
// chunk can be 128 (a plus-one chunk of 127), in which case it carries
// into the bits above the newly freed low bits.
func insertBigEndian7(base uint64, chunk uint8) uint64 {
	return base<<7 + uint64(chunk)
}

// isMSBSet checks if the continuation bit (the leftmost bit) is set.
func isMSBSet(b byte) bool {
	return b >= 0b_1000_0000
}

// unsetMSB clears the continuation bit, leaving only the 7 data bits.
func unsetMSB(b byte) byte {
	return b & 0b_0111_1111
}
