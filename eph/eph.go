// Package eph reads and writes EPH tile files.
//
// An EPH file is the 4-byte magic "EPHE", a little-endian int32 file
// version and a sequence of chunks:
//
//	type    [4]byte
//	length  uint32
//	data    [length]byte
//	crc     uint32
//
// A chunk whose type starts with an uppercase letter holds a HEALPix tile:
// a tile header (version, NUNIQ), usually followed by a table header and
// a compressed block with the table rows. A "JSON" chunk holds metadata
// that applies to the chunks that follow it in the same file.
package eph

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/tailscale/hujson"
)

// Magic starts every EPH file.
const Magic = "EPHE"

// FileVersion is the only supported file version.
const FileVersion = 2

// TypeJSON is the type of metadata chunks.
const TypeJSON = "JSON"

// Format errors.
var (
	// ErrBadMagic is returned when the data does not start with Magic.
	ErrBadMagic = errors.New("eph: bad magic")

	// ErrVersion is returned for an unsupported file version.
	ErrVersion = errors.New("eph: unsupported file version")

	// ErrTruncated is returned when a structure extends past the data.
	ErrTruncated = errors.New("eph: truncated data")

	// ErrChecksum is returned by Chunk.Verify on a CRC mismatch.
	ErrChecksum = errors.New("eph: checksum mismatch")
)

// Chunk is one chunk of an EPH file.
type Chunk struct {
	Type string
	Data []byte
	CRC  uint32

	// Meta is the content of the last JSON chunk read before this one,
	// or nil.
	Meta map[string]any
}

// IsTile reports whether the chunk holds a HEALPix tile.
func (c Chunk) IsTile() bool {
	return c.Type != "" && c.Type[0] >= 'A' && c.Type[0] <= 'Z' && c.Type != TypeJSON
}

// Verify checks the CRC-32 of the chunk. A zero CRC means the writer did
// not compute one and always verifies.
func (c Chunk) Verify() error {
	if c.CRC == 0 {
		return nil
	}
	if got := crc32.ChecksumIEEE(c.Data); got != c.CRC {
		return fmt.Errorf("%w: chunk %q has %08x, want %08x", ErrChecksum, c.Type, got, c.CRC)
	}
	return nil
}

// Read walks the chunks of an EPH file and calls fn for each chunk other
// than JSON metadata. Chunk data aliases data. Read stops at the first
// error returned by fn.
func Read(data []byte, fn func(Chunk) error) error {
	if len(data) < 8 || string(data[:4]) != Magic {
		return ErrBadMagic
	}
	if v := int32(binary.LittleEndian.Uint32(data[4:8])); v != FileVersion {
		return fmt.Errorf("%w: %d", ErrVersion, v)
	}
	data = data[8:]

	var meta map[string]any
	for len(data) > 0 {
		if len(data) < 8 {
			return fmt.Errorf("%w: chunk header", ErrTruncated)
		}
		typ := string(data[:4])
		n := int(binary.LittleEndian.Uint32(data[4:8]))
		if n < 0 || len(data) < 12+n {
			return fmt.Errorf("%w: chunk %q of %d bytes", ErrTruncated, typ, n)
		}
		c := Chunk{
			Type: typ,
			Data: data[8 : 8+n],
			CRC:  binary.LittleEndian.Uint32(data[8+n : 12+n]),
			Meta: meta,
		}
		data = data[12+n:]

		if typ == TypeJSON {
			m, err := parseJSON(c.Data)
			if err != nil {
				return err
			}
			meta = m
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// parseJSON parses a metadata chunk. Comments and trailing commas are
// accepted.
func parseJSON(data []byte) (map[string]any, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("eph: invalid JSON chunk: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(std, &m); err != nil {
		return nil, fmt.Errorf("eph: invalid JSON chunk: %w", err)
	}
	return m, nil
}
