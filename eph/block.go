package eph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/gogpu/hips/healpix"
)

// maxBlockSize bounds the uncompressed size of a block.
const maxBlockSize = 64 << 20

// columnSize is the size of a column descriptor in a table header.
const columnSize = 20

// TileHeader opens a tile chunk.
type TileHeader struct {
	Version int
	NUNIQ   uint64
	Order   int
	Pix     int
}

// Decoder reads the structures of a tile chunk in sequence.
type Decoder struct {
	data []byte
	off  int
}

// NewDecoder returns a decoder over the data of a chunk.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Offset returns the number of bytes consumed.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns the bytes not consumed yet.
func (d *Decoder) Remaining() []byte { return d.data[d.off:] }

func (d *Decoder) next(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.off < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, n, d.off)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) int32() (int32, error) {
	b, err := d.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// TileHeader reads a tile header: version and NUNIQ.
func (d *Decoder) TileHeader() (TileHeader, error) {
	v, err := d.int32()
	if err != nil {
		return TileHeader{}, err
	}
	b, err := d.next(8)
	if err != nil {
		return TileHeader{}, err
	}
	nuniq := binary.LittleEndian.Uint64(b)
	order, pix, err := healpix.DecodeNUNIQ(nuniq)
	if err != nil {
		return TileHeader{}, fmt.Errorf("eph: tile header: %w", err)
	}
	return TileHeader{Version: int(v), NUNIQ: nuniq, Order: order, Pix: pix}, nil
}

// Compressed reads a compressed block: uncompressed size, compressed size
// and zlib data. It returns the uncompressed bytes.
func (d *Decoder) Compressed() ([]byte, error) {
	size, err := d.int32()
	if err != nil {
		return nil, err
	}
	csize, err := d.int32()
	if err != nil {
		return nil, err
	}
	if size < 0 || size > maxBlockSize {
		return nil, fmt.Errorf("eph: invalid block size %d", size)
	}
	comp, err := d.next(int(csize))
	if err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(comp))
	if err != nil {
		return nil, fmt.Errorf("eph: compressed block: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("eph: compressed block: %w", err)
	}
	return out, nil
}

// TableHeader reads a table header. The rows follow in a compressed block;
// see Table.SetRows.
func (d *Decoder) TableHeader() (*Table, error) {
	var head [4]int32
	for i := range head {
		v, err := d.int32()
		if err != nil {
			return nil, err
		}
		head[i] = v
	}
	flags, rowSize, ncol, nrow := head[0], head[1], head[2], head[3]
	if rowSize < 0 || ncol < 0 || nrow < 0 {
		return nil, fmt.Errorf("eph: invalid table header %v", head)
	}
	if int(ncol)*columnSize > len(d.Remaining()) {
		return nil, fmt.Errorf("%w: %d columns in %d bytes", ErrTruncated, ncol, len(d.Remaining()))
	}
	t := &Table{
		Flags:   TableFlags(flags),
		RowSize: int(rowSize),
		Rows:    int(nrow),
		Columns: make([]Column, 0, ncol),
	}
	for range ncol {
		b, err := d.next(columnSize)
		if err != nil {
			return nil, err
		}
		col := Column{
			ID:    string(bytes.TrimRight(b[0:4], "\x00 ")),
			Type:  ColumnType(b[4]),
			Unit:  Unit(binary.LittleEndian.Uint32(b[8:12])),
			Start: int(int32(binary.LittleEndian.Uint32(b[12:16]))),
			Size:  int(int32(binary.LittleEndian.Uint32(b[16:20]))),
		}
		if col.Start < 0 || col.Size < 0 || col.Start+col.Size > t.RowSize {
			return nil, fmt.Errorf("eph: column %q outside row of %d bytes", col.ID, t.RowSize)
		}
		t.Columns = append(t.Columns, col)
	}
	return t, nil
}
