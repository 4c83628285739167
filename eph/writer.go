package eph

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zlib"

	"github.com/gogpu/hips/healpix"
)

// TileVersion is the tile header version written by EncodeTile.
const TileVersion = 3

// Writer builds an EPH file in memory.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns a writer with the file header already written.
func NewWriter() *Writer {
	w := &Writer{}
	w.buf.WriteString(Magic)
	w.putUint32(FileVersion)
	return w
}

func (w *Writer) putUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Chunk appends a chunk with a CRC-32 of its data.
func (w *Writer) Chunk(typ string, data []byte) error {
	if len(typ) != 4 {
		return fmt.Errorf("eph: chunk type %q must be 4 bytes", typ)
	}
	w.buf.WriteString(typ)
	w.putUint32(uint32(len(data)))
	w.buf.Write(data)
	w.putUint32(crc32.ChecksumIEEE(data))
	return nil
}

// JSON appends a metadata chunk with v encoded as JSON.
func (w *Writer) JSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("eph: encode JSON chunk: %w", err)
	}
	return w.Chunk(TypeJSON, data)
}

// Bytes returns the file content.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// EncodeTile returns the data of a tile chunk holding t: tile header,
// table header and the compressed rows.
func EncodeTile(order, pix int, t *Table) ([]byte, error) {
	var buf bytes.Buffer
	put := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	put(int32(TileVersion))
	put(healpix.NUNIQ(order, pix))

	put(int32(t.Flags))
	put(int32(t.RowSize))
	put(int32(len(t.Columns)))
	put(int32(t.Rows))
	for _, c := range t.Columns {
		var id [4]byte
		copy(id[:], c.ID)
		buf.Write(id[:])
		buf.Write([]byte{byte(c.Type), 0, 0, 0})
		put(int32(c.Unit))
		put(int32(c.Start))
		put(int32(c.Size))
	}

	rows := t.data
	if t.Flags&Shuffled != 0 {
		rows = Shuffle(rows, t.RowSize)
	}
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	if _, err := zw.Write(rows); err != nil {
		return nil, fmt.Errorf("eph: compress rows: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("eph: compress rows: %w", err)
	}
	put(int32(len(rows)))
	put(int32(comp.Len()))
	buf.Write(comp.Bytes())
	return buf.Bytes(), nil
}

// DecodeTile reads a tile chunk written by EncodeTile.
func DecodeTile(data []byte) (TileHeader, *Table, error) {
	d := NewDecoder(data)
	h, err := d.TileHeader()
	if err != nil {
		return TileHeader{}, nil, err
	}
	t, err := d.TableHeader()
	if err != nil {
		return TileHeader{}, nil, err
	}
	rows, err := d.Compressed()
	if err != nil {
		return TileHeader{}, nil, err
	}
	if err := t.SetRows(rows); err != nil {
		return TileHeader{}, nil, err
	}
	return h, t, nil
}
