package eph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrColumn is returned when a required column is missing or has the
// wrong type.
var ErrColumn = errors.New("eph: bad column")

// TableFlags are the flags of a table header.
type TableFlags uint32

// Shuffled tables store the bytes of each row position contiguously.
const Shuffled TableFlags = 1

// ColumnType is the type tag of a column.
type ColumnType byte

// Column types.
const (
	TypeFloat  ColumnType = 'f' // float32
	TypeInt    ColumnType = 'i' // int32
	TypeUint64 ColumnType = 'Q' // uint64
	TypeString ColumnType = 's' // fixed size string
)

// Size returns the default byte size of the type, or 0 for strings.
func (t ColumnType) Size() int {
	switch t {
	case TypeFloat, TypeInt:
		return 4
	case TypeUint64:
		return 8
	}
	return 0
}

func (t ColumnType) String() string { return string(rune(t)) }

// Column describes one column of a table.
type Column struct {
	ID    string
	Type  ColumnType
	Unit  Unit
	Start int
	Size  int
}

// Table is a table of fixed-size rows.
type Table struct {
	Flags   TableFlags
	RowSize int
	Rows    int
	Columns []Column

	data []byte
}

// NewTable returns an empty shuffled table with the given columns. Column
// offsets are assigned in order; Size may be left zero for numeric types.
func NewTable(cols ...Column) *Table {
	t := &Table{Flags: Shuffled, Columns: make([]Column, len(cols))}
	for i, c := range cols {
		if c.Size == 0 {
			c.Size = c.Type.Size()
		}
		c.Start = t.RowSize
		t.RowSize += c.Size
		t.Columns[i] = c
	}
	return t
}

// SetRows installs the row data read from the compressed block that
// follows the table header, unshuffling it if needed.
func (t *Table) SetRows(data []byte) error {
	if len(data) != t.RowSize*t.Rows {
		return fmt.Errorf("%w: %d bytes of rows, want %d×%d", ErrTruncated, len(data), t.Rows, t.RowSize)
	}
	if t.Flags&Shuffled != 0 {
		data = Unshuffle(data, t.RowSize)
	}
	t.data = data
	return nil
}

// Data returns the unshuffled row data.
func (t *Table) Data() []byte { return t.data }

// Lookup returns the column with the given id, checking its type.
func (t *Table) Lookup(id string, typ ColumnType) (Column, error) {
	for _, c := range t.Columns {
		if c.ID != id {
			continue
		}
		if c.Type != typ {
			return Column{}, fmt.Errorf("%w: %q has type %v, want %v", ErrColumn, id, c.Type, typ)
		}
		return c, nil
	}
	return Column{}, fmt.Errorf("%w: %q not found", ErrColumn, id)
}

func (t *Table) cell(row int, c Column) []byte {
	off := row*t.RowSize + c.Start
	return t.data[off : off+c.Size]
}

// Float returns a float column value converted to unit. A zero unit
// returns the stored value.
func (t *Table) Float(row int, c Column, unit Unit) float64 {
	v := math.Float32frombits(binary.LittleEndian.Uint32(t.cell(row, c)))
	return Convert(c.Unit, unit, float64(v))
}

// Int returns an int32 column value.
func (t *Table) Int(row int, c Column) int {
	return int(int32(binary.LittleEndian.Uint32(t.cell(row, c))))
}

// Uint64 returns a uint64 column value.
func (t *Table) Uint64(row int, c Column) uint64 {
	return binary.LittleEndian.Uint64(t.cell(row, c))
}

// Text returns a string column value without its trailing NUL padding.
func (t *Table) Text(row int, c Column) string {
	return string(bytes.TrimRight(t.cell(row, c), "\x00"))
}

// AppendRow appends a row. Values are given in column order: float64 for
// float columns (in the column unit), int for int columns, uint64 and
// string.
func (t *Table) AppendRow(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("%w: %d values for %d columns", ErrColumn, len(values), len(t.Columns))
	}
	row := make([]byte, t.RowSize)
	for i, c := range t.Columns {
		cell := row[c.Start : c.Start+c.Size]
		switch v := values[i].(type) {
		case float64:
			if c.Type != TypeFloat {
				return fmt.Errorf("%w: float for %q", ErrColumn, c.ID)
			}
			binary.LittleEndian.PutUint32(cell, math.Float32bits(float32(v)))
		case int:
			if c.Type != TypeInt {
				return fmt.Errorf("%w: int for %q", ErrColumn, c.ID)
			}
			binary.LittleEndian.PutUint32(cell, uint32(int32(v)))
		case uint64:
			if c.Type != TypeUint64 {
				return fmt.Errorf("%w: uint64 for %q", ErrColumn, c.ID)
			}
			binary.LittleEndian.PutUint64(cell, v)
		case string:
			if c.Type != TypeString || len(v) > c.Size {
				return fmt.Errorf("%w: string %q for %q", ErrColumn, v, c.ID)
			}
			copy(cell, v)
		default:
			return fmt.Errorf("%w: unsupported value %T for %q", ErrColumn, v, c.ID)
		}
	}
	t.data = append(t.data, row...)
	t.Rows++
	return nil
}

// Shuffle reorders rows of rowSize bytes so that byte j of every row is
// stored contiguously.
func Shuffle(data []byte, rowSize int) []byte {
	if rowSize == 0 {
		return data
	}
	n := len(data) / rowSize
	out := make([]byte, len(data))
	for i := range n {
		for j := range rowSize {
			out[j*n+i] = data[i*rowSize+j]
		}
	}
	return out
}

// Unshuffle is the inverse of Shuffle.
func Unshuffle(data []byte, rowSize int) []byte {
	if rowSize == 0 {
		return data
	}
	n := len(data) / rowSize
	out := make([]byte, len(data))
	for i := range n {
		for j := range rowSize {
			out[i*rowSize+j] = data[j*n+i]
		}
	}
	return out
}
