package rowsio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/tqe"
)

// Reader decodes a rowsio stream.  When a column restriction is
// given, yielded records carry only the selected columns, in file
// order; unselected values are parsed past but never materialized.
type Reader struct {
	r          io.Reader
	fileSchema *tabular.Schema
	outSchema  *tabular.Schema
	selected   []bool
	frame      []byte
	zbuf       []byte
	off        int
	remaining  uint32
	vals       []tabular.Value
}

func NewReader(r io.Reader, columns ...string) (*Reader, error) {
	schema, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	reader := &Reader{r: r, fileSchema: schema}
	if columns == nil {
		reader.outSchema = schema
		return reader, nil
	}
	want := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		want[name] = struct{}{}
	}
	reader.selected = make([]bool, schema.Len())
	reader.outSchema = &tabular.Schema{}
	for i, c := range schema.Columns {
		if _, ok := want[c.Name]; ok {
			reader.selected[i] = true
			reader.outSchema.Columns = append(reader.outSchema.Columns, c)
		}
	}
	return reader, nil
}

func readHeader(r io.Reader) (*tabular.Schema, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, ioErr(err, "header")
	}
	if !bytes.Equal(magic, Magic) {
		return nil, tqe.E(tqe.Corrupt, "rowsio: bad magic")
	}
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return nil, ioErr(err, "header")
	}
	n := binary.LittleEndian.Uint32(lenbuf[:])
	if n > maxFrameSize {
		return nil, tqe.E(tqe.Corrupt, "rowsio: implausible schema length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, ioErr(err, "schema")
	}
	return unmarshalSchema(b)
}

// ioErr classifies a read error from the underlying reader.  An EOF
// inside a unit means the file was truncated; any other error came
// from the storage layer and keeps its own classification, so a file
// that vanishes mid-read still reports as missing.
func ioErr(err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return tqe.E(tqe.Corrupt, "rowsio: short %s", what)
	}
	return err
}

// Schema returns the schema of the records this reader yields (the
// file schema restricted to any column selection).
func (r *Reader) Schema() *tabular.Schema {
	return r.outSchema
}

// FileSchema returns the full on-disk schema from the file header.
func (r *Reader) FileSchema() *tabular.Schema {
	return r.fileSchema
}

func (r *Reader) Read() (*tabular.Record, error) {
	for r.remaining == 0 {
		ok, err := r.readFrame()
		if err != nil || !ok {
			return nil, err
		}
	}
	r.remaining--
	r.vals = r.vals[:0]
	for i, c := range r.fileSchema.Columns {
		keep := r.selected == nil || r.selected[i]
		v, err := r.decodeValue(c.Type, keep)
		if err != nil {
			return nil, err
		}
		if keep {
			r.vals = append(r.vals, v)
		}
	}
	return tabular.NewRecord(r.outSchema, r.vals...), nil
}

func (r *Reader) readFrame() (bool, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, ioErr(err, "frame header")
	}
	count := binary.LittleEndian.Uint32(hdr[0:4])
	ulen := binary.LittleEndian.Uint32(hdr[4:8])
	zlen := binary.LittleEndian.Uint32(hdr[8:12])
	if ulen > maxFrameSize || zlen > maxFrameSize {
		return false, tqe.E(tqe.Corrupt, "rowsio: implausible frame size")
	}
	if cap(r.frame) < int(ulen) {
		r.frame = make([]byte, ulen)
	}
	r.frame = r.frame[:ulen]
	if zlen == 0 {
		if _, err := io.ReadFull(r.r, r.frame); err != nil {
			return false, ioErr(err, "frame")
		}
	} else {
		if cap(r.zbuf) < int(zlen) {
			r.zbuf = make([]byte, zlen)
		}
		r.zbuf = r.zbuf[:zlen]
		if _, err := io.ReadFull(r.r, r.zbuf); err != nil {
			return false, ioErr(err, "frame")
		}
		n, err := lz4.UncompressBlock(r.zbuf, r.frame)
		if err != nil {
			return false, tqe.E(tqe.Corrupt, "rowsio: %s", err)
		}
		if n != int(ulen) {
			return false, tqe.E(tqe.Corrupt, "rowsio: got %d uncompressed bytes, expected %d", n, ulen)
		}
	}
	r.off = 0
	r.remaining = count
	return true, nil
}

func (r *Reader) decodeValue(typ *tabular.Type, keep bool) (tabular.Value, error) {
	tag, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		return nil, nil
	}
	switch typ.Kind {
	case tabular.KindBool:
		b, err := r.readByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case tabular.KindInt32:
		n, err := r.readVarint()
		return int32(n), err
	case tabular.KindInt64:
		return r.readVarint()
	case tabular.KindFloat64:
		if r.off+8 > len(r.frame) {
			return nil, r.corrupt()
		}
		bits := binary.LittleEndian.Uint64(r.frame[r.off:])
		r.off += 8
		return math.Float64frombits(bits), nil
	case tabular.KindString:
		b, err := r.readBytes()
		if err != nil {
			return nil, err
		}
		if !keep {
			return nil, nil
		}
		return string(b), nil
	case tabular.KindBytes:
		b, err := r.readBytes()
		if err != nil {
			return nil, err
		}
		if !keep {
			return nil, nil
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case tabular.KindTime:
		ns, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		return time.Unix(0, ns).UTC(), nil
	case tabular.KindArray:
		n, err := r.readCount()
		if err != nil {
			return nil, err
		}
		vals := make([]tabular.Value, 0, n)
		for i := 0; i < n; i++ {
			v, err := r.decodeValue(typ.Elem, keep)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return tabular.Value(vals), nil
	case tabular.KindStruct:
		vals := make([]tabular.Value, 0, len(typ.Fields))
		for _, f := range typ.Fields {
			v, err := r.decodeValue(f.Type, keep)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return tabular.Value(vals), nil
	case tabular.KindMap:
		n, err := r.readCount()
		if err != nil {
			return nil, err
		}
		vals := make([]tabular.Value, 0, 2*n)
		for i := 0; i < n; i++ {
			k, err := r.decodeValue(typ.Key, keep)
			if err != nil {
				return nil, err
			}
			v, err := r.decodeValue(typ.Val, keep)
			if err != nil {
				return nil, err
			}
			vals = append(vals, k, v)
		}
		return tabular.Value(vals), nil
	default:
		return nil, tqe.E(tqe.Corrupt, "rowsio: cannot decode type %s", typ)
	}
}

func (r *Reader) readByte() (byte, error) {
	if r.off >= len(r.frame) {
		return 0, r.corrupt()
	}
	b := r.frame[r.off]
	r.off++
	return b, nil
}

func (r *Reader) readVarint() (int64, error) {
	n, size := binary.Varint(r.frame[r.off:])
	if size <= 0 {
		return 0, r.corrupt()
	}
	r.off += size
	return n, nil
}

func (r *Reader) readUvarint() (uint64, error) {
	n, size := binary.Uvarint(r.frame[r.off:])
	if size <= 0 {
		return 0, r.corrupt()
	}
	r.off += size
	return n, nil
}

func (r *Reader) readBytes() ([]byte, error) {
	n, err := r.readCount()
	if err != nil {
		return nil, err
	}
	b := r.frame[r.off : r.off+n]
	r.off += n
	return b, nil
}

// readCount decodes a length prefix.  The count is rejected before it
// is converted to an int: a corrupt prefix can claim up to 2^64-1,
// but no length or element count can exceed the remaining frame
// bytes, since every encoded value takes at least one byte.
func (r *Reader) readCount() (int, error) {
	n, err := r.readUvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(r.frame)-r.off) {
		return 0, r.corrupt()
	}
	return int(n), nil
}

func (r *Reader) corrupt() error {
	return tqe.E(tqe.Corrupt, "rowsio: truncated frame")
}

// Count returns the number of records in the stream by summing frame
// headers, without decompressing or decoding any column data.
func Count(r io.Reader) (int64, error) {
	if _, err := readHeader(r); err != nil {
		return 0, err
	}
	var total int64
	for {
		var hdr [12]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				return total, nil
			}
			return 0, ioErr(err, "frame header")
		}
		total += int64(binary.LittleEndian.Uint32(hdr[0:4]))
		ulen := binary.LittleEndian.Uint32(hdr[4:8])
		zlen := binary.LittleEndian.Uint32(hdr[8:12])
		skip := int64(zlen)
		if zlen == 0 {
			skip = int64(ulen)
		}
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return 0, ioErr(err, "frame")
		}
	}
}
