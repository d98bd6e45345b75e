package rowsio

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/woainirjy/tabular"
	"github.com/woainirjy/tabular/tqe"
)

type WriterOpts struct {
	// FrameThreshold is the uncompressed byte count that triggers a
	// frame flush.  Zero means DefaultFrameThreshold.
	FrameThreshold int
}

type Writer struct {
	w          io.WriteCloser
	schema     *tabular.Schema
	threshold  int
	buf        []byte
	count      uint32
	compressor lz4.Compressor
	zbuf       []byte
	position   int64
	headerErr  error
	wrote      bool
}

func NewWriter(w io.WriteCloser, schema *tabular.Schema, opts WriterOpts) *Writer {
	threshold := opts.FrameThreshold
	if threshold <= 0 {
		threshold = DefaultFrameThreshold
	}
	return &Writer{w: w, schema: schema, threshold: threshold}
}

func (w *Writer) writeHeader() error {
	b, err := marshalSchema(w.schema)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(Magic); err != nil {
		return err
	}
	var lenbuf [4]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(b)))
	if _, err := w.w.Write(lenbuf[:]); err != nil {
		return err
	}
	_, err = w.w.Write(b)
	w.position = int64(len(Magic) + 4 + len(b))
	return err
}

func (w *Writer) Write(rec *tabular.Record) error {
	if !w.wrote {
		w.wrote = true
		w.headerErr = w.writeHeader()
	}
	if w.headerErr != nil {
		return w.headerErr
	}
	if len(rec.Values) != w.schema.Len() {
		return tqe.E(tqe.Invalid, "rowsio: record has %d values, schema has %d columns", len(rec.Values), w.schema.Len())
	}
	for i, c := range w.schema.Columns {
		var err error
		w.buf, err = appendValue(w.buf, c.Type, rec.Values[i])
		if err != nil {
			return err
		}
	}
	w.count++
	if len(w.buf) >= w.threshold {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if w.count == 0 {
		return nil
	}
	ulen := len(w.buf)
	var zlen int
	if ulen > 1 {
		if cap(w.zbuf) < ulen-1 {
			w.zbuf = make([]byte, ulen-1)
		}
		// Size the destination one byte short so compression fails
		// unless it actually shrinks the frame.
		n, err := w.compressor.CompressBlock(w.buf, w.zbuf[:ulen-1])
		if err != nil && err != lz4.ErrInvalidSourceShortBuffer {
			return err
		}
		zlen = n
	}
	payload := w.buf
	if zlen > 0 {
		payload = w.zbuf[:zlen]
	}
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], w.count)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(ulen))
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(zlen))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	w.position += int64(len(hdr) + len(payload))
	w.buf = w.buf[:0]
	w.count = 0
	return nil
}

// Position returns the number of bytes flushed so far.
func (w *Writer) Position() int64 {
	return w.position
}

func (w *Writer) Close() error {
	if !w.wrote {
		// An empty file still carries its schema.
		w.wrote = true
		w.headerErr = w.writeHeader()
	}
	err := w.headerErr
	if err == nil {
		err = w.flush()
	}
	if closeErr := w.w.Close(); err == nil {
		err = closeErr
	}
	return err
}

func appendValue(b []byte, typ *tabular.Type, v tabular.Value) ([]byte, error) {
	if v == nil {
		return append(b, 0), nil
	}
	b = append(b, 1)
	switch typ.Kind {
	case tabular.KindBool:
		val, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		if val {
			return append(b, 1), nil
		}
		return append(b, 0), nil
	case tabular.KindInt32:
		val, ok := v.(int32)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		return binary.AppendVarint(b, int64(val)), nil
	case tabular.KindInt64:
		val, ok := v.(int64)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		return binary.AppendVarint(b, val), nil
	case tabular.KindFloat64:
		val, ok := v.(float64)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(val)), nil
	case tabular.KindString:
		val, ok := v.(string)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		b = binary.AppendUvarint(b, uint64(len(val)))
		return append(b, val...), nil
	case tabular.KindBytes:
		val, ok := v.([]byte)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		b = binary.AppendUvarint(b, uint64(len(val)))
		return append(b, val...), nil
	case tabular.KindTime:
		val, ok := v.(time.Time)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		return binary.AppendVarint(b, val.UnixNano()), nil
	case tabular.KindArray:
		vals, ok := v.([]tabular.Value)
		if !ok {
			return nil, typeMismatch(typ, v)
		}
		b = binary.AppendUvarint(b, uint64(len(vals)))
		for _, elem := range vals {
			var err error
			b, err = appendValue(b, typ.Elem, elem)
			if err != nil {
				return nil, err
			}
		}
		return b, nil
	case tabular.KindStruct:
		vals, ok := v.([]tabular.Value)
		if !ok || len(vals) != len(typ.Fields) {
			return nil, typeMismatch(typ, v)
		}
		for i, f := range typ.Fields {
			var err error
			b, err = appendValue(b, f.Type, vals[i])
			if err != nil {
				return nil, err
			}
		}
		return b, nil
	case tabular.KindMap:
		vals, ok := v.([]tabular.Value)
		if !ok || len(vals)%2 != 0 {
			return nil, typeMismatch(typ, v)
		}
		b = binary.AppendUvarint(b, uint64(len(vals)/2))
		for i := 0; i < len(vals); i += 2 {
			var err error
			if b, err = appendValue(b, typ.Key, vals[i]); err != nil {
				return nil, err
			}
			if b, err = appendValue(b, typ.Val, vals[i+1]); err != nil {
				return nil, err
			}
		}
		return b, nil
	default:
		return nil, tqe.E(tqe.Unsupported, "rowsio: cannot encode type %s", typ)
	}
}

func typeMismatch(typ *tabular.Type, v tabular.Value) error {
	return tqe.E(tqe.Invalid, "rowsio: value %s does not match column type %s", tabular.FormatValue(v), typ)
}
