// Package serialize implements the low-level big-endian primitive encoders
// used by the versioned binary and delta wire formats for ecs.World
// snapshots. The higher-level framing (full/delta/JSON/base64 modes) lives
// in the ecs package, which has direct access to World's internal layout;
// this package only ever sees bytes in and bytes out.
package serialize

import (
	"bytes"
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/charmap"

	"github.com/ashgrove/ecsruntime/internal/ecserr"
)

// Version is the serializer wire format version carried in every frame.
const Version uint16 = 2

// Mode distinguishes a full snapshot from a stateful delta.
type Mode uint8

const (
	ModeFull  Mode = 0
	ModeDelta Mode = 1
)

// SparseSentinel16 is the wire-format "absent" marker for a u16 sparse slot.
const SparseSentinel16 = 0xFFFF

// Writer accumulates a wire buffer using big-endian primitive encoders.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Uint8(v uint8)   { w.buf.WriteByte(v) }
func (w *Writer) Uint16(v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); w.buf.Write(b[:]) }
func (w *Writer) Uint32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *Writer) Float64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
}
func (w *Writer) Raw(b []byte) { w.buf.Write(b) }

// String writes a u16 length followed by that many Latin-1 code units.
func (w *Writer) String(s string) {
	enc, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		enc = s
	}
	w.Uint16(uint16(len(enc)))
	w.buf.WriteString(enc)
}

func (w *Writer) UintArray(vals []uint16) {
	w.Uint16(uint16(len(vals)))
	for _, v := range vals {
		w.Uint16(v)
	}
}

func (w *Writer) NumberArray(vals []float64) {
	w.Uint16(uint16(len(vals)))
	for _, v := range vals {
		w.Float64(v)
	}
}

func (w *Writer) NumberObject(keys []uint32, vals map[uint32]float64) {
	w.Uint16(uint16(len(keys)))
	for _, k := range keys {
		w.Uint32(k)
		w.Float64(vals[k])
	}
}

// SparseSet writes dense followed by sparse (the latter already
// sentinel-converted to 0xFFFF by the caller).
func (w *Writer) SparseSet(dense, sparse []uint16) {
	w.UintArray(dense)
	w.UintArray(sparse)
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }
func (w *Writer) Len() int      { return w.buf.Len() }

// Reader walks a wire buffer produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }
func (r *Reader) Pos() int       { return r.pos }

func (r *Reader) Uint8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, ecserr.ErrVersionMismatch
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Uint16() (uint16, error) {
	if r.Remaining() < 2 {
		return 0, ecserr.ErrVersionMismatch
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *Reader) Uint32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ecserr.ErrVersionMismatch
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *Reader) Float64() (float64, error) {
	if r.Remaining() < 8 {
		return 0, ecserr.ErrVersionMismatch
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8]))
	r.pos += 8
	return v, nil
}

func (r *Reader) Raw(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ecserr.ErrVersionMismatch
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) String() (string, error) {
	n, err := r.Uint16()
	if err != nil {
		return "", err
	}
	b, err := r.Raw(int(n))
	if err != nil {
		return "", err
	}
	dec, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b), nil
	}
	return string(dec), nil
}

func (r *Reader) UintArray() ([]uint16, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		v, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *Reader) NumberArray() ([]float64, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		v, err := r.Float64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *Reader) NumberObject() (map[uint32]float64, error) {
	n, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]float64, n)
	for i := uint16(0); i < n; i++ {
		k, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		v, err := r.Float64()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (r *Reader) SparseSet() (dense, sparse []uint16, err error) {
	dense, err = r.UintArray()
	if err != nil {
		return nil, nil, err
	}
	sparse, err = r.UintArray()
	if err != nil {
		return nil, nil, err
	}
	return dense, sparse, nil
}
