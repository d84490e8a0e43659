package scip

import (
	"github.com/teranos/OPTIX/errors"
)

// Wire types in the index stream. Varint and length-delimited fields carry
// all the data; fixed-width fields only ever need skipping.
const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

// errTruncated marks a read past the end of the stream. Truncation halts the
// whole ingest rather than skipping, since everything after it is garbage.
var errTruncated = errors.New("truncated index stream")

// Reader walks a protobuf-shaped byte stream without generated stubs.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential field decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Done reports whether the stream is fully consumed.
func (r *Reader) Done() bool {
	return r.pos >= len(r.buf)
}

// Uvarint decodes one unsigned base-128 varint.
func (r *Reader) Uvarint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if r.pos >= len(r.buf) {
			return 0, errors.Wrapf(errTruncated, "varint at offset %d", r.pos)
		}
		b := r.buf[r.pos]
		r.pos++
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.Newf("varint overflow at offset %d", r.pos)
		}
	}
}

// Bytes reads one length-delimited payload. The returned slice aliases the
// underlying buffer.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.pos) {
		return nil, errors.Wrapf(errTruncated, "%d-byte field at offset %d", n, r.pos)
	}
	out := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

// Skip consumes one field payload of the given wire type.
func (r *Reader) Skip(wireType uint64) error {
	switch wireType {
	case wireVarint:
		_, err := r.Uvarint()
		return err
	case wireBytes:
		_, err := r.Bytes()
		return err
	case wireFixed64:
		return r.advance(8)
	case wireFixed32:
		return r.advance(4)
	default:
		return errors.Newf("unsupported wire type %d at offset %d", wireType, r.pos)
	}
}

func (r *Reader) advance(n int) error {
	if len(r.buf)-r.pos < n {
		return errors.Wrapf(errTruncated, "%d-byte field at offset %d", n, r.pos)
	}
	r.pos += n
	return nil
}
