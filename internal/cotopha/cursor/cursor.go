// Package cursor provides fallible, offset-tracking reads over a byte slice.
//
// Every CSX and CCO field is fixed-width or length-prefixed; Cursor exposes
// just enough primitives to express both wire formats without hiding their
// differing integer widths behind a single "take length-prefixed blob" helper.
package cursor

import "errors"

// ErrUnexpectedEOF is returned whenever a read runs past the end of the
// underlying slice.
var ErrUnexpectedEOF = errors.New("unexpected end of input")

// Cursor reads forward through a byte slice, consuming as it goes.
type Cursor struct {
	data  []byte
	total int
}

// New wraps data for sequential reads. total is kept so Offset can report
// how far a later failure landed from the start of the original input.
func New(data []byte) *Cursor {
	return &Cursor{data: data, total: len(data)}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data)
}

// Bytes returns the unread tail, without consuming it.
func (c *Cursor) Bytes() []byte {
	return c.data
}

// Offset reports how many bytes have been consumed so far.
func (c *Cursor) Offset() int {
	return c.total - len(c.data)
}

// Take consumes and returns the next n bytes.
func (c *Cursor) Take(n int) ([]byte, error) {
	if n < 0 || len(c.data) < n {
		return nil, ErrUnexpectedEOF
	}
	chunk := c.data[:n]
	c.data = c.data[n:]
	return chunk, nil
}

// TakeByte consumes and returns the next single byte.
func (c *Cursor) TakeByte() (byte, error) {
	b, err := c.Take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Take4 consumes the next 4 bytes as a fixed array, for u32 LE fields.
func (c *Cursor) Take4() ([4]byte, error) {
	var out [4]byte
	b, err := c.Take(4)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// Take8 consumes the next 8 bytes as a fixed array, for u64 LE fields.
func (c *Cursor) Take8() ([8]byte, error) {
	var out [8]byte
	b, err := c.Take(8)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// TakeU32 consumes a little-endian u32.
func (c *Cursor) TakeU32() (uint32, error) {
	b, err := c.Take4()
	if err != nil {
		return 0, err
	}
	return le32(b), nil
}

// TakeU64 consumes a little-endian u64.
func (c *Cursor) TakeU64() (uint64, error) {
	b, err := c.Take8()
	if err != nil {
		return 0, err
	}
	return le64(b), nil
}

// Expect consumes len(prefix) bytes and reports errOnMismatch if they are
// not exactly prefix.
func (c *Cursor) Expect(prefix []byte, errOnMismatch error) error {
	got, err := c.Take(len(prefix))
	if err != nil {
		return err
	}
	for i := range prefix {
		if got[i] != prefix[i] {
			return errOnMismatch
		}
	}
	return nil
}

// IsEmpty reports whether every byte has been consumed.
func (c *Cursor) IsEmpty() bool {
	return len(c.data) == 0
}

func le32(b [4]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b [8]byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// PutU32 appends n to dst in little-endian form.
func PutU32(dst []byte, n uint32) []byte {
	return append(dst, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
}

// PutU64 appends n to dst in little-endian form.
func PutU64(dst []byte, n uint64) []byte {
	return append(dst,
		byte(n), byte(n>>8), byte(n>>16), byte(n>>24),
		byte(n>>32), byte(n>>40), byte(n>>48), byte(n>>56),
	)
}
