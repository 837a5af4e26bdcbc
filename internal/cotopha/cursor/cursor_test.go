package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTake(t *testing.T) {
	c := New([]byte{1, 2, 3, 4, 5})
	b, err := c.Take(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)
	assert.Equal(t, 2, c.Remaining())
	assert.Equal(t, 3, c.Offset())
}

func TestTakeUnexpectedEOF(t *testing.T) {
	c := New([]byte{1, 2})
	_, err := c.Take(3)
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestTakeU32LittleEndian(t *testing.T) {
	c := New([]byte{0x01, 0x00, 0x00, 0x00, 0xff})
	v, err := c.TakeU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, 1, c.Remaining())
}

func TestTakeU64LittleEndian(t *testing.T) {
	c := New([]byte{0x02, 0, 0, 0, 0, 0, 0, 0})
	v, err := c.TakeU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestExpectMatch(t *testing.T) {
	c := New([]byte("Entis"))
	assert.NoError(t, c.Expect([]byte("Entis"), ErrUnexpectedEOF))
}

func TestExpectMismatch(t *testing.T) {
	errBadMagic := assertErr("bad magic")
	c := New([]byte("Senko"))
	err := c.Expect([]byte("Entis"), errBadMagic)
	assert.ErrorIs(t, err, errBadMagic)
}

func TestPutU32RoundTrip(t *testing.T) {
	buf := PutU32(nil, 0xdeadbeef)
	c := New(buf)
	v, err := c.TakeU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)
}

func TestPutU64RoundTrip(t *testing.T) {
	buf := PutU64(nil, 0x0102030405060708)
	c := New(buf)
	v, err := c.TakeU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v)
}

func assertErr(msg string) error {
	return &simpleError{msg}
}

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }
