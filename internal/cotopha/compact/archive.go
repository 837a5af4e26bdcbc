// Package compact implements the CCO compact archive codec: a base-relative,
// per-entry delta-compressed companion to the full CSX container handled by
// internal/cotopha.
package compact

import (
	"unicode/utf8"

	"github.com/dotandev/cotopha-patcher/internal/cotopha"
	"github.com/dotandev/cotopha-patcher/internal/cotopha/cursor"
)

var magic = []byte("Senko\x1a\x00\x00")

const hashSize = 28
const headerSize = len("Senko\x1a\x00\x00") + hashSize

// Distinguished entry names carrying the global/data blobs. They can never
// collide with a real function name: names are UTF-16LE-origin text and
// never contain ASCII spaces in this runtime.
const (
	globalEntryName = " global "
	dataEntryName   = " data "
)

// CompactEntry is one name-tagged, optionally zlib-compressed, optionally
// base-relative payload.
type CompactEntry struct {
	Name string
	Zlib bool
	Data []byte
}

// Archive is the in-memory model of a CCO file: the base it targets plus an
// ordered sequence of entries.
type Archive struct {
	BaseHash cotopha.Hash
	Entries  []CompactEntry
}

// Parse reads a CCO byte stream. Entries run to end-of-stream with no
// terminator; each is name-bytes, a 0xC0/0xC1 flag byte, a u32 LE length,
// then the payload.
func Parse(data []byte) (*Archive, error) {
	c := cursor.New(data)
	if err := c.Expect(magic, cotopha.ErrBadMagic); err != nil {
		return nil, err
	}
	hashBytes, err := c.Take(hashSize)
	if err != nil {
		return nil, cotopha.ErrUnexpectedEOF
	}
	var baseHash cotopha.Hash
	copy(baseHash[:], hashBytes)

	var entries []CompactEntry
	for !c.IsEmpty() {
		nameBytes, flag, err := takeNameAndFlag(c)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(nameBytes) {
			return nil, cotopha.ErrDecodeUTF8
		}
		length, err := c.TakeU32()
		if err != nil {
			return nil, cotopha.ErrUnexpectedEOF
		}
		payload, err := c.Take(int(length))
		if err != nil {
			return nil, cotopha.ErrUnexpectedEOF
		}

		entries = append(entries, CompactEntry{
			Name: string(nameBytes),
			Zlib: flag == 0xC1,
			Data: append([]byte(nil), payload...),
		})
	}

	return &Archive{BaseHash: baseHash, Entries: entries}, nil
}

// takeNameAndFlag reads the name run up to (exclusive) the first byte whose
// value is 0xC0 or 0xC1, then consumes that terminator byte.
func takeNameAndFlag(c *cursor.Cursor) ([]byte, byte, error) {
	rest := c.Bytes()
	idx := -1
	for i, b := range rest {
		if b&^1 == 0xC0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, 0, cotopha.ErrUnexpectedEOF
	}
	name, err := c.Take(idx)
	if err != nil {
		return nil, 0, cotopha.ErrUnexpectedEOF
	}
	flag, err := c.TakeByte()
	if err != nil {
		return nil, 0, cotopha.ErrUnexpectedEOF
	}
	return name, flag, nil
}

// Rebuild is the inverse of Parse: for each entry, emit name bytes, the
// flag byte, the u32 LE length, then the payload.
func (a *Archive) Rebuild() []byte {
	out := make([]byte, 0, 256)
	out = append(out, magic...)
	out = append(out, a.BaseHash[:]...)

	for _, e := range a.Entries {
		out = append(out, []byte(e.Name)...)
		if e.Zlib {
			out = append(out, 0xC1)
		} else {
			out = append(out, 0xC0)
		}
		out = cursor.PutU32(out, uint32(len(e.Data)))
		out = append(out, e.Data...)
	}

	return out
}
