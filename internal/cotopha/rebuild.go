package cotopha

import (
	"sort"

	"github.com/dotandev/cotopha-patcher/internal/cotopha/cursor"
)

// Rebuild serializes img back into a byte-exact CSX image: magic, then
// sections in the canonical order image/function/global/data/conststr/linkinf.
func (img *Image) Rebuild() []byte {
	out := make([]byte, 0, 256)
	out = append(out, magic...)
	out = cursor.PutU64(out, 0) // length placeholder, patched below

	out = appendSection(out, "image   ", func(buf []byte) []byte {
		for _, f := range img.Functions {
			buf = append(buf, f.Bytecode...)
		}
		return buf
	})

	out = appendSection(out, "function", func(buf []byte) []byte {
		type named struct {
			addr uint32
			name []byte
		}
		var prologue []uint32
		var funcs []named

		addr := uint32(0)
		for _, f := range img.Functions {
			if f.Name == prologueName {
				prologue = append(prologue, addr)
			} else {
				name, err := extractName(f.Bytecode, 0)
				if err != nil {
					// Bytecode for every Function came from a successful
					// parse (or a caller-constructed Function whose
					// invariant matches §3); a malformed embedded name
					// here is a programmer error, not a runtime one.
					panic(err)
				}
				funcs = append(funcs, named{addr: addr, name: name})
			}
			addr += uint32(len(f.Bytecode))
		}

		sort.SliceStable(funcs, func(i, j int) bool {
			return cmpUTF16(funcs[i].name, funcs[j].name) < 0
		})

		buf = cursor.PutU32(buf, uint32(len(prologue)))
		for _, a := range prologue {
			buf = cursor.PutU32(buf, a)
		}
		buf = cursor.PutU32(buf, 0) // epilogue count
		buf = cursor.PutU32(buf, uint32(len(funcs)))
		for _, f := range funcs {
			buf = cursor.PutU32(buf, f.addr)
			buf = cursor.PutU32(buf, uint32(len(f.name)/2))
			buf = append(buf, f.name...)
		}
		return buf
	})

	out = appendSection(out, "global  ", func(buf []byte) []byte {
		return append(buf, img.Global...)
	})
	out = appendSection(out, "data    ", func(buf []byte) []byte {
		return append(buf, img.Data...)
	})
	out = appendSection(out, "conststr", func(buf []byte) []byte {
		return cursor.PutU32(buf, 0)
	})
	out = appendSection(out, "linkinf ", func(buf []byte) []byte {
		for i := 0; i < 4; i++ {
			buf = cursor.PutU32(buf, 0)
		}
		return buf
	})

	size := uint64(len(out) - headerSize)
	putU64At(out, headerSize-8, size)
	return out
}

// appendSection writes an 8-byte tag, a placeholder u64 length, runs body to
// append the section's contents, then backpatches the real length.
func appendSection(out []byte, tag string, body func([]byte) []byte) []byte {
	out = append(out, []byte(tag)...)
	lenAt := len(out)
	out = cursor.PutU64(out, 0)
	start := len(out)
	out = body(out)
	putU64At(out, lenAt, uint64(len(out)-start))
	return out
}

func putU64At(buf []byte, at int, n uint64) {
	for i := 0; i < 8; i++ {
		buf[at+i] = byte(n >> (8 * uint(i)))
	}
}

// cmpUTF16 orders two embedded UTF-16LE name byte-runs by 16-bit code-unit
// lexicographic order: compare successive little-endian code units,
// shorter name wins a shared-prefix tie. This is the order the runtime
// binary-searches the named directory by, per the container's on-disk
// contract — not Unicode code-point or NFC-normalized order.
func cmpUTF16(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i+1 < n; i += 2 {
		ua := uint16(a[i]) | uint16(a[i+1])<<8
		ub := uint16(b[i]) | uint16(b[i+1])<<8
		if ua != ub {
			if ua < ub {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
