package cotopha

import (
	"sort"
	"unicode/utf16"

	"golang.org/x/crypto/sha3"

	"github.com/dotandev/cotopha-patcher/internal/cotopha/cursor"
)

// magic is the fixed 56-byte CSX header: the "Entis" signature followed by
// the padding pattern that embeds the "Cotopha Image file" banner.
var magic = []byte("Entis\x1a\x00\x00\xff\xff\xff\xff\x00\x00\x00\x00Cotopha Image file\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")

const headerSize = 64

var sectionOrder = [][8]byte{
	tag("image   "),
	tag("function"),
	tag("global  "),
	tag("data    "),
	tag("conststr"),
	tag("linkinf "),
}

func tag(s string) [8]byte {
	var t [8]byte
	copy(t[:], s)
	return t
}

// ParseBase parses a full CSX base image. The SHA3-224 of data is computed
// over the raw input before any section is consumed.
func ParseBase(data []byte) (*Image, error) {
	return parse(data, true)
}

// ParseMod parses a CSX mod overlay against base, stamping the mod's
// BaseHash with base's so later merge operations can check compatibility.
func ParseMod(base *Image, data []byte) (*Image, error) {
	mods, err := parse(data, false)
	if err != nil {
		return nil, err
	}
	mods.BaseHash = base.BaseHash
	return mods, nil
}

func parse(data []byte, base bool) (*Image, error) {
	var baseHash Hash
	if base {
		baseHash = Hash(sha3.Sum224(data))
	}

	c := cursor.New(data)
	header, err := c.Take(headerSize)
	if err != nil {
		return nil, atOffset(ErrUnexpectedEOF, c.Offset())
	}
	for i, b := range magic {
		if header[i] != b {
			return nil, atOffset(ErrBadMagic, c.Offset())
		}
	}
	// header[56:64] is the total-minus-64 length field; ignored on parse.

	sections := map[[8]byte][]byte{}
	for !c.IsEmpty() {
		tagBytes, err := c.Take(8)
		if err != nil {
			return nil, atOffset(ErrUnexpectedEOF, c.Offset())
		}
		var t [8]byte
		copy(t[:], tagBytes)

		length, err := c.TakeU64()
		if err != nil {
			return nil, atOffset(ErrUnexpectedEOF, c.Offset())
		}
		body, err := c.Take(int(length))
		if err != nil {
			return nil, atOffset(ErrUnexpectedEOF, c.Offset())
		}

		if !knownSection(t) {
			return nil, atOffset(newUnknownSection(t), c.Offset())
		}
		sections[t] = body
	}

	image := sections[tag("image   ")]
	function := sections[tag("function")]
	global := sections[tag("global  ")]
	data2 := sections[tag("data    ")]
	conststr := sections[tag("conststr")]
	linkinf := sections[tag("linkinf ")]

	if len(global) == 0 {
		return nil, newBadSection(tag("global  "))
	}
	if len(data2) == 0 {
		return nil, newBadSection(tag("data    "))
	}
	if len(conststr) != 0 && string(conststr) != "\x00\x00\x00\x00" {
		return nil, newBadSection(tag("conststr"))
	}
	if base && len(linkinf) != 0 && !isZero(linkinf) {
		return nil, newBadSection(tag("linkinf "))
	}

	functions, err := parseFunctionDirectory(image, function)
	if err != nil {
		return nil, err
	}

	var baseFunc map[string]int
	if base {
		baseFunc = map[string]int{}
		for i, f := range functions {
			if len(f.Name) == 0 || f.Name[0] != '@' {
				baseFunc[f.Name] = i
			}
		}
	} else {
		baseFunc = map[string]int{}
	}

	return &Image{
		BaseHash:  baseHash,
		BaseFunc:  baseFunc,
		ModsUsed:  map[string]struct{}{},
		Global:    append([]byte(nil), global...),
		Data:      append([]byte(nil), data2...),
		Functions: functions,
	}, nil
}

func knownSection(t [8]byte) bool {
	for _, s := range sectionOrder {
		if s == t {
			return true
		}
	}
	return false
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// prologueWire is the UTF-16LE encoding of "@Initialize", used to validate
// prologue directory entries without decoding them.
var prologueWire = utf16LE("@Initialize")

func utf16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2)
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func parseFunctionDirectory(image, function []byte) ([]Function, error) {
	fc := cursor.New(function)

	prologueCount, err := fc.TakeU32()
	if err != nil {
		return nil, ErrUnexpectedEOF
	}
	addrs := make([]uint32, 0, prologueCount)
	for i := uint32(0); i < prologueCount; i++ {
		addr, err := fc.TakeU32()
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		if err := validateName(image, addr, prologueWire); err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}

	epilogueCount, err := fc.TakeU32()
	if err != nil {
		return nil, ErrUnexpectedEOF
	}
	if epilogueCount != 0 {
		return nil, ErrEpilogueNotEmpty
	}

	namedCount, err := fc.TakeU32()
	if err != nil {
		return nil, ErrUnexpectedEOF
	}
	for i := uint32(0); i < namedCount; i++ {
		addr, err := fc.TakeU32()
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		charCount, err := fc.TakeU32()
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		name, err := fc.Take(int(charCount) * 2)
		if err != nil {
			return nil, ErrUnexpectedEOF
		}
		if err := validateName(image, addr, name); err != nil {
			return nil, err
		}
		if len(name) >= 2 && name[0] == '@' && name[1] == 0 {
			return nil, ErrBadFunctionName
		}
		addrs = append(addrs, addr)
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	addrs = append(addrs, uint32(len(image)))
	sizes := make([]uint32, len(addrs)-1)
	for i := range sizes {
		sizes[i] = addrs[i+1] - addrs[i]
	}

	rest := image
	functions := make([]Function, 0, len(sizes))
	for _, size := range sizes {
		nameBytes, err := extractName(rest, 0)
		if err != nil {
			return nil, err
		}
		name, err := decodeUTF16(nameBytes)
		if err != nil {
			return nil, err
		}
		if uint32(len(rest)) < size {
			return nil, ErrUnexpectedEOF
		}
		bytecode := append([]byte(nil), rest[:size]...)
		rest = rest[size:]
		functions = append(functions, Function{Name: name, Bytecode: bytecode})
	}

	return functions, nil
}

func validateName(image []byte, addr uint32, want []byte) error {
	got, err := extractName(image, addr)
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return ErrBadFunctionName
	}
	for i := range want {
		if got[i] != want[i] {
			return ErrBadFunctionName
		}
	}
	return nil
}

// extractName reads the name field embedded at addr in image: a 0x04 tag
// byte, a u32 LE character count, then 2*count bytes of UTF-16LE.
func extractName(image []byte, addr uint32) ([]byte, error) {
	if uint64(addr) > uint64(len(image)) {
		return nil, ErrBadAddress
	}
	c := cursor.New(image[addr:])
	tagByte, err := c.TakeByte()
	if err != nil || tagByte != 0x04 {
		return nil, ErrBadAddress
	}
	charCount, err := c.TakeU32()
	if err != nil {
		return nil, ErrBadAddress
	}
	name, err := c.Take(int(charCount) * 2)
	if err != nil {
		return nil, ErrBadAddress
	}
	return name, nil
}

func decodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", ErrDecodeUTF16
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}

	// utf16.Decode silently substitutes U+FFFD for lone surrogates; the
	// wire format requires well-formed UTF-16LE, so reject those ourselves.
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u <= 0xDBFF: // high surrogate
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] > 0xDFFF {
				return "", ErrDecodeUTF16
			}
			i++
		case u >= 0xDC00 && u <= 0xDFFF: // stray low surrogate
			return "", ErrDecodeUTF16
		}
	}

	return string(utf16.Decode(units)), nil
}
