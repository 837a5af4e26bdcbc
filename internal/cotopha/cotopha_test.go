package cotopha

import (
	"bytes"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/cotopha-patcher/internal/cotopha/cursor"
)

func nameField(name string) []byte {
	units := utf16.Encode([]rune(name))
	out := []byte{0x04}
	out = append(out, byte(len(units)), byte(len(units)>>8), byte(len(units)>>16), byte(len(units)>>24))
	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}
	return out
}

func fn(name string, body ...byte) Function {
	return Function{Name: name, Bytecode: append(nameField(name), body...)}
}

func newImage(global, data []byte, functions ...Function) *Image {
	return &Image{
		BaseFunc:  map[string]int{},
		ModsUsed:  map[string]struct{}{},
		Global:    global,
		Data:      data,
		Functions: functions,
	}
}

func TestRoundTripMinimalBase(t *testing.T) {
	img := newImage([]byte{0}, []byte{0},
		fn("@Initialize"),
		fn("Hello"),
	)

	built := img.Rebuild()
	parsed, err := ParseBase(built)
	require.NoError(t, err)

	assert.Equal(t, img.Global, parsed.Global)
	assert.Equal(t, img.Data, parsed.Data)
	require.Len(t, parsed.Functions, 2)

	names := map[string]bool{}
	for _, f := range parsed.Functions {
		names[f.Name] = true
	}
	assert.True(t, names["@Initialize"])
	assert.True(t, names["Hello"])

	rebuilt2 := parsed.Rebuild()
	reparsed, err := ParseBase(rebuilt2)
	require.NoError(t, err)
	assert.Equal(t, parsed.Global, reparsed.Global)
	assert.Equal(t, parsed.Data, reparsed.Data)
	assert.Equal(t, len(parsed.Functions), len(reparsed.Functions))
}

func TestDirectoryOrderingAfterApply(t *testing.T) {
	base := newImage([]byte{1, 2, 3}, []byte{1},
		fn("A"), fn("B", 0), fn("C"),
	)
	base.Rebuild() // sanity, discarded
	baseBuilt := base.Rebuild()
	parsedBase, err := ParseBase(baseBuilt)
	require.NoError(t, err)

	mod := newImage([]byte{1, 2, 3}, []byte{1},
		fn("B", 9, 9), fn("D"),
	)
	mod.BaseHash = parsedBase.BaseHash

	require.NoError(t, parsedBase.ApplyAllMods(mod))
	out := parsedBase.Rebuild()

	reparsed, err := ParseBase(out)
	require.NoError(t, err)
	names := make([]string, 0, len(reparsed.Functions))
	for _, f := range reparsed.Functions {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, names)

	// Read the rebuilt named directory itself (after the section's tag and
	// length, and its zero prologue/epilogue counts) and check it is sorted
	// by embedded UTF-16LE name.
	fc := cursor.New(out[bytes.Index(out, []byte("function"))+16:])
	for _, want := range []uint32{0, 0, 4} { // prologue, epilogue, named counts
		got, err := fc.TakeU32()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	dirNames := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		_, err := fc.TakeU32() // address
		require.NoError(t, err)
		chars, err := fc.TakeU32()
		require.NoError(t, err)
		raw, err := fc.Take(int(chars) * 2)
		require.NoError(t, err)
		name, err := decodeUTF16(raw)
		require.NoError(t, err)
		dirNames = append(dirNames, name)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, dirNames)

	for _, f := range reparsed.Functions {
		if f.Name == "B" {
			assert.Equal(t, fn("B", 9, 9).Bytecode, f.Bytecode)
		}
	}
}

func TestConcatModsThenApplyConflict(t *testing.T) {
	base := newImage([]byte{0}, []byte{0}, fn("@Initialize"))
	baseBuilt := base.Rebuild()
	parsedBase, err := ParseBase(baseBuilt)
	require.NoError(t, err)

	mod1 := newImage([]byte{0}, []byte{0}, fn("X"))
	mod1.BaseHash = parsedBase.BaseHash
	mod2 := newImage([]byte{0}, []byte{0}, fn("X"))
	mod2.BaseHash = parsedBase.BaseHash

	merged, err := ConcatMods([]*Image{mod1, mod2})
	require.NoError(t, err)

	err = parsedBase.ApplyAllMods(merged)
	require.Error(t, err)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "X", conflict.Name)
}

func TestConcatModsPrefixMonotoneGlobal(t *testing.T) {
	base := newImage([]byte{1, 2, 3}, []byte{0}, fn("@Initialize"))
	baseBuilt := base.Rebuild()
	parsedBase, err := ParseBase(baseBuilt)
	require.NoError(t, err)

	mod1 := newImage([]byte{1, 2, 3, 4}, []byte{0})
	mod1.BaseHash = parsedBase.BaseHash
	mod2 := newImage([]byte{1, 2, 3, 4, 5}, []byte{0})
	mod2.BaseHash = parsedBase.BaseHash

	merged, err := ConcatMods([]*Image{mod1, mod2})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, merged.Global)

	// base.Global ([1,2,3]) does not extend the merged mod's ([1,2,3,4,5]):
	// ApplyAllMods requires the base blob to extend the mod's, so applying
	// directly would fail with ErrIncompatibleGlobal. Extend the base first
	// to exercise the success path.
	parsedBase.Global = []byte{1, 2, 3, 4, 5}
	require.NoError(t, parsedBase.ApplyAllMods(merged))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, parsedBase.Global)
}

func TestHashMismatch(t *testing.T) {
	base := newImage([]byte{0}, []byte{0}, fn("@Initialize"))
	baseBuilt := base.Rebuild()
	parsedBase, err := ParseBase(baseBuilt)
	require.NoError(t, err)

	mod := newImage([]byte{0}, []byte{0}, fn("X"))
	mod.BaseHash = Hash{0xff} // deliberately wrong

	err = parsedBase.ApplyAllMods(mod)
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestParseBadMagic(t *testing.T) {
	_, err := ParseBase(make([]byte, 64))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseUnexpectedEOF(t *testing.T) {
	_, err := ParseBase(magic[:10])
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestNoModsOnEmptyConcat(t *testing.T) {
	_, err := ConcatMods(nil)
	assert.ErrorIs(t, err, ErrNoMods)
}

func TestBadFunctionNameOnNonInitializePrologue(t *testing.T) {
	base := newImage([]byte{0}, []byte{0}, fn("@Initialize"))
	baseBuilt := base.Rebuild()
	parsedBase, err := ParseBase(baseBuilt)
	require.NoError(t, err)

	mod := newImage([]byte{0}, []byte{0}, fn("@Other"))
	mod.BaseHash = parsedBase.BaseHash

	err = parsedBase.ApplyAllMods(mod)
	assert.ErrorIs(t, err, ErrBadFunctionName)
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindCSX, DetectKind([]byte("Entis\x1a\x00\x00rest")))
	assert.Equal(t, KindCCO, DetectKind([]byte("Senko\x1a\x00\x00rest")))
	assert.Equal(t, KindUnknown, DetectKind([]byte("whatever")))
}
