package compact

import (
	"bytes"
	"io"

	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
	"github.com/klauspost/compress/zlib"

	"github.com/dotandev/cotopha-patcher/internal/cotopha"
)

// Compress produces a CCO archive holding only what mods adds on top of
// base: entries for the global and data blobs, then one entry per mod
// function, each diffed against the base's same-named function (if any)
// and zlib-compressed when that is smaller than storing it raw.
func Compress(base, mods *cotopha.Image) (*Archive, error) {
	if base.BaseHash != mods.BaseHash {
		return nil, cotopha.ErrHashMismatch
	}
	if !bytes.HasPrefix(base.Global, mods.Global) {
		return nil, cotopha.ErrIncompatibleGlobal
	}
	if !bytes.HasPrefix(base.Data, mods.Data) {
		return nil, cotopha.ErrIncompatibleData
	}

	entries := make([]CompactEntry, 0, 2+len(mods.Functions))

	e, err := makeEntry(globalEntryName, base.Global, mods.Global)
	if err != nil {
		return nil, err
	}
	entries = append(entries, e)

	e, err = makeEntry(dataEntryName, base.Data, mods.Data)
	if err != nil {
		return nil, err
	}
	entries = append(entries, e)

	for _, f := range mods.Functions {
		var baseData []byte
		if idx, ok := base.BaseFunc[f.Name]; ok {
			baseData = base.Functions[idx].Bytecode
		}
		e, err := makeEntry(f.Name, baseData, f.Bytecode)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return &Archive{BaseHash: base.BaseHash, Entries: entries}, nil
}

// makeEntry encodes one entry: diff against baseData when present (nil
// means "no base counterpart"), zlib-compress the stream, and keep the
// compressed form only if it is strictly smaller than the raw payload.
func makeEntry(name string, baseData, modsData []byte) (CompactEntry, error) {
	var stream []byte
	if baseData != nil {
		d, err := bsdiff.Bytes(baseData, modsData)
		if err != nil {
			return CompactEntry{}, err
		}
		stream = d
	} else {
		stream = modsData
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return CompactEntry{}, err
	}
	if _, err := w.Write(stream); err != nil {
		return CompactEntry{}, err
	}
	if err := w.Close(); err != nil {
		return CompactEntry{}, err
	}

	if buf.Len() < len(modsData) {
		return CompactEntry{Name: name, Zlib: true, Data: buf.Bytes()}, nil
	}
	return CompactEntry{Name: name, Zlib: false, Data: append([]byte(nil), modsData...)}, nil
}

// Decompress reconstructs a mod CSX image from the archive's entries,
// patching zlib-compressed entries against the matching base bytes when
// one exists.
func (a *Archive) Decompress(base *cotopha.Image) (*cotopha.Image, error) {
	if base.BaseHash != a.BaseHash {
		return nil, cotopha.ErrHashMismatch
	}

	mods := &cotopha.Image{
		BaseHash: a.BaseHash,
		BaseFunc: map[string]int{},
		ModsUsed: map[string]struct{}{},
	}

	for _, e := range a.Entries {
		bytecode, err := unpack(e, base)
		if err != nil {
			return nil, err
		}
		switch e.Name {
		case globalEntryName:
			mods.Global = bytecode
		case dataEntryName:
			mods.Data = bytecode
		default:
			mods.Functions = append(mods.Functions, cotopha.Function{Name: e.Name, Bytecode: bytecode})
		}
	}

	return mods, nil
}

func unpack(e CompactEntry, base *cotopha.Image) ([]byte, error) {
	if !e.Zlib {
		return append([]byte(nil), e.Data...), nil
	}

	r, err := zlib.NewReader(bytes.NewReader(e.Data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	diff, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var baseData []byte
	switch e.Name {
	case globalEntryName:
		baseData = base.Global
	case dataEntryName:
		baseData = base.Data
	default:
		if idx, ok := base.BaseFunc[e.Name]; ok {
			baseData = base.Functions[idx].Bytecode
		}
	}

	if baseData == nil {
		return diff, nil
	}
	return bspatch.Bytes(baseData, diff)
}
