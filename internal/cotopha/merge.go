package cotopha

import (
	"bytes"
	"errors"
)

// ConcatMods combines an ordered, non-empty sequence of mod images into one.
// Mods must share a base hash; global and data blobs must be prefix-related
// (the longer one wins); functions are appended in order.
func ConcatMods(mods []*Image) (*Image, error) {
	if len(mods) == 0 {
		return nil, ErrNoMods
	}

	acc := &Image{
		BaseHash:  mods[0].BaseHash,
		BaseFunc:  map[string]int{},
		ModsUsed:  map[string]struct{}{},
		Global:    append([]byte(nil), mods[0].Global...),
		Data:      append([]byte(nil), mods[0].Data...),
		Functions: append([]Function(nil), mods[0].Functions...),
	}

	for _, m := range mods[1:] {
		if acc.BaseHash != m.BaseHash {
			return nil, ErrHashMismatch
		}

		global, err := widerPrefix(acc.Global, m.Global)
		if err != nil {
			return nil, ErrIncompatibleGlobal
		}
		acc.Global = global

		data, err := widerPrefix(acc.Data, m.Data)
		if err != nil {
			return nil, ErrIncompatibleData
		}
		acc.Data = data

		acc.Functions = append(acc.Functions, m.Functions...)
	}

	return acc, nil
}

// widerPrefix returns whichever of a, b extends the other, or an error if
// neither is a prefix of the other.
func widerPrefix(a, b []byte) ([]byte, error) {
	if bytes.HasPrefix(b, a) {
		return b, nil
	}
	if bytes.HasPrefix(a, b) {
		return a, nil
	}
	return nil, errIncompatible
}

var errIncompatible = errors.New("incompatible blob")

// ApplyAllMods overlays mods onto the base image in place. base.Global and
// base.Data must extend the mod's (i.e. the mod never grew past what
// concat_mods already folded into it); they are then overwritten wholesale
// with the mod's values, which is a no-op when lengths match and otherwise
// replaces the base content with whatever ConcatMods settled on.
//
// Each mod function either replaces an existing base function (by name, in
// place) or is appended. A name can only be overridden once across all
// applied mods; a second attempt fails with ErrModsConflicts. "@"-prefixed
// names must be exactly "@Initialize"; multiple prologue entries from mods
// are all kept (the runtime's tolerance for more than one is left to it,
// not to this codec).
func (base *Image) ApplyAllMods(mods *Image) error {
	if base.BaseHash != mods.BaseHash {
		return ErrHashMismatch
	}
	if !bytes.HasPrefix(base.Global, mods.Global) {
		return ErrIncompatibleGlobal
	}
	if !bytes.HasPrefix(base.Data, mods.Data) {
		return ErrIncompatibleData
	}

	base.Global = mods.Global
	base.Data = mods.Data

	for _, f := range mods.Functions {
		if len(f.Name) > 0 && f.Name[0] == '@' {
			if f.Name != prologueName {
				return ErrBadFunctionName
			}
			base.Functions = append(base.Functions, f)
			continue
		}

		if _, used := base.ModsUsed[f.Name]; used {
			return newModsConflicts(f.Name)
		}
		base.ModsUsed[f.Name] = struct{}{}

		if index, ok := base.BaseFunc[f.Name]; ok {
			base.Functions[index] = f
		} else {
			base.Functions = append(base.Functions, f)
		}
	}

	return nil
}
