// Package cotopha implements the CSX container codec: parsing, rebuilding,
// and the overlay merge algebra used by the patcher. See
// internal/cotopha/compact for the companion CCO delta archive codec.
package cotopha

// Hash identifies a specific base CSX image by the SHA3-224 of its raw
// input bytes, computed before any parsing.
type Hash [28]byte

// Function is a single named, opaque unit of bytecode. Bytecode begins
// with the function's own name field: a 0x04 tag byte, a u32 LE character
// count, then that many UTF-16LE code units.
type Function struct {
	Name     string
	Bytecode []byte
}

// Image is the in-memory model of a CSX container: the decoded function
// directory plus the raw global/data blobs.
//
// BaseHash is the SHA3-224 of the original input for a base image, or the
// hash stamped in by ParseMod for a mod image. BaseFunc maps non-"@"
// function names to their index in Functions and is populated only for
// base images. ModsUsed tracks which non-"@" names a base has already had
// overridden by ApplyAllMods, to detect a second mod trying to replace the
// same name.
type Image struct {
	BaseHash  Hash
	BaseFunc  map[string]int
	ModsUsed  map[string]struct{}
	Global    []byte
	Data      []byte
	Functions []Function
}

// prologueName is the only function name allowed to start with "@".
const prologueName = "@Initialize"
