package cotopha

import (
	"errors"
	"fmt"
)

// Sentinel errors for the stable taxonomy spec'd for the codec (compared
// with errors.Is, same shape as the teacher's internal/errors package).
var (
	ErrUnexpectedEOF    = errors.New("unexpected end of input")
	ErrBadMagic         = errors.New("bad magic")
	ErrBadAddress       = errors.New("bad address")
	ErrBadFunctionName  = errors.New("bad function name")
	ErrEpilogueNotEmpty = errors.New("epilogue is not empty")
	ErrDecodeUTF16      = errors.New("failed to decode utf-16")
	ErrDecodeUTF8       = errors.New("failed to decode utf-8")
	ErrUnknownSection   = errors.New("unknown section")
	ErrBadSection       = errors.New("bad section")
	ErrIncompatibleData = errors.New("incompatible data section")

	ErrIncompatibleGlobal = errors.New("incompatible global section")
	ErrHashMismatch       = errors.New("hash mismatch")
	ErrNoMods             = errors.New("cannot join mods if none are specified")
	ErrModsConflicts      = errors.New("mods are in conflict with each other")
)

// TagError wraps ErrUnknownSection/ErrBadSection with the offending 8-byte
// section tag, so callers can recover it without reparsing the message.
type TagError struct {
	Err error
	Tag [8]byte
}

func (e *TagError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Tag[:])
}

func (e *TagError) Unwrap() error {
	return e.Err
}

func newUnknownSection(tag [8]byte) error {
	return &TagError{Err: ErrUnknownSection, Tag: tag}
}

func newBadSection(tag [8]byte) error {
	return &TagError{Err: ErrBadSection, Tag: tag}
}

// ConflictError wraps ErrModsConflicts with the duplicated function name.
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %q was overridden twice", ErrModsConflicts, e.Name)
}

func (e *ConflictError) Unwrap() error {
	return ErrModsConflicts
}

func newModsConflicts(name string) error {
	return &ConflictError{Name: name}
}

// OffsetError annotates a parse failure with how many bytes of the input
// were consumed before it was detected (len(data) - remaining cursor
// length). It wraps the underlying taxonomy error so errors.Is/As still see
// through it; only the top-level header/section scan attaches one, matching
// where the original CLI computed and printed this offset.
type OffsetError struct {
	Err    error
	Offset int
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("%s (at byte offset %d)", e.Err, e.Offset)
}

func (e *OffsetError) Unwrap() error {
	return e.Err
}

func atOffset(err error, offset int) error {
	return &OffsetError{Err: err, Offset: offset}
}
