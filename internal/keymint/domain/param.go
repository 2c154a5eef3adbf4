package domain

import "bytes"

// Param is a single authorization tag with its typed value. A Param is
// immutable once created; Blob contents must not be modified by callers.
type Param struct {
	Tag Tag

	// Exactly one of the following carries the value, selected by Tag.Type():
	// Uint for enum, uint, ulong and date (milliseconds since epoch) types,
	// Bool for boolean tags, Blob for byte-blob and bignum tags.
	Uint uint64
	Bool bool
	Blob []byte
}

// NewEnum creates a Param for an enum-typed tag.
func NewEnum(tag Tag, value uint64) Param {
	return Param{Tag: tag, Uint: value}
}

// NewUint creates a Param for a uint or ulong typed tag.
func NewUint(tag Tag, value uint64) Param {
	return Param{Tag: tag, Uint: value}
}

// NewDate creates a Param for a date-typed tag from milliseconds since epoch.
func NewDate(tag Tag, millis uint64) Param {
	return Param{Tag: tag, Uint: millis}
}

// NewBool creates a Param for a boolean tag. Boolean tags are present/absent
// markers; Value is always true for a present tag.
func NewBool(tag Tag) Param {
	return Param{Tag: tag, Bool: true}
}

// NewBlob creates a Param for a byte-blob tag. The blob is copied so later
// mutation of the input cannot alter the Param.
func NewBlob(tag Tag, value []byte) Param {
	blob := make([]byte, len(value))
	copy(blob, value)
	return Param{Tag: tag, Blob: blob}
}

// Equal reports whether two params carry the same tag and value.
func (p Param) Equal(other Param) bool {
	if p.Tag != other.Tag {
		return false
	}
	switch p.Tag.Type() {
	case TypeBool:
		return p.Bool == other.Bool
	case TypeBytes, TypeBignum:
		return bytes.Equal(p.Blob, other.Blob)
	default:
		return p.Uint == other.Uint
	}
}

// Clone returns a deep copy of the param.
func (p Param) Clone() Param {
	clone := p
	if p.Blob != nil {
		clone.Blob = make([]byte, len(p.Blob))
		copy(clone.Blob, p.Blob)
	}
	return clone
}
