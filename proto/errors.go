package proto

import "errors"

// Codec errors.
var (
	// ErrShortBuffer means the wrapped buffer region cannot hold a frame header.
	ErrShortBuffer = errors.New("proto: buffer shorter than frame header")
	// ErrOutOfBounds means a read or write would touch bytes outside the
	// supplied buffer region. The frame must be treated as corrupt.
	ErrOutOfBounds = errors.New("proto: access outside buffer bounds")
	// ErrNilVarData means a nil slice was passed to PutVarData.
	ErrNilVarData = errors.New("proto: var data must not be nil")
)
