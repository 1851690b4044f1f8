// Package frag splits oversized logical messages into flag-delimited frame
// sequences and reassembles them on the receiving side. The first frame of
// a fragmented message carries BEGIN, the last END, intermediate frames
// neither; an unfragmented message carries both on its single frame.
package frag

import (
	"errors"
	"fmt"

	"github.com/vibing/gridwire/proto"
)

// Reassembly errors. All are wrapped around ErrProtocolViolation so callers
// can match the whole class with errors.Is.
var (
	ErrProtocolViolation = errors.New("frag: framing protocol violation")
	ErrMissingBegin      = fmt.Errorf("%w: fragment without preceding BEGIN", ErrProtocolViolation)
	ErrEndWithoutBegin   = fmt.Errorf("%w: END without preceding BEGIN", ErrProtocolViolation)
	ErrDuplicateBegin    = fmt.Errorf("%w: duplicate BEGIN", ErrProtocolViolation)
)

// Logical is one fully reassembled logical message: the decoded tuple the
// dispatch layer above consumes. Version and Type are taken from the BEGIN
// frame; Payload is the concatenation of the body bytes of every frame from
// BEGIN through END, in arrival order.
type Logical struct {
	CorrelationID uint32
	Version       uint8
	Type          uint16
	Payload       []byte
}

// partial is the accumulation state for one in-flight correlation id.
type partial struct {
	version uint8
	typ     uint16
	buf     []byte
}

// Reassembler rebuilds logical messages from physical frames arriving in
// send order. It keeps mutable per-correlation-id state and is meant to be
// driven by a single reader per connection; it is not safe for concurrent
// use. Frames of distinct correlation ids may interleave freely. A protocol
// violation discards only the offending correlation id's state.
//
// Abandoned accumulations are not timed out here; a higher layer reclaims
// them via Discard, typically on connection teardown.
type Reassembler struct {
	pending map[uint32]*partial
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[uint32]*partial)}
}

// Accept consumes one decoded frame. It returns a non-nil Logical exactly
// when the frame completes a logical message. The frame's body bytes are
// copied out, so the caller may reuse the underlying buffer immediately.
func (r *Reassembler) Accept(m *proto.Message) (*Logical, error) {
	body, err := m.Body()
	if err != nil {
		return nil, err
	}
	id := m.CorrelationID()
	begin := m.IsFlagSet(proto.BeginFlag)
	end := m.IsFlagSet(proto.EndFlag)
	p, open := r.pending[id]

	switch {
	case begin && open:
		delete(r.pending, id)
		return nil, fmt.Errorf("%w: correlation id %d", ErrDuplicateBegin, id)

	case begin && end:
		payload := make([]byte, len(body))
		copy(payload, body)
		return &Logical{
			CorrelationID: id,
			Version:       m.Version(),
			Type:          m.Type(),
			Payload:       payload,
		}, nil

	case begin:
		p = &partial{version: m.Version(), typ: m.Type()}
		p.buf = append(p.buf, body...)
		r.pending[id] = p
		return nil, nil

	case !open && end:
		return nil, fmt.Errorf("%w: correlation id %d", ErrEndWithoutBegin, id)

	case !open:
		return nil, fmt.Errorf("%w: correlation id %d", ErrMissingBegin, id)

	case end:
		delete(r.pending, id)
		p.buf = append(p.buf, body...)
		return &Logical{
			CorrelationID: id,
			Version:       p.version,
			Type:          p.typ,
			Payload:       p.buf,
		}, nil

	default:
		p.buf = append(p.buf, body...)
		return nil, nil
	}
}

// Pending returns the number of correlation ids with incomplete accumulation.
func (r *Reassembler) Pending() int {
	return len(r.pending)
}

// Discard drops any accumulation state for the given correlation id and
// reports whether there was any.
func (r *Reassembler) Discard(correlationID uint32) bool {
	_, ok := r.pending[correlationID]
	delete(r.pending, correlationID)
	return ok
}
