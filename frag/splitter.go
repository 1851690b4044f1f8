package frag

import (
	"errors"

	"github.com/vibing/gridwire/proto"
)

// ErrMaxFrameTooSmall means the configured maximum frame size leaves no
// room for payload after the fixed header.
var ErrMaxFrameTooSmall = errors.New("frag: max frame size must exceed header size")

// Split fragments a logical payload into physical frames no larger than
// maxFrameSize bytes each, all sharing correlationID. The first frame
// carries BEGIN, the last END; when the whole payload fits in one frame
// that frame carries both. Each returned Message owns a freshly allocated
// buffer, so frames may be written out concurrently.
//
// An empty payload yields one BEGIN|END frame with no body.
func Split(payload []byte, correlationID uint32, version uint8, msgType uint16, maxFrameSize int) ([]*proto.Message, error) {
	if maxFrameSize <= proto.HeaderSize {
		return nil, ErrMaxFrameTooSmall
	}
	chunk := maxFrameSize - proto.HeaderSize

	n := (len(payload) + chunk - 1) / chunk
	if n == 0 {
		n = 1
	}

	frames := make([]*proto.Message, 0, n)
	for i := 0; i < n; i++ {
		part := payload[i*chunk:]
		if len(part) > chunk {
			part = part[:chunk]
		}

		var flags uint8
		if i == 0 {
			flags |= proto.BeginFlag
		}
		if i == n-1 {
			flags |= proto.EndFlag
		}

		buf := proto.NewBuffer(make([]byte, proto.HeaderSize+len(part)))
		m := &proto.Message{}
		if err := m.WrapForEncode(buf, 0); err != nil {
			return nil, err
		}
		m.SetCorrelationID(correlationID).
			SetVersion(version).
			SetType(msgType).
			SetFlags(flags)
		buf.Put(proto.HeaderSize, part)
		m.SetFrameLength(uint32(proto.HeaderSize + len(part)))
		frames = append(frames, m)
	}
	return frames, nil
}
