package proto

// Frame header byte layout. All multi-byte fields are little-endian.
//
//	+-+---------------------------------------------------------------+
//	|R|                      Frame Length                             |
//	+-+---------------------------------------------------------------+
//	|R|                     Correlation Id                            |
//	+-------------+-+-+-----------+---------------------------------+-+
//	|  Version    |B|E|  Flags    |               Type                |
//	+-------------+-+-+-----------+-----------------------------------+
//	|        Data Offset          |        Message Payload Data     ...
//	+-----------------------------+-----------------------------------+
//
// R marks the reserved top bit of the frame-length and correlation-id
// fields: always written as zero, masked out on read.
const (
	FrameLengthFieldOffset   = 0
	CorrelationIDFieldOffset = 4
	VersionFieldOffset       = 8
	FlagsFieldOffset         = 9
	TypeFieldOffset          = 10
	DataOffsetFieldOffset    = 12

	// HeaderSize is the size of the fixed frame header in bytes.
	HeaderSize = DataOffsetFieldOffset + 2
)

// Frame flag bits.
const (
	// BeginFlag marks the first frame of a logical message.
	BeginFlag uint8 = 0x80
	// EndFlag marks the last frame of a logical message.
	EndFlag uint8 = 0x40
	// BeginAndEndFlags marks an unfragmented single-frame message.
	BeginAndEndFlags = BeginFlag | EndFlag
)

// SizeOfVarDataLength is the size of the length prefix preceding each
// variable data segment.
const SizeOfVarDataLength = 4

// reservedBitMask strips the reserved top bit of 31-bit wire fields.
const reservedBitMask = 1<<31 - 1

// Message is a flyweight over one frame inside a caller-owned buffer.
// It holds no frame bytes itself; all field access reads and writes the
// underlying buffer at fixed offsets relative to the frame's base offset.
// A Message is valid only as long as the transport does not reuse or free
// the buffer it was wrapped over.
//
// A single buffer region must not be mutated through more than one
// Message concurrently; the codec does no locking.
type Message struct {
	buf    Buffer
	offset int // base of the frame within buf
	pos    int // data cursor, relative to the frame base
}

// WrapForEncode binds m to buffer at the given base offset and initializes
// the header for writing: dataOffset and frameLength are both set to
// HeaderSize and the data cursor is positioned at the start of the body.
func (m *Message) WrapForEncode(buffer Buffer, offset int) error {
	if offset < 0 || offset+HeaderSize > buffer.Len() {
		return ErrShortBuffer
	}
	m.buf = buffer
	m.offset = offset
	m.SetDataOffset(HeaderSize)
	m.SetFrameLength(HeaderSize)
	m.pos = HeaderSize
	return nil
}

// WrapForDecode binds m to buffer at the given base offset without mutating
// any field, and positions the data cursor at the frame's own dataOffset.
func (m *Message) WrapForDecode(buffer Buffer, offset int) error {
	if offset < 0 || offset+HeaderSize > buffer.Len() {
		return ErrShortBuffer
	}
	m.buf = buffer
	m.offset = offset
	m.pos = int(m.DataOffset())
	return nil
}

// Offset returns the frame's base offset within the underlying buffer.
func (m *Message) Offset() int {
	return m.offset
}

// DataPosition returns the data cursor, relative to the frame base. Callers
// iterating segments bound their reads with it against FrameLength.
func (m *Message) DataPosition() int {
	return m.pos
}

// SetDataPosition moves the data cursor.
func (m *Message) SetDataPosition(pos int) *Message {
	m.pos = pos
	return m
}

// FrameLength returns the total byte length of this physical frame,
// header included. The reserved top bit is masked out.
func (m *Message) FrameLength() uint32 {
	return m.buf.Uint32(m.offset+FrameLengthFieldOffset) & reservedBitMask
}

// SetFrameLength writes the frame length field, clearing the reserved bit.
func (m *Message) SetFrameLength(length uint32) *Message {
	m.buf.PutUint32(m.offset+FrameLengthFieldOffset, length&reservedBitMask)
	return m
}

// CorrelationID returns the correlation id grouping all frames of one
// logical message. The reserved top bit is masked out.
func (m *Message) CorrelationID() uint32 {
	return m.buf.Uint32(m.offset+CorrelationIDFieldOffset) & reservedBitMask
}

// SetCorrelationID writes the correlation id field, clearing the reserved bit.
func (m *Message) SetCorrelationID(id uint32) *Message {
	m.buf.PutUint32(m.offset+CorrelationIDFieldOffset, id&reservedBitMask)
	return m
}

// Version returns the protocol version field.
func (m *Message) Version() uint8 {
	return m.buf.Uint8(m.offset + VersionFieldOffset)
}

// SetVersion writes the protocol version field.
func (m *Message) SetVersion(v uint8) *Message {
	m.buf.PutUint8(m.offset+VersionFieldOffset, v)
	return m
}

// Flags returns the flags field.
func (m *Message) Flags() uint8 {
	return m.buf.Uint8(m.offset + FlagsFieldOffset)
}

// SetFlags writes the flags field. Frame length is not affected.
func (m *Message) SetFlags(flags uint8) *Message {
	m.buf.PutUint8(m.offset+FlagsFieldOffset, flags)
	return m
}

// IsFlagSet reports whether all bits of flag are set in the flags field.
func (m *Message) IsFlagSet(flag uint8) bool {
	return m.Flags()&flag == flag
}

// Type returns the 16-bit payload type code. The codec never interprets
// it; dispatch layers need the raw value preserved.
func (m *Message) Type() uint16 {
	return m.buf.Uint16(m.offset + TypeFieldOffset)
}

// SetType writes the type field. Frame length is not affected.
func (m *Message) SetType(t uint16) *Message {
	m.buf.PutUint16(m.offset+TypeFieldOffset, t)
	return m
}

// DataOffset returns the offset, relative to the frame base, where the
// fixed header ends and body data begins.
func (m *Message) DataOffset() uint16 {
	return m.buf.Uint16(m.offset + DataOffsetFieldOffset)
}

// SetDataOffset writes the dataOffset field.
func (m *Message) SetDataOffset(off uint16) *Message {
	m.buf.PutUint16(m.offset+DataOffsetFieldOffset, off)
	return m
}

// PutVarData appends one length-prefixed segment at the data cursor and
// grows frameLength by 4+len(data). A nil slice is rejected with
// ErrNilVarData before any buffer mutation; an empty non-nil slice writes
// a zero-length segment. Body bytes must only be written through this
// method, otherwise the self-describing frame length goes stale.
func (m *Message) PutVarData(data []byte) error {
	if data == nil {
		return ErrNilVarData
	}
	pos := m.offset + m.pos
	if pos+SizeOfVarDataLength+len(data) > m.buf.Len() {
		return ErrOutOfBounds
	}
	m.buf.PutUint32(pos, uint32(len(data)))
	m.buf.Put(pos+SizeOfVarDataLength, data)
	m.pos += SizeOfVarDataLength + len(data)
	m.SetFrameLength(m.FrameLength() + uint32(SizeOfVarDataLength+len(data)))
	return nil
}

// GetVarData reads the next length-prefixed segment at the data cursor
// into a newly allocated slice and advances the cursor past it. Segments
// come back strictly in append order; bounding the number of reads by
// frameLength bookkeeping is the caller's job. A declared length running
// past the underlying buffer is a corrupt frame and fails with
// ErrOutOfBounds rather than reading adjacent memory.
func (m *Message) GetVarData() ([]byte, error) {
	pos := m.offset + m.pos
	if pos+SizeOfVarDataLength > m.buf.Len() {
		return nil, ErrOutOfBounds
	}
	// Compare against the remaining space rather than summing, so a huge
	// declared length cannot wrap the check on 32-bit platforms.
	length := int(m.buf.Uint32(pos))
	if length < 0 || length > m.buf.Len()-(pos+SizeOfVarDataLength) {
		return nil, ErrOutOfBounds
	}
	data := make([]byte, length)
	copy(data, m.buf.Slice(pos+SizeOfVarDataLength, length))
	m.pos += SizeOfVarDataLength + length
	return data, nil
}

// Body returns the frame's body bytes, everything from dataOffset to
// frameLength, as a view into the underlying buffer. No copy is made.
func (m *Message) Body() ([]byte, error) {
	start := int(m.DataOffset())
	end := int(m.FrameLength())
	if start < HeaderSize || end < start || m.offset+end > m.buf.Len() {
		return nil, ErrOutOfBounds
	}
	return m.buf.Slice(m.offset+start, end-start), nil
}

// Bytes returns the complete encoded frame, header included, as a view
// into the underlying buffer.
func (m *Message) Bytes() ([]byte, error) {
	end := int(m.FrameLength())
	if end < HeaderSize || m.offset+end > m.buf.Len() {
		return nil, ErrOutOfBounds
	}
	return m.buf.Slice(m.offset, end), nil
}
