// Package transport moves protocol frames over an ordered byte stream.
// It owns the receive buffers that decoded flyweight messages point into
// and drives per-connection reassembly of fragmented logical messages.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vibing/gridwire/config"
	"github.com/vibing/gridwire/frag"
	"github.com/vibing/gridwire/proto"
)

// DefaultMaxFrameSize is the largest physical frame accepted or emitted
// unless overridden with WithMaxFrameSize. Logical messages above this
// are fragmented.
const DefaultMaxFrameSize = 64 * 1024

// Transport errors.
var (
	ErrFrameTooShort  = errors.New("transport: declared frame length below header size")
	ErrFrameTooLarge  = errors.New("transport: declared frame length exceeds maximum")
	ErrTooManyPending = errors.New("transport: too many pending reassemblies")
	ErrConnClosed     = errors.New("transport: connection closed")
)

// recvBufferPool pools default-sized receive buffers across connections.
var recvBufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, DefaultMaxFrameSize)
		return &b
	},
}

// settings are the tunables shared by Conn and Listener.
type settings struct {
	log          zerolog.Logger
	metrics      *Metrics
	maxFrameSize int
	pendingLimit int
}

func defaultSettings() settings {
	return settings{
		log:          zerolog.Nop(),
		maxFrameSize: DefaultMaxFrameSize,
	}
}

// Option configures a Conn or a Listener.
type Option func(*settings)

// WithLogger sets the logger. The default logger is disabled.
func WithLogger(log zerolog.Logger) Option {
	return func(s *settings) {
		s.log = log
	}
}

// WithMetrics sets the metrics sink. Nil metrics are a no-op.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithMaxFrameSize overrides the maximum accepted and emitted frame size.
func WithMaxFrameSize(n int) Option {
	return func(s *settings) {
		s.maxFrameSize = n
	}
}

// WithPendingLimit caps the number of correlation ids with incomplete
// reassembly state. Zero, the default, means unlimited. A BEGIN frame
// arriving over the cap fails ReadLogical with ErrTooManyPending and its
// state is dropped; other in-flight correlation ids are untouched.
func WithPendingLimit(n int) Option {
	return func(s *settings) {
		s.pendingLimit = n
	}
}

// ConfigOptions converts protocol configuration into connection options.
func ConfigOptions(pc config.ProtocolConfig) []Option {
	return []Option{
		WithMaxFrameSize(pc.MaxFrameSize),
		WithPendingLimit(pc.MaxPendingReassemblies),
	}
}

// Conn is one framed connection over an ordered, reliable byte stream.
//
// The read path is single-reader: ReadMessage and ReadLogical must not be
// called concurrently, and a decoded Message is a view into the
// connection's receive buffer, valid only until the next read or Close.
// The write path may be used from a different goroutine than the read
// path, but not from several writers at once.
type Conn struct {
	settings
	nc net.Conn

	// readMu serializes the read path with buffer reclamation in Close.
	// A blocked reader holds it, so Close must unblock the reader by
	// closing nc before taking it.
	readMu  sync.Mutex
	recvBuf *[]byte
	reasm   *frag.Reassembler

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established ordered byte-stream connection.
func NewConn(nc net.Conn, opts ...Option) *Conn {
	c := &Conn{
		settings: defaultSettings(),
		nc:       nc,
		reasm:    frag.NewReassembler(),
	}
	for _, opt := range opts {
		opt(&c.settings)
	}
	if c.maxFrameSize <= DefaultMaxFrameSize {
		c.recvBuf = recvBufferPool.Get().(*[]byte)
	} else {
		b := make([]byte, c.maxFrameSize)
		c.recvBuf = &b
	}
	return c
}

// Dial connects to addr on the given network and wraps the result.
func Dial(ctx context.Context, network, addr string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewConn(nc, opts...), nil
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// ReadMessage reads the next physical frame and wraps it for decoding.
// The returned Message aliases the connection's receive buffer and is
// invalidated by the next ReadMessage, ReadLogical, or Close.
func (c *Conn) ReadMessage() (*proto.Message, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return c.readMessage()
}

// readMessage is ReadMessage with readMu already held.
func (c *Conn) readMessage() (*proto.Message, error) {
	if c.recvBuf == nil {
		return nil, ErrConnClosed
	}
	buf := *c.recvBuf

	if _, err := io.ReadFull(c.nc, buf[:4]); err != nil {
		return nil, err
	}
	frameLen := int(binary.LittleEndian.Uint32(buf[:4]) &^ (1 << 31))
	if frameLen < proto.HeaderSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooShort, frameLen)
	}
	if frameLen > c.maxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, frameLen, c.maxFrameSize)
	}
	if _, err := io.ReadFull(c.nc, buf[4:frameLen]); err != nil {
		return nil, err
	}

	m := &proto.Message{}
	if err := m.WrapForDecode(proto.NewBuffer(buf[:frameLen]), 0); err != nil {
		return nil, err
	}
	c.metrics.frameRead(frameLen)
	return m, nil
}

// ReadLogical reads physical frames until one completes a logical message
// and returns its decoded tuple. A framing protocol violation is returned
// as an error scoped to that correlation id; the connection stays usable
// and unrelated in-flight correlation ids keep their state.
func (c *Conn) ReadLogical() (*frag.Logical, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	for {
		m, err := c.readMessage()
		if err != nil {
			return nil, err
		}
		logical, err := c.reasm.Accept(m)
		c.metrics.pendingReassembly(c.reasm.Pending())
		if err == nil && c.pendingLimit > 0 && c.reasm.Pending() > c.pendingLimit {
			id := m.CorrelationID()
			c.reasm.Discard(id)
			c.metrics.pendingReassembly(c.reasm.Pending())
			return nil, fmt.Errorf("%w: limit %d, dropped correlation id %d",
				ErrTooManyPending, c.pendingLimit, id)
		}
		if err != nil {
			c.metrics.framingViolation()
			c.log.Warn().
				Err(err).
				Uint32("correlation_id", m.CorrelationID()).
				Msg("discarding logical message")
			return nil, err
		}
		if logical != nil {
			c.metrics.logicalRead()
			return logical, nil
		}
	}
}

// WriteMessage flushes one encoded frame, exactly frameLength bytes.
func (c *Conn) WriteMessage(m *proto.Message) error {
	b, err := m.Bytes()
	if err != nil {
		return err
	}
	if len(b) > c.maxFrameSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(b), c.maxFrameSize)
	}
	if _, err := c.nc.Write(b); err != nil {
		return err
	}
	c.metrics.frameWritten(len(b))
	return nil
}

// WriteLogical sends one logical payload, fragmenting it into as many
// frames as the maximum frame size requires.
func (c *Conn) WriteLogical(payload []byte, correlationID uint32, version uint8, msgType uint16) error {
	frames, err := frag.Split(payload, correlationID, version, msgType, c.maxFrameSize)
	if err != nil {
		return err
	}
	for _, m := range frames {
		if err := c.WriteMessage(m); err != nil {
			return err
		}
	}
	return nil
}

// Close tears the connection down and releases the receive buffer. It is
// safe to call while a reader is blocked: the underlying connection is
// closed first, which fails the pending read, and the buffer is only
// reclaimed once the read path has let go of it.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()

		c.readMu.Lock()
		if c.recvBuf != nil && len(*c.recvBuf) == DefaultMaxFrameSize {
			recvBufferPool.Put(c.recvBuf)
		}
		c.recvBuf = nil
		c.readMu.Unlock()

		c.log.Debug().Msg("connection closed")
	})
	return c.closeErr
}
