package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vibing/gridwire/frag"
	"github.com/vibing/gridwire/proto"
)

// rawFrame builds one encoded physical frame with a raw body.
func rawFrame(t *testing.T, corr uint32, flags uint8, body []byte) []byte {
	t.Helper()
	raw := make([]byte, proto.HeaderSize+len(body))
	buf := proto.NewBuffer(raw)
	m := &proto.Message{}
	if err := m.WrapForEncode(buf, 0); err != nil {
		t.Fatalf("WrapForEncode: %v", err)
	}
	m.SetCorrelationID(corr).
		SetVersion(1).
		SetType(3).
		SetFlags(flags)
	buf.Put(proto.HeaderSize, body)
	m.SetFrameLength(uint32(len(raw)))
	return raw
}

func pipePair(t *testing.T, opts ...Option) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	ca := NewConn(a, opts...)
	cb := NewConn(b, opts...)
	t.Cleanup(func() {
		ca.Close()
		cb.Close()
	})
	return ca, cb
}

func TestReadWriteMessage(t *testing.T) {
	client, server := pipePair(t)

	errc := make(chan error, 1)
	go func() {
		raw := make([]byte, 128)
		m := &proto.Message{}
		if err := m.WrapForEncode(proto.NewBuffer(raw), 0); err != nil {
			errc <- err
			return
		}
		m.SetCorrelationID(7).
			SetVersion(1).
			SetType(42).
			SetFlags(proto.BeginAndEndFlags)
		if err := m.PutVarData([]byte{1, 2, 3}); err != nil {
			errc <- err
			return
		}
		errc <- client.WriteMessage(m)
	}()

	got, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	if got.CorrelationID() != 7 || got.Type() != 42 || got.Version() != 1 {
		t.Errorf("header = corr%d type%d v%d, want corr7 type42 v1",
			got.CorrelationID(), got.Type(), got.Version())
	}
	seg, err := got.GetVarData()
	if err != nil {
		t.Fatalf("GetVarData: %v", err)
	}
	if !bytes.Equal(seg, []byte{1, 2, 3}) {
		t.Errorf("segment = %v, want [1 2 3]", seg)
	}
}

func TestWriteLogicalFragmentsAndReassembles(t *testing.T) {
	const maxFrame = 64
	client, server := pipePair(t, WithMaxFrameSize(maxFrame))

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- client.WriteLogical(payload, 5, 1, 9)
	}()

	logical, err := server.ReadLogical()
	if err != nil {
		t.Fatalf("ReadLogical: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("WriteLogical: %v", err)
	}

	if logical.CorrelationID != 5 || logical.Type != 9 || logical.Version != 1 {
		t.Errorf("logical = corr%d type%d v%d, want corr5 type9 v1",
			logical.CorrelationID, logical.Type, logical.Version)
	}
	if !bytes.Equal(logical.Payload, payload) {
		t.Error("reassembled payload differs from original")
	}
}

func TestReadMessageRejectsBadFrameLength(t *testing.T) {
	tests := []struct {
		name     string
		frameLen uint32
		want     error
	}{
		{"below header size", 5, ErrFrameTooShort},
		{"above maximum", DefaultMaxFrameSize + 1, ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := net.Pipe()
			conn := NewConn(b)
			t.Cleanup(func() {
				a.Close()
				conn.Close()
			})

			go func() {
				var prefix [4]byte
				binary.LittleEndian.PutUint32(prefix[:], tt.frameLen)
				a.Write(prefix[:])
			}()

			if _, err := conn.ReadMessage(); !errors.Is(err, tt.want) {
				t.Fatalf("ReadMessage = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadLogicalViolationKeepsConnection(t *testing.T) {
	a, b := net.Pipe()
	conn := NewConn(b)
	t.Cleanup(func() {
		a.Close()
		conn.Close()
	})

	// END with no preceding BEGIN, then a valid single-frame message.
	bad := rawFrame(t, 1, proto.EndFlag, []byte("bad"))
	good := rawFrame(t, 2, proto.BeginAndEndFlags, []byte("good"))
	go func() {
		a.Write(bad)
		a.Write(good)
	}()

	_, err := conn.ReadLogical()
	if !errors.Is(err, frag.ErrProtocolViolation) {
		t.Fatalf("ReadLogical = %v, want a framing protocol violation", err)
	}

	logical, err := conn.ReadLogical()
	if err != nil {
		t.Fatalf("ReadLogical after violation: %v", err)
	}
	if logical.CorrelationID != 2 || !bytes.Equal(logical.Payload, []byte("good")) {
		t.Errorf("logical = %v, want corr2 %q", logical, "good")
	}
}

func TestReadLogicalPendingLimit(t *testing.T) {
	a, b := net.Pipe()
	conn := NewConn(b, WithPendingLimit(1))
	t.Cleanup(func() {
		a.Close()
		conn.Close()
	})

	one := rawFrame(t, 1, proto.BeginFlag, []byte("one"))
	two := rawFrame(t, 2, proto.BeginFlag, []byte("two"))
	go func() {
		a.Write(one)
		a.Write(two)
	}()

	_, err := conn.ReadLogical()
	if !errors.Is(err, ErrTooManyPending) {
		t.Fatalf("ReadLogical = %v, want ErrTooManyPending", err)
	}
}

func TestCloseUnblocksReader(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	conn := NewConn(b)

	done := make(chan error, 1)
	go func() {
		_, err := conn.ReadMessage()
		done <- err
	}()

	// Let the reader block on the empty pipe before closing under it.
	time.Sleep(10 * time.Millisecond)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("ReadMessage succeeded on a closed connection")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reader still blocked after Close")
	}

	if _, err := conn.ReadMessage(); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("ReadMessage after Close = %v, want ErrConnClosed", err)
	}
}

func TestReadAfterClose(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	conn := NewConn(b)
	conn.Close()

	if _, err := conn.ReadMessage(); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("ReadMessage = %v, want ErrConnClosed", err)
	}
}

func TestDialListenRoundTrip(t *testing.T) {
	l, err := Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	serverErr := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()
		logical, err := conn.ReadLogical()
		if err != nil {
			serverErr <- err
			return
		}
		serverErr <- conn.WriteLogical(logical.Payload, logical.CorrelationID, logical.Version, logical.Type)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, "tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteLogical([]byte("ping"), 8, 1, 2); err != nil {
		t.Fatalf("WriteLogical: %v", err)
	}
	logical, err := conn.ReadLogical()
	if err != nil {
		t.Fatalf("ReadLogical: %v", err)
	}
	if err := <-serverErr; err != nil {
		t.Fatalf("server: %v", err)
	}
	if logical.CorrelationID != 8 || !bytes.Equal(logical.Payload, []byte("ping")) {
		t.Errorf("echo = %v, want corr8 %q", logical, "ping")
	}
}
