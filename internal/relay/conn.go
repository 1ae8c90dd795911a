package relay

import (
	"net"

	"github.com/gorilla/websocket"
)

// Conn is one transport-agnostic client connection. ReadChunk may
// suspend indefinitely awaiting more bytes; chunk boundaries carry no
// meaning (the accumulator reassembles lines).
type Conn interface {
	ReadChunk() ([]byte, error)
	Write(b []byte) error
	Close() error
	RemoteAddr() string
	Transport() string
}

type tcpConn struct {
	c   net.Conn
	buf []byte
}

// NewTCPConn wraps a TCP connection.
func NewTCPConn(c net.Conn) Conn {
	return &tcpConn{c: c, buf: make([]byte, 4096)}
}

func (t *tcpConn) ReadChunk() ([]byte, error) {
	n, err := t.c.Read(t.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, t.buf[:n])
	return out, nil
}

func (t *tcpConn) Write(b []byte) error {
	_, err := t.c.Write(b)
	return err
}

func (t *tcpConn) Close() error {
	return t.c.Close()
}

func (t *tcpConn) RemoteAddr() string {
	return t.c.RemoteAddr().String()
}

func (t *tcpConn) Transport() string {
	return "tcp"
}

type wsConn struct {
	c *websocket.Conn
}

// NewWSConn wraps an upgraded WebSocket connection. Inbound messages
// are commands, one per WebSocket frame; outbound frames are binary.
func NewWSConn(c *websocket.Conn) Conn {
	return &wsConn{c: c}
}

func (w *wsConn) ReadChunk() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	if err != nil {
		return nil, err
	}
	// WebSocket clients send one command per message, usually without
	// a terminator; normalize so the accumulator sees complete lines.
	if n := len(data); n == 0 || data[n-1] != '\n' {
		data = append(data, '\n')
	}
	return data, nil
}

func (w *wsConn) Write(b []byte) error {
	return w.c.WriteMessage(websocket.BinaryMessage, b)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

func (w *wsConn) RemoteAddr() string {
	return w.c.RemoteAddr().String()
}

func (w *wsConn) Transport() string {
	return "websocket"
}
