package upstream

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serveOnce(t *testing.T, response []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		buf := make([]byte, 4096)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(response)
	}()

	return ln.Addr().String()
}

func TestForwardReadsFullResponse(t *testing.T) {
	addr := serveOnce(t, []byte("HTTP/1.0 200 OK\r\n\r\nbody"))
	host, port, err := net.SplitHostPort(addr)
	assert.NoError(t, err)

	d := New(2 * time.Second)
	buf := make([]byte, 1024)
	n, err := d.Forward(host, port, []byte("GET / HTTP/1.0\r\n\r\n"), buf)
	assert.NoError(t, err)
	assert.Equal(t, "HTTP/1.0 200 OK\r\n\r\nbody", string(buf[:n]))
}

func TestForwardDialFailure(t *testing.T) {
	d := New(100 * time.Millisecond)
	buf := make([]byte, 64)
	_, err := d.Forward("127.0.0.1", "1", []byte("GET / HTTP/1.0\r\n\r\n"), buf)
	assert.Error(t, err)
}

func TestForwardFullBufferNoEOFIsSuccess(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = 'x'
	}
	addr := serveOnce(t, payload)
	host, port, err := net.SplitHostPort(addr)
	assert.NoError(t, err)

	d := New(2 * time.Second)
	buf := make([]byte, 16) // smaller than the response: buffer fills before EOF
	n, err := d.Forward(host, port, []byte("GET / HTTP/1.0\r\n\r\n"), buf)
	assert.NoError(t, err)
	assert.Equal(t, 16, n)
}
