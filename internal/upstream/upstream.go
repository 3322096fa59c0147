// Package upstream dials the origin named by a decomposed request URI,
// writes the rewritten request, and reads the full response into a
// caller-owned buffer, per spec.md §4.E (component E). The dialer is
// grounded on proxy/proxy.go's *net.Dialer construction, stripped of
// its http.Transport/connection-pooling layer: spec.md mandates one
// fresh TCP connection per request, never reused.
package upstream

import (
	"errors"
	"io"
	"net"
	"time"

	xerrors "github.com/omalloc/tavern-proxy/pkg/errors"
)

// Dialer forwards a rewritten request to an origin over a fresh TCP connection.
type Dialer struct {
	net.Dialer
}

// New builds a Dialer whose timeout bounds the dial and, as a separate
// deadline set once connected, the write and read that follow it.
func New(timeout time.Duration) *Dialer {
	return &Dialer{Dialer: net.Dialer{Timeout: timeout, KeepAlive: -1}}
}

// Forward dials host:port, writes forwardBuf in full, then reads into
// buf until the origin closes the connection or buf fills, whichever
// comes first. It returns the number of bytes read. A read that fills
// buf with no EOF yet is reference behavior, not truncation error.
func (d *Dialer) Forward(host, port string, forwardBuf []byte, buf []byte) (int, error) {
	conn, err := d.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return 0, xerrors.New(xerrors.KindUpstreamDial, err)
	}
	defer conn.Close()

	if d.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.Timeout))
	}

	if _, err := conn.Write(forwardBuf); err != nil {
		return 0, xerrors.New(xerrors.KindUpstreamIO, err)
	}

	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				// origin closed the connection to signal end of response
				// (Connection: close); a full read is success either way.
				return total, nil
			}
			return total, xerrors.New(xerrors.KindUpstreamIO, err)
		}
	}
	// buf filled with no EOF yet: treated as a successful, possibly
	// truncated response (reference behavior, spec.md §9 open question).
	return total, nil
}
