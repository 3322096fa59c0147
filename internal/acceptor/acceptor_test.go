package acceptor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/omalloc/tavern-proxy/internal/worker"
	"github.com/omalloc/tavern-proxy/metrics"
	"github.com/omalloc/tavern-proxy/storage/memcache"
)

// newLoopbackAcceptor builds an Acceptor bound to an ephemeral loopback
// port (no tableflip.Upgrader — Start falls back to a plain net.Listen)
// wired to a real Worker, so a round trip exercises the full accept ->
// spawn -> parse -> forward -> relay pipeline of spec.md §4.H.
func newLoopbackAcceptor(t *testing.T, response []byte) (proxyAddr, originAddr string, cleanup func()) {
	t.Helper()

	origin, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	go func() {
		for {
			conn, err := origin.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				_, _ = conn.Read(buf)
				_, _ = conn.Write(response)
			}()
		}
	}()

	cache := memcache.New(memcache.MaxBlocks, memcache.MaxCacheSize)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	w := worker.New(worker.Config{
		MaxObjectSize:   memcache.MaxObjectSize,
		MaxResponseSize: 4096,
		DialTimeout:     2 * time.Second,
	}, cache, collector)

	a, ok := New("127.0.0.1:0", nil, w).(*Acceptor)
	assert.True(t, ok)

	errc := make(chan error, 1)
	go func() { errc <- a.Start(context.Background()) }()

	// Start binds the listener synchronously before entering its accept
	// loop, but from the caller's goroutine there's no signal for "bound
	// yet" short of polling — acceptor.listen() runs before the first
	// log line, so a short, bounded wait is enough in a test.
	proxyAddr = waitForListen(t, a)
	originAddr = origin.Addr().String()

	cleanup = func() {
		// Start only ever returns once its listener is closed — closing
		// it via Stop is what unblocks the accept loop, not ctx cancellation.
		assert.NoError(t, a.Stop(context.Background()))
		_ = origin.Close()
		select {
		case <-errc:
		case <-time.After(2 * time.Second):
			t.Fatal("acceptor did not stop in time")
		}
	}
	return proxyAddr, originAddr, cleanup
}

// waitForListen polls Acceptor's internal listener, since Start reports
// the bound port through no channel or callback (its log line names
// only the configured address).
func waitForListen(t *testing.T, a *Acceptor) string {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		ln := a.listener
		a.mu.Unlock()
		if ln != nil {
			return ln.Addr().String()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("acceptor never bound its listener")
	return ""
}

func TestAcceptorServesOneConnectionEndToEnd(t *testing.T) {
	proxyAddr, originAddr, cleanup := newLoopbackAcceptor(t, []byte("HTTP/1.0 200 OK\r\n\r\nworks"))
	defer cleanup()

	conn, err := net.Dial("tcp", proxyAddr)
	assert.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET http://" + originAddr + "/ HTTP/1.0\r\n\r\n"))
	assert.NoError(t, err)

	buf := make([]byte, 4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _ := conn.Read(buf)
	assert.Contains(t, string(buf[:n]), "works")
}

func TestAcceptorHandlesConcurrentConnections(t *testing.T) {
	proxyAddr, originAddr, cleanup := newLoopbackAcceptor(t, []byte("HTTP/1.0 200 OK\r\n\r\nconcurrent"))
	defer cleanup()

	const clients = 8
	results := make(chan string, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := net.Dial("tcp", proxyAddr)
			if err != nil {
				results <- ""
				return
			}
			defer conn.Close()
			_, _ = conn.Write([]byte("GET http://" + originAddr + "/ HTTP/1.0\r\n\r\n"))
			buf := make([]byte, 4096)
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, _ := conn.Read(buf)
			results <- string(buf[:n])
		}()
	}

	for i := 0; i < clients; i++ {
		out := <-results
		assert.Contains(t, out, "concurrent")
	}
}

func TestAcceptorStopUnblocksStart(t *testing.T) {
	_, _, cleanup := newLoopbackAcceptor(t, []byte("HTTP/1.0 200 OK\r\n\r\nbye"))
	cleanup() // Stop must unblock Start's Accept loop promptly
}
