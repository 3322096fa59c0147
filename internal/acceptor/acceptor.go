// Package acceptor implements the connection-acceptor loop of spec.md
// §4.H (component H): bind the listening socket, accept client
// connections, and spawn one goroutine per connection running
// internal/worker. It is grounded on the teacher's server/server.go
// HTTPServer.Start/Stop, which also pairs a listener lifecycle with
// github.com/cloudflare/tableflip for zero-downtime restart, trimmed
// of the http.Server/middleware-chain layer this spec doesn't need.
package acceptor

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/cloudflare/tableflip"

	"github.com/omalloc/tavern-proxy/contrib/log"
	"github.com/omalloc/tavern-proxy/contrib/transport"
	"github.com/omalloc/tavern-proxy/internal/worker"
)

// Acceptor binds addr and serves accepted connections to a *worker.Worker.
type Acceptor struct {
	addr   string
	flip   *tableflip.Upgrader
	worker *worker.Worker

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New builds an Acceptor listening on addr once Start is called. flip
// may be nil, in which case Start falls back to a plain net.Listen.
func New(addr string, flip *tableflip.Upgrader, w *worker.Worker) transport.Server {
	return &Acceptor{addr: addr, flip: flip, worker: w}
}

// Start binds the socket and runs the accept loop until the listener
// is closed by Stop. It returns nil on a clean shutdown.
func (a *Acceptor) Start(ctx context.Context) error {
	ln, err := a.listen()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	log.Infof("proxy listening on %s", a.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				a.wg.Wait()
				return nil
			}
			log.Warnf("accept failed: %v", err)
			continue
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.worker.Handle(conn)
		}()
	}
}

// Stop closes the listener, unblocking Start's Accept loop. It does
// not forcibly close in-flight connections — each worker goroutine
// runs to completion on its own.
func (a *Acceptor) Stop(ctx context.Context) error {
	a.mu.Lock()
	ln := a.listener
	a.mu.Unlock()

	if ln == nil {
		return nil
	}
	return ln.Close()
}

// listen binds the configured address, going through the tableflip
// upgrader's file-descriptor inheritance when one is configured, so a
// process started by an upgrade takes over the parent's socket. Nothing
// in this module calls Upgrade; SIGHUP is handled by contrib/config as
// a config reload.
func (a *Acceptor) listen() (net.Listener, error) {
	if a.flip != nil {
		return a.flip.Listen("tcp", a.addr)
	}
	return net.Listen("tcp", a.addr)
}
