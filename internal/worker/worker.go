// Package worker implements the per-connection glue of spec.md §4.G
// (component G): parse the client request, consult the cache, forward
// on miss, relay the response, and opportunistically store it. It is
// reworked from the teacher's server.go buildHandler (RoundTrip ->
// copy headers -> copy body -> metrics) off net/http and onto a raw
// net.Conn, since spec.md's core requirement is hand-rolled
// request/response framing rather than net/http semantics. Panics are
// recovered the way server/middleware/recovery recovers a panicking
// RoundTripper.
package worker

import (
	"context"
	"net"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/omalloc/tavern-proxy/contrib/log"
	"github.com/omalloc/tavern-proxy/internal/constants"
	"github.com/omalloc/tavern-proxy/internal/ioline"
	"github.com/omalloc/tavern-proxy/internal/rewrite"
	"github.com/omalloc/tavern-proxy/internal/upstream"
	"github.com/omalloc/tavern-proxy/metrics"
	xruntime "github.com/omalloc/tavern-proxy/pkg/x/runtime"
	"github.com/omalloc/tavern-proxy/storage/memcache"
)

// Config bounds the pipeline per spec.md §6's bit-exact constants.
type Config struct {
	MaxObjectSize   int
	MaxResponseSize int
	DialTimeout     time.Duration
	// CollapseMisses enables singleflight collapsing of concurrent
	// cache-miss fetches for the same URI, conf.FeatureFlags.CollapseMisses.
	CollapseMisses bool
}

// Worker executes the request pipeline for accepted connections.
type Worker struct {
	cfg     Config
	cache   *memcache.Cache
	dialer  *upstream.Dialer
	metrics *metrics.Collector
	flight  singleflight.Group
}

// New builds a Worker over the shared cache.
func New(cfg Config, cache *memcache.Cache, collector *metrics.Collector) *Worker {
	return &Worker{
		cfg:     cfg,
		cache:   cache,
		dialer:  upstream.New(cfg.DialTimeout),
		metrics: collector,
	}
}

// Handle runs the full pipeline for one accepted connection and always
// closes it before returning. It never lets a panic escape to the
// acceptor — other connections are unaffected (spec.md §7).
func (w *Worker) Handle(conn net.Conn) {
	ctx, rm := metrics.NewRequestMetric(context.Background(), conn.RemoteAddr().String())
	clog := log.NewHelper(log.With(log.GetLogger(), constants.InternalRequestID, rm.RequestID))

	defer func() {
		if r := recover(); r != nil {
			clog.Errorf("worker panic: %v\n%s", r, xruntime.PrintStackTrace(3))
		}
		_ = conn.Close()
	}()

	w.serve(ctx, conn, clog)
}

func (w *Worker) serve(ctx context.Context, conn net.Conn, clog *log.Helper) {
	rm := metrics.FromContext(ctx)

	req, err := rewrite.Parse(ioline.New(conn))
	if err != nil {
		clog.Warnf("request rejected: %v", err)
		return
	}
	rm.URI = req.URI

	if handle, ok := w.cache.Lookup(req.URI); ok {
		defer handle.Release()
		n, werr := conn.Write(handle.Payload())
		if werr != nil || n != handle.Size() {
			clog.Warnf("partial write on cache hit: wrote %d of %d: %v", n, handle.Size(), werr)
		}
		rm.CacheStatus = constants.CacheHit
		rm.BytesSent = n
		w.metrics.Observe(constants.CacheHit, n, 0)
		clog.Infof("%s %s %d bytes", constants.CacheHit, req.URI, n)
		return
	}

	fetchStart := time.Now()
	buf, n, ferr := w.fetch(req)
	upstreamLatency := time.Since(fetchStart)
	if ferr != nil {
		clog.Warnf("upstream fetch failed for %s: %v", req.URI, ferr)
		return
	}

	wn, werr := conn.Write(buf[:n])
	if werr != nil || wn != n {
		// Reference behavior: log and continue to the caching step —
		// the response was fully received, future hits may still succeed.
		clog.Warnf("partial write to client: wrote %d of %d: %v", wn, n, werr)
	}

	outcome := constants.CacheMiss
	if n <= w.cfg.MaxObjectSize {
		stored := make([]byte, n)
		copy(stored, buf[:n])
		w.cache.Store(req.URI, stored)
	} else {
		outcome = constants.CacheSkip
	}

	rm.CacheStatus = outcome
	rm.BytesSent = wn
	w.metrics.Observe(outcome, wn, upstreamLatency)
	clog.Infof("%s %s %d bytes", outcome, req.URI, wn)
}

// fetch dials the origin and reads its response, collapsing concurrent
// misses for the same URI into a single upstream fetch when enabled
// (golang.org/x/sync/singleflight), grounded on proxy/proxy.go's use
// of a flight group to coalesce identical in-flight requests.
func (w *Worker) fetch(req *rewrite.Request) ([]byte, int, error) {
	if !w.cfg.CollapseMisses {
		buf := make([]byte, w.cfg.MaxResponseSize)
		n, err := w.dialer.Forward(req.Host, req.Port, req.ForwardBuf, buf)
		return buf, n, err
	}

	type result struct {
		buf []byte
		n   int
	}
	v, err, _ := w.flight.Do(req.URI, func() (any, error) {
		buf := make([]byte, w.cfg.MaxResponseSize)
		n, err := w.dialer.Forward(req.Host, req.Port, req.ForwardBuf, buf)
		if err != nil {
			return nil, err
		}
		return result{buf: buf, n: n}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	r := v.(result)
	return r.buf, r.n, nil
}
