package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cloudflare/tableflip"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omalloc/tavern-proxy/conf"
	"github.com/omalloc/tavern-proxy/contrib/config"
	"github.com/omalloc/tavern-proxy/contrib/config/provider/file"
	"github.com/omalloc/tavern-proxy/contrib/config/provider/static"
	"github.com/omalloc/tavern-proxy/contrib/log"
	"github.com/omalloc/tavern-proxy/contrib/transport"
	"github.com/omalloc/tavern-proxy/internal/acceptor"
	"github.com/omalloc/tavern-proxy/internal/worker"
	"github.com/omalloc/tavern-proxy/metrics"
	xruntime "github.com/omalloc/tavern-proxy/pkg/x/runtime"
	"github.com/omalloc/tavern-proxy/storage/memcache"
)

var id, _ = os.Hostname()

func init() {
	log.SetLogger(log.With(log.DefaultLogger, "ts", log.Timestamp(time.RFC3339), "pid", os.Getpid(), "instance", id))

	prometheus.Unregister(collectors.NewGoCollector())
	registerer := prometheus.WrapRegistererWithPrefix("tavern_proxy_", prometheus.DefaultRegisterer)
	registerer.MustRegister(collectors.NewGoCollector(collectors.WithGoCollectorMemStatsMetricsDisabled()))
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <port>\n", os.Args[0])
		os.Exit(1)
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil || port < 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "usage: %s <port>\n", os.Args[0])
		os.Exit(1)
	}

	// optional YAML overlay path, kept off argv so the CLI contract
	// (spec.md §6: exactly one positional <port>) is never disturbed.
	overlay := os.Getenv("TAVERN_PROXY_CONFIG")

	sources := []config.Source{static.NewSource(conf.Default())}
	if overlay != "" {
		sources = append(sources, file.NewSource(overlay))
	}

	c := config.New[conf.Bootstrap](config.WithSource(sources...))
	defer c.Close()

	bc := &conf.Bootstrap{}
	if err := c.Scan(bc); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	bc.Server.Addr = net.JoinHostPort("", os.Args[1])

	if bc.Logger.Path != "" {
		log.SetLogger(log.With(
			log.NewFileLogger(bc.Logger.Path, log.ParseLevel(bc.Logger.Level),
				bc.Logger.MaxSize, bc.Logger.MaxAge, bc.Logger.MaxBackups, bc.Logger.Compress),
			"ts", log.Timestamp(time.RFC3339), "pid", os.Getpid(),
		))
	}

	var flags conf.FeatureFlags
	if bc.Upstream != nil && bc.Upstream.Features != nil {
		if err := mapstructure.Decode(bc.Upstream.Features, &flags); err != nil {
			log.Warnf("failed to decode upstream feature flags: %v", err)
		}
	}

	if err := run(bc, flags); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(bc *conf.Bootstrap, flags conf.FeatureFlags) error {
	flip, err := tableflip.New(tableflip.Options{})
	if err != nil {
		return fmt.Errorf("tableflip: %w", err)
	}
	defer flip.Stop()

	cache := memcache.New(bc.Cache.MaxBlocks, int64(bc.Cache.MaxCacheSize))
	registry := prometheus.DefaultRegisterer
	collector := metrics.NewCollector(registry)
	cache.OnEvict = collector.CacheEvictions.Inc

	w := worker.New(worker.Config{
		MaxObjectSize:   bc.Cache.MaxObjectSize,
		MaxResponseSize: bc.Cache.MaxResponseSize,
		DialTimeout:     bc.Server.DialTimeout,
		CollapseMisses:  flags.CollapseMisses,
	}, cache, collector)

	servers := []transport.Server{acceptor.New(bc.Server.Addr, flip, w)}
	if bc.Debug != nil && bc.Debug.Enabled {
		servers = append(servers, newDebugServer(bc.Debug.Addr, cache, collector))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			if err := srv.Start(ctx); err != nil {
				errc <- err
			}
		}()
	}

	if err := flip.Ready(); err != nil {
		return fmt.Errorf("tableflip ready: %w", err)
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		log.Errorf("server exited: %v", err)
	case <-flip.Exit():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Stop(stopCtx); err != nil {
			log.Warnf("server stop error: %v", err)
		}
	}
	return nil
}

// debugServer exposes Prometheus metrics, build info, and a cache
// snapshot on a loopback-only listener, separate from the proxy port.
type debugServer struct {
	addr      string
	cache     *memcache.Cache
	collector *metrics.Collector
	srv       *http.Server
}

func newDebugServer(addr string, cache *memcache.Cache, collector *metrics.Collector) transport.Server {
	return &debugServer{addr: addr, cache: cache, collector: collector}
}

func (d *debugServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(xruntime.BuildInfo)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/debug/cache", func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(struct {
			memcache.Stats
			RequestsPerSecond int64 `json:"requests_per_second"`
		}{
			Stats:             d.cache.Stats(),
			RequestsPerSecond: d.collector.RequestsPerSecond(),
		})
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(payload)
	})

	d.srv = &http.Server{Addr: d.addr, Handler: mux}
	log.Infof("debug listener on %s", d.addr)
	if err := d.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (d *debugServer) Stop(ctx context.Context) error {
	if d.srv == nil {
		return nil
	}
	return d.srv.Shutdown(ctx)
}
