// Package conf defines the bootstrap configuration shape of the proxy.
package conf

import "time"

// Bootstrap is the root configuration, scanned from the static defaults
// and optionally overlaid with a YAML file (see contrib/config/provider/file).
type Bootstrap struct {
	Hostname string    `json:"hostname" yaml:"hostname"`
	Logger   *Logger   `json:"logger" yaml:"logger"`
	Server   *Server   `json:"server" yaml:"server"`
	Cache    *Cache    `json:"cache" yaml:"cache"`
	Upstream *Upstream `json:"upstream" yaml:"upstream"`
	Debug    *Debug    `json:"debug" yaml:"debug"`
}

// Logger mirrors the teacher's conf.Logger fields.
type Logger struct {
	Level      string `json:"level" yaml:"level"`
	Path       string `json:"path" yaml:"path"`
	Caller     bool   `json:"caller" yaml:"caller"`
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	MaxAge     int    `json:"max_age" yaml:"max_age"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// Server holds the listening-socket knobs for the acceptor loop.
type Server struct {
	// Addr is overridden at process start by the CLI's positional port
	// argument (spec.md §6); it only serves as a fallback for tests.
	Addr string `json:"addr" yaml:"addr"`
	// DialTimeout bounds the upstream TCP dial + write + read (internal/upstream).
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
}

// Cache holds the spec's bit-exact cache constants, made configurable
// for tests while defaulting to the spec values in production.
type Cache struct {
	MaxBlocks       int `json:"max_blocks" yaml:"max_blocks"`
	MaxObjectSize   int `json:"max_object_size" yaml:"max_object_size"`
	MaxCacheSize    int `json:"max_cache_size" yaml:"max_cache_size"`
	MaxResponseSize int `json:"max_response_size" yaml:"max_response_size"`
}

// Upstream carries a free-form feature-flag map, kept from the teacher's
// conf.Upstream.Features, decoded via mapstructure into FeatureFlags.
type Upstream struct {
	Features map[string]any `json:"features" yaml:"features"`
}

// FeatureFlags is the typed projection of Upstream.Features.
type FeatureFlags struct {
	// CollapseMisses enables singleflight collapsing of concurrent
	// cache-miss fetches for the same URI (internal/worker).
	CollapseMisses bool `mapstructure:"collapse_misses"`
}

// Debug configures the loopback-only metrics/introspection listener.
// It never shares a socket with the proxy port.
type Debug struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// Default returns the spec-mandated defaults; this is what the static
// config source (contrib/config/provider/static) supplies.
func Default() *Bootstrap {
	return &Bootstrap{
		Logger: &Logger{
			Level:      "info",
			Path:       "",
			Caller:     false,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
			Compress:   true,
		},
		Server: &Server{
			Addr:        ":0",
			DialTimeout: 10 * time.Second,
		},
		Cache: &Cache{
			MaxBlocks:       21,
			MaxObjectSize:   102_400,
			MaxCacheSize:    1_049_000,
			MaxResponseSize: 512_000,
		},
		Upstream: &Upstream{
			Features: map[string]any{
				"collapse_misses": true,
			},
		},
		Debug: &Debug{
			Enabled: true,
			Addr:    "127.0.0.1:0",
		},
	}
}
