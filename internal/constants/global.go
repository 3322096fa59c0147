package constants

// AppName identifies the process in logs and build info.
const AppName = "tavern-proxy"

// Internal, never-on-the-wire keys. The proxy's wire protocol (spec.md
// §6) never adds headers beyond User-Agent/Host/Connection/
// Proxy-Connection, so these only label in-process structured logging
// and metrics context, never a forwarded request.
const (
	InternalRequestID  = "i-x-request-id"
	InternalCacheState = "i-x-cache-state"
)

// Cache outcome labels used by metrics and access logging.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
	CacheSkip = "skip" // oversize response, never offered to the cache
)
