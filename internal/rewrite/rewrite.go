// Package rewrite drives the tokenizer and URI decomposer over one
// client request and emits the upstream byte string, per spec.md §4.D
// (component D). Header suppression follows the teacher's
// pkg/x/http/header.go discipline of matching a field name, tightened
// per spec.md §9's open question to an anchored case-insensitive match
// instead of the reference's raw substring search.
package rewrite

import (
	"strings"

	"github.com/omalloc/tavern-proxy/internal/absuri"
	"github.com/omalloc/tavern-proxy/internal/ioline"
	"github.com/omalloc/tavern-proxy/internal/reqline"
	xerrors "github.com/omalloc/tavern-proxy/pkg/errors"
)

// fixedUserAgent is injected verbatim into every forwarded request.
const fixedUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:45.0) Gecko/20100101 Firefox/45.0"

// maxHeaderLine bounds a single header line, matching the line reader's ceiling.
const maxHeaderLine = 8192

// suppressed header field names (case-insensitive, anchored at line start).
var suppressed = []string{"user-agent", "connection", "proxy-connection"}

// Request is the outcome of rewriting one client request.
type Request struct {
	// ForwardBuf is the exact byte string to send upstream.
	ForwardBuf []byte
	// Host and Port name the origin to dial; Port defaults to "80".
	Host string
	Port string
	// URI is the client's original absolute-form request URI — the cache key.
	URI string
}

// Parse consumes one full HTTP request from r and produces the
// rewritten upstream request. Any validation failure is reported as a
// *errors.Error carrying the spec.md §7 disposition kind.
func Parse(r *ioline.Reader) (*Request, error) {
	firstLine, err := r.ReadLine(maxHeaderLine)
	if err != nil {
		return nil, xerrors.New(xerrors.KindTruncatedRequest, err)
	}

	tokens, err := reqline.Tokenize(firstLine)
	if err != nil {
		return nil, xerrors.New(xerrors.KindMalformedRequest, err)
	}
	if len(tokens) < 2 {
		return nil, xerrors.New(xerrors.KindMalformedRequest, errNotEnoughTokens)
	}
	if tokens[0] != "GET" {
		return nil, xerrors.New(xerrors.KindMalformedRequest, errNotGET)
	}

	uri := tokens[1]
	parts, err := absuri.Decompose(uri)
	if err != nil {
		return nil, xerrors.New(xerrors.KindURIDecompose, err)
	}

	port := parts.Port
	if port == "" {
		port = "80"
	}

	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(parts.Rest)
	b.WriteString(" HTTP/1.0\r\n")

	sawHost := false
	for {
		line, err := r.ReadLine(maxHeaderLine)
		if err != nil {
			return nil, xerrors.New(xerrors.KindTruncatedRequest, err)
		}

		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == "" {
			break // blank line: end of headers
		}

		if isHeader(trimmed, "host") {
			sawHost = true
		}
		if isSuppressed(trimmed) {
			continue
		}
		b.WriteString(trimmed)
		b.WriteString("\r\n")
	}

	if !sawHost {
		b.WriteString("Host: ")
		b.WriteString(parts.Host)
		b.WriteString("\r\n")
	}

	b.WriteString("User-Agent: ")
	b.WriteString(fixedUserAgent)
	b.WriteString("\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("Proxy-Connection: close\r\n")
	b.WriteString("\r\n")

	return &Request{
		ForwardBuf: []byte(b.String()),
		Host:       parts.Host,
		Port:       port,
		URI:        uri,
	}, nil
}

// isHeader reports whether line's field name equals name, case-insensitively.
func isHeader(line, name string) bool {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return false
	}
	return strings.EqualFold(line[:colon], name)
}

// isSuppressed reports whether line's field name is one of the fixed,
// proxy-injected headers that must not be passed through verbatim.
func isSuppressed(line string) bool {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return false
	}
	field := line[:colon]
	for _, s := range suppressed {
		if strings.EqualFold(field, s) {
			return true
		}
	}
	return false
}

var errNotEnoughTokens = strErr("request line has fewer than 2 tokens")
var errNotGET = strErr("method is not GET")

type strErr string

func (e strErr) Error() string { return string(e) }
