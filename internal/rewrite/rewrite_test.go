package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omalloc/tavern-proxy/internal/ioline"
)

func TestParseDefaultPort(t *testing.T) {
	raw := "GET http://example.com/path HTTP/1.0\r\n" +
		"Accept: */*\r\n" +
		"\r\n"

	req, err := Parse(ioline.New(strings.NewReader(raw)))
	assert.NoError(t, err)
	assert.Equal(t, "example.com", req.Host)
	assert.Equal(t, "80", req.Port)
	assert.Equal(t, "http://example.com/path", req.URI)
	assert.Contains(t, string(req.ForwardBuf), "GET /path HTTP/1.0\r\n")
	assert.Contains(t, string(req.ForwardBuf), "Host: example.com\r\n")
	assert.Contains(t, string(req.ForwardBuf), "Accept: */*\r\n")
}

func TestParseExplicitPort(t *testing.T) {
	raw := "GET http://example.com:8080/path HTTP/1.0\r\n\r\n"
	req, err := Parse(ioline.New(strings.NewReader(raw)))
	assert.NoError(t, err)
	assert.Equal(t, "8080", req.Port)
}

func TestParseSuppressesHopByHopHeaders(t *testing.T) {
	raw := "GET http://example.com/ HTTP/1.0\r\n" +
		"User-Agent: custom-client/1.0\r\n" +
		"Connection: keep-alive\r\n" +
		"Proxy-Connection: keep-alive\r\n" +
		"\r\n"

	req, err := Parse(ioline.New(strings.NewReader(raw)))
	assert.NoError(t, err)

	fwd := string(req.ForwardBuf)
	assert.NotContains(t, fwd, "custom-client/1.0")
	assert.NotContains(t, fwd, "keep-alive")
	assert.Contains(t, fwd, "Connection: close\r\n")
	assert.Contains(t, fwd, "Proxy-Connection: close\r\n")
}

func TestParsePreservesExplicitHost(t *testing.T) {
	raw := "GET http://example.com/ HTTP/1.0\r\n" +
		"Host: other.example.com\r\n" +
		"\r\n"

	req, err := Parse(ioline.New(strings.NewReader(raw)))
	assert.NoError(t, err)

	fwd := string(req.ForwardBuf)
	assert.Equal(t, 1, strings.Count(fwd, "Host:"))
	assert.Contains(t, fwd, "Host: other.example.com\r\n")
}

func TestParseRejectsNonGET(t *testing.T) {
	raw := "POST http://example.com/ HTTP/1.0\r\n\r\n"
	_, err := Parse(ioline.New(strings.NewReader(raw)))
	assert.Error(t, err)
}

func TestParseRejectsMalformedRequestLine(t *testing.T) {
	raw := "GET\r\n\r\n"
	_, err := Parse(ioline.New(strings.NewReader(raw)))
	assert.Error(t, err)
}

func TestParseTruncatedHeaders(t *testing.T) {
	raw := "GET http://example.com/ HTTP/1.0\r\nHost: example.com\r\n"
	_, err := Parse(ioline.New(strings.NewReader(raw)))
	assert.Error(t, err)
}
