package absuri

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecompose(t *testing.T) {
	parts, err := Decompose("http://example.com:8080/path/to/thing?q=1")
	assert.NoError(t, err)
	assert.Equal(t, "example.com", parts.Host)
	assert.Equal(t, "8080", parts.Port)
	assert.Equal(t, "/path/to/thing?q=1", parts.Rest)
}

func TestDecomposeNoPort(t *testing.T) {
	parts, err := Decompose("http://example.com/path")
	assert.NoError(t, err)
	assert.Equal(t, "example.com", parts.Host)
	assert.Equal(t, "", parts.Port)
	assert.Equal(t, "/path", parts.Rest)
}

func TestDecomposeEmptyPath(t *testing.T) {
	parts, err := Decompose("http://example.com")
	assert.NoError(t, err)
	assert.Equal(t, "example.com", parts.Host)
	assert.Equal(t, "/", parts.Rest)
}

func TestDecomposeNoDoubleSlash(t *testing.T) {
	_, err := Decompose("http:/example.com/path")
	assert.ErrorIs(t, err, ErrNoDoubleSlash)
}

func TestDecomposeHostOverflow(t *testing.T) {
	host := strings.Repeat("a", MaxHostLen+1)
	_, err := Decompose("http://" + host + "/path")
	assert.ErrorIs(t, err, ErrHostOverflow)
}

func TestDecomposePortOverflow(t *testing.T) {
	_, err := Decompose("http://example.com:123456/path")
	assert.ErrorIs(t, err, ErrPortOverflow)
}

func TestDecomposeRestOverflow(t *testing.T) {
	rest := "/" + strings.Repeat("a", MaxRestLen+1)
	_, err := Decompose("http://example.com" + rest)
	assert.ErrorIs(t, err, ErrRestOverflow)
}

func TestDecomposeRoundTrip(t *testing.T) {
	uri := "http://example.com:9090/a/b/c"
	parts, err := Decompose(uri)
	assert.NoError(t, err)
	assert.Equal(t, "example.com", parts.Host)
	assert.Equal(t, "9090", parts.Port)
	assert.Equal(t, "/a/b/c", parts.Rest)
}
