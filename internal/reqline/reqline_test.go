package reqline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeRequestLine(t *testing.T) {
	tokens, err := Tokenize([]byte("GET http://example.com/path HTTP/1.0\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"GET", "http://example.com/path", "HTTP/1.0"}, tokens)
}

func TestTokenizeCollapsesWhitespaceRuns(t *testing.T) {
	tokens, err := Tokenize([]byte("GET    http://example.com/  \t HTTP/1.0\r\n"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"GET", "http://example.com/", "HTTP/1.0"}, tokens)
}

func TestTokenizeEmptyLine(t *testing.T) {
	tokens, err := Tokenize([]byte("\r\n"))
	assert.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestTokenizeTooManyTokens(t *testing.T) {
	_, err := Tokenize([]byte("a b c d e\r\n"))
	assert.ErrorIs(t, err, ErrTooManyTokens)
}

func TestTokenizeExactlyMaxTokens(t *testing.T) {
	tokens, err := Tokenize([]byte("a b c d\r\n"))
	assert.NoError(t, err)
	assert.Len(t, tokens, MaxTokens)
}

func TestTokenizeTokenTooLong(t *testing.T) {
	long := strings.Repeat("a", MaxTokenLen)
	_, err := Tokenize([]byte("GET " + long + " HTTP/1.0\r\n"))
	assert.ErrorIs(t, err, ErrTokenTooLong)
}
