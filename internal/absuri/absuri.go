// Package absuri decomposes an absolute-form request URI
// ("http://host[:port]/path?query") into host, port and origin-form
// rest, per spec.md §4.C (component C).
package absuri

import (
	"errors"
	"strings"
)

const (
	// MaxHostLen is the maximum accepted host length.
	MaxHostLen = 49
	// MaxPortLen is the maximum accepted number of port digits.
	MaxPortLen = 5
	// MaxRestLen is the maximum accepted origin-form path+query length.
	MaxRestLen = 199
)

var (
	ErrNoDoubleSlash = errors.New("absuri: missing scheme //")
	ErrHostOverflow  = errors.New("absuri: host overflow")
	ErrPortOverflow  = errors.New("absuri: port overflow")
	ErrRestOverflow  = errors.New("absuri: rest overflow")
)

// Parts is the decomposed absolute-form URI.
type Parts struct {
	Host string
	Port string
	Rest string
}

// Decompose parses an absolute-form URI such as "http://host:81/p?q".
// If the path-plus-query is empty, Rest is set to "/".
func Decompose(uri string) (Parts, error) {
	idx := strings.Index(uri, "//")
	if idx < 0 {
		return Parts{}, ErrNoDoubleSlash
	}
	rest := uri[idx+2:]

	end := strings.IndexAny(rest, ":/")
	var host string
	if end < 0 {
		host = rest
		rest = ""
	} else {
		host = rest[:end]
		rest = rest[end:]
	}
	if len(host) > MaxHostLen {
		return Parts{}, ErrHostOverflow
	}

	var port string
	if len(rest) > 0 && rest[0] == ':' {
		rest = rest[1:]
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		port = rest[:i]
		rest = rest[i:]
		if len(port) > MaxPortLen {
			return Parts{}, ErrPortOverflow
		}
	}

	if len(rest) > MaxRestLen {
		return Parts{}, ErrRestOverflow
	}
	if rest == "" {
		rest = "/"
	}

	return Parts{Host: host, Port: port, Rest: rest}, nil
}
