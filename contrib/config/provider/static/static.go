// Package static is a config.Source that supplies the proxy's
// spec-mandated defaults from a Go value rather than from a file or
// network call, so the proxy runs correctly with zero configuration.
// Grounded on the shape of the teacher's provider/remote.NewSource,
// trading the HTTP fetch for an in-memory struct marshaled once.
package static

import (
	"github.com/goccy/go-json"

	"github.com/omalloc/tavern-proxy/contrib/config"
)

type source struct {
	value any
}

// NewSource wraps value (typically conf.Default()) as a config.Source.
func NewSource(value any) config.Source {
	return &source{value: value}
}

// Load implements config.Source by round-tripping value through JSON,
// matching the decoding path every other source goes through.
func (s *source) Load() ([]*config.KeyValue, error) {
	buf, err := json.Marshal(s.value)
	if err != nil {
		return nil, err
	}
	return []*config.KeyValue{
		{Key: "static", Format: "json", Value: buf},
	}, nil
}

// Watch implements config.Source; static values never change, so Next
// blocks until Stop is called and then returns with no error.
func (s *source) Watch() (config.Watcher, error) {
	return &noopWatcher{stop: make(chan struct{})}, nil
}

type noopWatcher struct {
	stop chan struct{}
}

func (w *noopWatcher) Next() ([]*config.KeyValue, error) {
	<-w.stop
	return nil, nil
}

func (w *noopWatcher) Stop() error {
	close(w.stop)
	return nil
}
