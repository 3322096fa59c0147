// Package file is a config.Source reading an optional YAML overlay
// file off disk, watched for live changes with fsnotify. Grounded on
// the shape of the teacher's provider/remote.NewSource (same
// Load/Watch split), trading the HTTP GET for os.ReadFile and the
// polling-free fsnotify.Watcher instead of a remote long-poll.
package file

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/omalloc/tavern-proxy/contrib/config"
)

type source struct {
	path string
}

// NewSource wraps the YAML file at path as a config.Source. The file
// is optional: if it does not exist, Load returns no key-values
// rather than an error, so the proxy still runs on static defaults.
func NewSource(path string) config.Source {
	return &source{path: path}
}

func (s *source) Load() ([]*config.KeyValue, error) {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return []*config.KeyValue{
		{Key: s.path, Format: "yaml", Value: buf},
	}, nil
}

func (s *source) Watch() (config.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &watcher{src: s, w: w}, nil
}

type watcher struct {
	src *source
	w   *fsnotify.Watcher
}

func (w *watcher) Next() ([]*config.KeyValue, error) {
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil, nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.src.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			return w.src.Load()
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil, nil
			}
			return nil, err
		}
	}
}

func (w *watcher) Stop() error {
	return w.w.Close()
}
