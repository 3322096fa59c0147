package config

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dario.cat/mergo"

	"github.com/omalloc/tavern-proxy/contrib/log"
)

// Observer is config observer.
type Observer[T any] func(string, *T)

// Config is a config interface.
type Config[T any] interface {
	Scan(v *T) error
	Watch(key string, o Observer[T]) error
	Close() error
}

type config[T any] struct {
	opts   *options
	stop   chan struct{}
	signal chan os.Signal

	observers map[string][]Observer[T]
	bc        *T
}

func New[T any](opts ...Option) Config[T] {
	o := &options{}

	for _, opt := range opts {
		opt(o)
	}
	if o.decoder == nil {
		o.decoder = defaultDecoder
	}
	if o.resolver == nil {
		o.resolver = defaultResolver
	}
	if o.merge == nil {
		o.merge = defaultMerge
	}

	c := &config[T]{
		opts:      o,
		stop:      make(chan struct{}, 1),
		signal:    make(chan os.Signal, 1),
		observers: make(map[string][]Observer[T]),
		bc:        nil,
	}

	go c.tick()

	return c
}

// Scan loads every source in order and runs each loaded KeyValue
// through the options pipeline — o.decoder into a raw map[string]any,
// o.resolver to expand ${VAR} placeholders, o.merge to decode the
// resolved tree onto a fresh overlay — then merges that overlay onto v
// with dario.cat/mergo, later sources overriding earlier ones field by
// field. This is the same "overlay wins" discipline the teacher applies
// to middleware options via mergo.Map, here applied to the whole
// Bootstrap instead of a single map[string]any.
func (c *config[T]) Scan(v *T) error {
	c.bc = v
	for _, source := range c.opts.sources {
		files, err := source.Load()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config file not found: %w", err)
			}
			return err
		}
		for _, file := range files {
			if file.Value == nil {
				continue
			}
			log.Debugf("[config] load file: %#+v format: %s", file.Key, file.Format)

			raw := make(map[string]any)
			if err1 := c.opts.decoder(file, raw); err1 != nil {
				log.Errorf("[config] decode file: %#+v error: %s", file.Key, err1)
				continue
			}
			if err1 := c.opts.resolver(raw); err1 != nil {
				log.Errorf("[config] resolve file: %#+v error: %s", file.Key, err1)
				continue
			}
			overlay := new(T)
			if err1 := c.opts.merge(overlay, raw); err1 != nil {
				log.Errorf("[config] decode-merge file: %#+v error: %s", file.Key, err1)
				continue
			}
			if err1 := mergo.Merge(v, overlay, mergo.WithOverride); err1 != nil {
				log.Errorf("[config] merge file: %#+v error: %s", file.Key, err1)
			}
		}
	}
	return nil
}

func (c *config[T]) Watch(key string, o Observer[T]) error {
	if c.observers[key] == nil {
		c.observers[key] = make([]Observer[T], 0, 8)
	}
	c.observers[key] = append(c.observers[key], o)
	return nil
}

func (c *config[T]) Close() error {
	c.stop <- struct{}{}
	close(c.stop)
	close(c.signal)

	return nil
}

func (c *config[T]) tick() {
	signal.Notify(c.signal, syscall.SIGHUP)

	reload := make(chan struct{}, 1)
	for _, source := range c.opts.sources {
		w, err := source.Watch()
		if err != nil || w == nil {
			continue
		}
		go watchSource(w, reload, c.stop)
	}

	for {
		select {
		case <-c.stop:
			return
		case <-c.signal:
			log.Debug("[config] received SIGHUP")
			c.reload()
		case <-reload:
			log.Debug("[config] source changed")
			c.reload()
		}
	}
}

func (c *config[T]) reload() {
	if err := c.Scan(c.bc); err != nil {
		return
	}
	for k, observers := range c.observers {
		log.Debugf("[config] upgrade key: %s", k)
		for _, observer := range observers {
			observer(k, c.bc)
		}
	}
}

// watchSource forwards a Source's change notifications onto reload
// until stop fires or the watcher itself gives up.
func watchSource(w Watcher, reload chan<- struct{}, stop <-chan struct{}) {
	for {
		if _, err := w.Next(); err != nil {
			return
		}
		select {
		case reload <- struct{}{}:
		case <-stop:
			_ = w.Stop()
			return
		default:
		}
	}
}
