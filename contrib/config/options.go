package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decoder is config decoder.
type Decoder func(*KeyValue, map[string]any) error

// Resolver resolve placeholder in config.
type Resolver func(map[string]any) error

// Merge is config merge func.
type Merge func(dst, src any) error

// Option is config option.
type Option func(*options)

type options struct {
	sources  []Source
	decoder  Decoder
	resolver Resolver
	merge    Merge
}

// WithSource with config source.
func WithSource(s ...Source) Option {
	return func(o *options) {
		o.sources = s
	}
}

// WithDecoder with config decoder.
// DefaultDecoder behavior:
// If KeyValue.Format is non-empty, then KeyValue.Value will be deserialized into map[string]any
// and stored in the config cache(map[string]any)
// if KeyValue.Format is empty,{KeyValue.Key : KeyValue.Value} will be stored in config cache(map[string]any),
// with a dotted Key ("a.b") expanded into nested maps
func WithDecoder(d Decoder) Option {
	return func(o *options) {
		o.decoder = d
	}
}

// WithResolver with config resolver.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithMergeFunc with config merge func.
func WithMergeFunc(m Merge) Option {
	return func(o *options) {
		o.merge = m
	}
}

// defaultDecoder decode config from source KeyValue
// to target map[string]any using src.Format codec.
func defaultDecoder(src *KeyValue, target map[string]any) error {
	if src.Format == "" {
		// expand key "aaa.bbb" into map[aaa]map[bbb]any
		keys := strings.Split(src.Key, ".")
		for i, k := range keys {
			if i == len(keys)-1 {
				target[k] = src.Value
			} else {
				sub := make(map[string]any)
				target[k] = sub
				target = sub
			}
		}
		return nil
	}
	if unmarshal := toUnmarshal(src.Format); unmarshal != nil {
		// Unmarshal into a scratch map first: target is a map[string]any
		// passed by value, so unmarshaling into &target would only
		// replace the local header, never the caller's map. Copying the
		// decoded keys in keeps Scan's `target` mutated in place.
		decoded := make(map[string]any)
		if err := unmarshal(src.Value, &decoded); err != nil {
			return err
		}
		for k, v := range decoded {
			target[k] = v
		}
		return nil
	}
	return fmt.Errorf("unsupported key: %s format: %s", src.Key, src.Format)
}

// defaultResolver expands ${VAR} placeholders found in string leaves of
// a decoded config tree against the process environment, recursively.
func defaultResolver(raw map[string]any) error {
	resolveMap(raw, os.Getenv)
	return nil
}

func resolveMap(m map[string]any, mapping func(string) string) {
	for k, v := range m {
		switch vv := v.(type) {
		case string:
			m[k] = expand(vv, mapping)
		case map[string]any:
			resolveMap(vv, mapping)
		case []any:
			resolveSlice(vv, mapping)
		}
	}
}

func resolveSlice(s []any, mapping func(string) string) {
	for i, v := range s {
		switch vv := v.(type) {
		case string:
			s[i] = expand(vv, mapping)
		case map[string]any:
			resolveMap(vv, mapping)
		case []any:
			resolveSlice(vv, mapping)
		}
	}
}

// defaultMerge decodes src (a resolved config tree) onto dst by round
// tripping it through JSON, the same codec the static source uses to
// produce its own KeyValue in the first place.
func defaultMerge(dst, src any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func expand(s string, mapping func(string) string) string {
	r := regexp.MustCompile(`\${(.*?)}`)
	re := r.FindAllStringSubmatch(s, -1)
	for _, i := range re {
		if len(i) == 2 { //nolint:gomnd
			s = strings.ReplaceAll(s, i[0], mapping(i[1]))
		}
	}
	return s
}

type Unmarshal func(data []byte, v any) error

func toUnmarshal(format string) Unmarshal {
	switch format {
	case "yaml", "yml":
		return yaml.Unmarshal
	default:
		return json.Unmarshal
	}
}
