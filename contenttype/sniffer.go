package contenttype

import (
	gojson "github.com/goccy/go-json"
	"github.com/gabriel-vasile/mimetype"
	"gopkg.in/yaml.v3"
)

// Well-known results.
const (
	Default = "application/octet-stream"
	Text    = "text/plain"
	JSON    = "application/json; charset=utf-8"
	YAML    = "text/yaml; charset=utf-8"
)

// Resolver maps raw bytes to a MIME string. Implementations must be total.
type Resolver interface {
	Resolve(data []byte) string
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(data []byte) string

// Resolve calls f(data).
func (f ResolverFunc) Resolve(data []byte) string { return f(data) }

// Option configures a Sniffer.
type Option func(*Sniffer)

// WithJSON toggles JSON detection.
func WithJSON(enabled bool) Option {
	return func(s *Sniffer) { s.json = enabled }
}

// WithYAML toggles YAML detection.
func WithYAML(enabled bool) Option {
	return func(s *Sniffer) { s.yaml = enabled }
}

// Sniffer is the default Resolver.
type Sniffer struct {
	json bool
	yaml bool
}

// New returns a Sniffer with JSON and YAML detection enabled.
func New(optFns ...Option) *Sniffer {
	s := &Sniffer{json: true, yaml: true}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Resolve implements Resolver. The first matching rule wins.
func (s *Sniffer) Resolve(data []byte) string {
	if len(data) == 0 {
		return Default
	}
	if s.json {
		if ct, ok := sniffJSON(data); ok {
			return ct
		}
	}
	if s.yaml {
		if ct, ok := sniffYAML(data); ok {
			return ct
		}
	}
	if mt := mimetype.Detect(data); mt != nil && mt.String() != "" {
		return mt.String()
	}
	return Default
}

func sniffJSON(data []byte) (string, bool) {
	var v any
	if err := gojson.Unmarshal(data, &v); err != nil {
		return "", false
	}
	switch v.(type) {
	case map[string]any, []any:
		return JSON, true
	default:
		return Text, true
	}
}

func sniffYAML(data []byte) (string, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false
	}
	n := unwrap(&doc)
	if n == nil {
		return "", false
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return Text, true
	case yaml.MappingNode, yaml.SequenceNode:
		return YAML, true
	default:
		return "", false
	}
}

// unwrap descends through document and alias wrappers to the value node.
func unwrap(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}
