// Package contenttype infers a MIME type from raw bytes.
//
// The default Sniffer tries, in order: JSON, YAML, magic-byte detection,
// and finally falls back to application/octet-stream. Structured formats
// distinguish scalar documents (reported as text/plain) from containers:
//
//	contenttype.New().Resolve([]byte(`"hello"`))   // text/plain
//	contenttype.New().Resolve([]byte(`{"a":1}`))   // application/json; charset=utf-8
//	contenttype.New().Resolve([]byte("a: 1\n"))    // text/yaml; charset=utf-8
//
// Backends accept any Resolver, so callers can plug in their own logic with
// ResolverFunc.
package contenttype
