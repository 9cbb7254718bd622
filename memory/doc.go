// Package memory provides an in-process stash.Service.
//
// Objects live in a map guarded by a RWMutex. Keys use "/" separators and
// directories are implied by them, so the backend behaves like a flat
// object store with hierarchical listing. It is intended for tests and for
// embedding where persistence is not needed.
package memory
