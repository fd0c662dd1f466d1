// Package cmap provides a concurrent-safe sharded map.
//
// Keys are spread over a power-of-two number of shards, each guarded by
// its own RWMutex, so readers and writers touching different shards do
// not contend.
//
// Usage:
//
//	m := cmap.New[string, []byte]()
//	m.Set("root", payload)
//	v, ok := m.Get("root")
package cmap
