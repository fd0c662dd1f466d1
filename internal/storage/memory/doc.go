// Package memory provides the in-memory fallback store for canvasvault.
//
// The store implements the same primitive contract as the durable
// backends (Get, Put, Delete, ListKeys, Clear per collection) over
// sharded concurrent maps. It never fails for backend reasons, which
// is what makes it a safe landing place when the durable backend is
// unavailable.
//
// Default seeding:
//
//   - The theme record is present from construction and Clear(theme)
//     restores it to the default.
//   - The root node is synthesized the first time it is read while
//     absent, and never again until the nodes collection is cleared.
//
// Thread Safety:
//
// All operations are thread-safe. Stored bytes are copied on the way
// in and out.
package memory
