// Package storage provides the failover store for canvasvault.
//
// The store exposes one key-value contract over three collections
// (nodes, theme, images) and keeps it available when the durable
// backend is not:
//
//   - Durable backends: Badger (default) or Bolt, opened through a Driver
//   - Memory fallback: internal/storage/memory, created eagerly
//   - Engine: routes every call to the durable backend or the fallback
//
// Failure model:
//
// Opening the durable backend is raced against a timeout. Any open
// failure, and any later durable operation failure, permanently switches
// the engine to memory mode for the rest of the process lifetime. The
// call that observed the failure is still answered, from memory. Store
// callers never see backend errors; they can only observe the mode
// change through the status sink or Mode().
//
// Reset:
//
// A persisted reset flag (see ResetFlag) requests that the durable
// database be destroyed before it is next opened.
package storage
