// Package snapshot exports and imports the whole store as a versioned JSON
// document.
//
// Document layout (format version 1.0):
//
//	{
//	  "version": "1.0",
//	  "timestamp": "2026-01-02T15:04:05Z",
//	  "data": {
//	    "nodes":  {"root": {...}, "<id>": {...}},
//	    "theme":  {"id": "theme", "isDarkTheme": true},
//	    "images": {"<id>": "<encoded payload>"},
//	    "editCounter": 12,
//	    "lastBackupReminder": null
//	  }
//	}
//
// Import distinguishes input that is not JSON (ErrMalformedSnapshot) from
// JSON that does not have the shape above (ErrInvalidSnapshotStructure).
// Both are detected before the store is touched. Import replaces nodes and
// images wholesale; a failure after that point is reported as
// ErrPartialImport and leaves the store partially imported.
//
// Manager keeps exported documents on disk as snapshot-<ulid>.json files
// with a retention policy.
package snapshot
