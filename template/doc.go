// Package template implements the durable identity template store.
//
// One template per enrolled identity, persisted as one JSON file per
// identity under the store directory. Files are replaced atomically
// (write-then-rename plus directory fsync), so a crash mid-enroll
// leaves either the old or the new template on disk, never a torn
// one. Corrupt entries found on open are skipped and logged instead
// of aborting the load.
package template
