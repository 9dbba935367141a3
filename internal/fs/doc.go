// Package fs abstracts file system access for testability.
//
// Durable-state code (template store, attendance ledger, backup) goes
// through FileSystem instead of calling the os package directly, so
// tests can inject write, sync, and rename failures via FaultyFS and
// verify that no partially applied mutation becomes visible.
package fs
