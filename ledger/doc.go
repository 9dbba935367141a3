// Package ledger implements the append-only attendance log.
//
// Each successful authentication appends one record with a strictly
// increasing, gapless sequence number. Records are never mutated or
// deleted; the file is one JSON object per line so the audit trail
// stays readable with ordinary text tools. Appends for the same
// identity within the duplicate-suppression window are rejected as a
// policy outcome, which keeps retried capture attempts from flooding
// the log.
package ledger
