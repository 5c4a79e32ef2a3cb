// Package audit records session lock and unlock events.
//
// # Log Format
//
// The audit log is JSON Lines (one JSON object per line), by default at:
//
//	$XDG_DATA_HOME/forge/audit.jsonl
//
// Each entry contains a UTC timestamp with microseconds, the operation
// (unlock or lock) and the device hostname.
//
// # Duress
//
// The log is readable by whoever holds the device, including a coercer. It
// therefore never names a mode. Entering Kernel or Duress is written as
// unlock, returning to Ghost as lock, and moving between Kernel and Duress
// writes nothing.
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// Use ReadEntries() to parse the log. Malformed entries are silently skipped
// to handle partial writes.
package audit
