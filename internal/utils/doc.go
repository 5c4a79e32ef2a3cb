// Package utils provides small helpers shared by the forge commands.
//
// # System Utilities
//
//   - GetUsername, GetHostname: identify the local user and machine
//   - SanitizeDeviceName, DeviceName: normalized device label for the audit log
//
// # Terminal Utilities
//
//   - ReadPassphrase: hidden passphrase input via golang.org/x/term
//   - ReadPassphraseFrom: terminal input, or a plain line when stdin is piped
//   - IsTerminal: reports whether stdin is a terminal
//
// # String Utilities
//
//   - FormatPaths: bulleted, colored path list
//   - Truncate: rune-aware shortening
package utils
