// Package ui provides semantic text formatting for forge CLI output.
//
// Formatters render a kind of content (commands, paths, user values) in
// color when the terminal supports it and with plain decorations when
// NO_COLOR is set or color is unavailable:
//
//	ui.Code.Sprint("forge shell")      // `forge shell` without color
//	ui.Highlight.Sprint("notes/today") // 'notes/today' without color
//	ui.Muted.Sprint("idle 3s")         // (idle 3s) without color
//
// ModeLabel and StatusLine present the session mode. Duress renders exactly
// like an ordinary unlock.
package ui
