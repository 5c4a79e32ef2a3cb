package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/PolarWolf314/forge/internal/kernel"
)

// ModeLabel is the user-facing name of a mode. Duress is shown exactly like
// a genuine unlock, so anyone watching the screen cannot tell them apart.
func ModeLabel(m kernel.Mode) string {
	if m.Unlocked() {
		return "unlocked"
	}
	return "locked"
}

// StatusLine renders the session state for the shell prompt.
func StatusLine(s kernel.State, now time.Time) string {
	idle := now.Sub(s.LastEventAt).Truncate(time.Second)
	if idle < 0 {
		idle = 0
	}

	if s.Mode.Unlocked() {
		return fmt.Sprintf("%s %s %s", Success.Sprint("●"), ModeLabel(s.Mode), Muted.Sprintf("idle %s", idle))
	}
	return fmt.Sprintf("%s %s %s", Warning.Sprint("○"), ModeLabel(s.Mode), Muted.Sprintf("idle %s", idle))
}

// Banner returns the ASCII art title shown when the shell starts.
func Banner(title string) string {
	art := figure.NewFigure(title, "", true).String()
	return Info.Sprint(strings.TrimRight(art, "\n")) + "\n"
}
