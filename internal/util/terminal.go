package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ShowProgress reports whether progress bars should be drawn on stderr
func ShowProgress() bool {
	return !IsQuiet() && IsTerminal(os.Stderr.Fd())
}
