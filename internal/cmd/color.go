package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/harrison/snippetcheck/internal/config"
)

// resolveColor decides whether output written to w is colored under mode.
// In auto mode only terminals get color, and NO_COLOR turns it off.
func resolveColor(mode string, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
