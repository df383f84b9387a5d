package core

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

var logLevel slog.LevelVar

// SetupLogging installs a tint handler writing to w as the default logger.
// Color is only used when w is a terminal; the daemon's log file stays plain.
func SetupLogging(w *os.File, verbose int) {
	SetLogLevel(verbose)
	handler := tint.NewHandler(w, &tint.Options{
		Level:      &logLevel,
		TimeFormat: time.DateTime,
		NoColor:    !term.IsTerminal(int(w.Fd())),
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel maps the verbose count onto the active handler level. Used by
// the daemon's config watcher to change verbosity without a restart.
func SetLogLevel(verbose int) {
	if verbose > 0 {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
}
