package hips

import (
	"log/slog"
	"sync/atomic"
)

// discard is the default package logger. Its handler reports every level
// as disabled, so log calls return before formatting their arguments.
var discard = slog.New(slog.DiscardHandler)

var packageLogger atomic.Pointer[slog.Logger]

func init() {
	packageLogger.Store(discard)
}

// SetLogger sets the package logger, used by engines created without
// WithLogger. Engines read it once, in NewEngine. By default hips is
// silent; pass nil to silence it again.
//
// Levels:
//   - [slog.LevelDebug]: per-tile transitions (fetch result, decode, eviction)
//   - [slog.LevelInfo]: survey lifecycle (properties parsed, allsky loaded)
//   - [slog.LevelWarn]: recoverable problems (decode failure, failed fetch)
//   - [slog.LevelError]: a survey failed and will not render
//
// Example:
//
//	hips.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	packageLogger.Store(l)
}

// Logger returns the package logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return packageLogger.Load()
}
