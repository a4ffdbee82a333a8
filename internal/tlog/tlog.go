// Package tlog provides per-component structured logging on top of
// charmbracelet/log, and the daily-rotating statistics log file format
// used for periodic RX/TX statistics snapshots.
package tlog

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
	"github.com/mattn/go-isatty"
)

var (
	mu      sync.Mutex
	loggers = map[string]*log.Logger{}
	base    = newBaseLogger()
)

func newBaseLogger() *log.Logger {
	formatter := log.TextFormatter
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Formatter:       formatter,
	})
}

// For returns the logger for a named component (e.g. "rxproc", "esf"),
// creating it on first use. Every component's logger shares the same
// output and level, tagged with its own prefix.
func For(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[component]; ok {
		return l
	}
	l := base.WithPrefix(component)
	loggers[component] = l
	return l
}

// SetLevel sets the level for every component logger, including ones
// created after this call.
func SetLevel(level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	base.SetLevel(level)
	for _, l := range loggers {
		l.SetLevel(level)
	}
}

// LevelForVerbosity maps a repeated -v count to a log level: 0 is Info,
// 1 is Debug, 2+ stays Debug (charmbracelet/log has nothing quieter than
// Info above the default, or louder than Debug below it).
func LevelForVerbosity(verbosity int) log.Level {
	if verbosity <= 0 {
		return log.InfoLevel
	}
	return log.DebugLevel
}

// StatsFileName returns the daily-rotating statistics log file name for
// the given time in UTC, formatted with the strftime pattern
// "%Y-%m-%d-tedium-stats.log".
func StatsFileName(t time.Time) (string, error) {
	return strftime.Format("%Y-%m-%d-tedium-stats.log", t.UTC())
}
