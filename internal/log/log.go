// Package log provides the process-wide structured logger.
package log

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is the process-wide logger. It starts out writing everything at
// info level and above; call InitLogger to apply a different level.
var Logger = newLogger(level.AllowInfo())

func newLogger(opt level.Option) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
	return level.NewFilter(l, opt)
}

// Level names accepted by InitLogger.
const (
	Debug = "debug"
	Info  = "info"
	Warn  = "warn"
	Error = "error"
)

// InitLogger replaces Logger with one filtered at the given level. Unknown
// levels fall back to info.
func InitLogger(levelName string) {
	var opt level.Option
	switch levelName {
	case Debug:
		opt = level.AllowDebug()
	case Warn:
		opt = level.AllowWarn()
	case Error:
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	Logger = newLogger(opt)
}
