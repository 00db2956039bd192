package workspace

import (
	"github.com/labstack/gommon/log"
)

// Logger receives warnings about skipped files and watcher failures.
// *log.Logger from gommon and the echo logger satisfy it.
type Logger interface {
	Warnf(format string, args ...interface{})
}

var defaultLogger Logger = log.New("workspace")
