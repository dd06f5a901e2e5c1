package logger

import "gitlab.com/distbuild.net/internal/adapter/logging"

// Logger is the process default, used by main before the configured logger exists
var Logger = logging.NewZapLogger()

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}
