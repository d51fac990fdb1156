package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var levels = map[string]zerolog.Level{
	"DEBUG": zerolog.DebugLevel,
	"INFO":  zerolog.InfoLevel,
	"WARN":  zerolog.WarnLevel,
	"ERROR": zerolog.ErrorLevel,
	"FATAL": zerolog.FatalLevel,
	"PANIC": zerolog.PanicLevel,
}

// SetupLogging aligns the global zerolog field names with the rest of the
// platform. Call once at process start.
func SetupLogging() {
	zerolog.LevelFieldName = "level_name"
	zerolog.TimestampFieldName = "timestamp"
}

// NewLogger returns a stderr JSON logger tagged with the component name.
// The level comes from FF_COMN_LOGLEVEL and defaults to info.
func NewLogger(component string) zerolog.Logger {
	level := zerolog.InfoLevel
	if name, ok := os.LookupEnv("FF_COMN_LOGLEVEL"); ok {
		if v, ok := levels[strings.ToUpper(name)]; ok {
			level = v
		}
	}
	return zerolog.New(os.Stderr).
		With().
		Str("component", component).
		Timestamp().
		Logger().
		Level(level)
}
