package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Log level constants, ordered by increasing verbosity.
const (
	None = iota
	Error
	Warning
	Info
	Debug
)

var currentLevel atomic.Int32
var logger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

func init() {
	currentLevel.Store(Info)
}

// SetLevel atomically sets the global logging level, clamped to [None, Debug].
func SetLevel(level int) {
	if level < None {
		level = None
	} else if level > Debug {
		level = Debug
	}
	currentLevel.Store(int32(level))
}

// GetLevel atomically retrieves the current logging level.
func GetLevel() int {
	return int(currentLevel.Load())
}

// ParseLevel converts a log level string (case-insensitive) to its integer value.
// Returns Info and an error for unrecognized strings.
func ParseLevel(levelStr string) (int, error) {
	switch strings.ToLower(levelStr) {
	case "none":
		return None, nil
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warning, nil
	case "info":
		return Info, nil
	case "debug":
		return Debug, nil
	default:
		return Info, fmt.Errorf("invalid log level string: '%s'", levelStr)
	}
}

// SetupLogging sets the global level from a string, falling back to Info (with a
// warning) when the string is invalid. Returns the level that was set.
func SetupLogging(levelStr string) int {
	level, err := ParseLevel(levelStr)
	if err != nil {
		Logf(Warning, "Invalid log level '%s', defaulting to 'info': %v", levelStr, err)
	}
	SetLevel(level)
	return level
}

// SetOutput changes the output destination of the global logger.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Logf logs a formatted message if the given level is enabled globally.
func Logf(level int, format string, v ...interface{}) {
	if int32(level) > currentLevel.Load() {
		return
	}

	var prefix string
	switch level {
	case Error:
		prefix = "[ERROR] "
	case Warning:
		prefix = "[WARN] "
	case Info:
		prefix = "[INFO] "
	case Debug:
		prefix = "[DEBUG] "
	default:
		prefix = "[UNKN] "
	}

	logger.Println(prefix + fmt.Sprintf(format, v...))
}
