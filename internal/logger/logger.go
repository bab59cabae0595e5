package logger

import (
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	jsonFormat   = false
	logger       = stdlog.New(os.Stdout, "", 0)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SetLevel sets the minimum level that is written. Unknown values are ignored.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

// SetFormat selects "text" (default) or "json" output.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	jsonFormat = strings.EqualFold(format, "json")
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = stdlog.New(w, "", 0)
}

// Configure applies level, format and output in one call. Output is
// "stdout", "stderr" or a file path opened in append mode.
func Configure(level, format, output string) error {
	var w io.Writer
	switch strings.ToLower(output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log output %q: %w", output, err)
		}
		w = f
	}

	SetLevel(level)
	SetFormat(format)
	SetOutput(w)
	return nil
}

// Enabled reports whether messages at level would be written.
func Enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= currentLevel
}

func log(level Level, format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if level < currentLevel {
		return
	}

	now := time.Now()
	message := fmt.Sprintf(format, v...)

	if jsonFormat {
		line, err := json.Marshal(struct {
			Time  string `json:"time"`
			Level string `json:"level"`
			Msg   string `json:"msg"`
		}{now.UTC().Format(time.RFC3339Nano), level.String(), message})
		if err == nil {
			logger.Println(string(line))
			return
		}
	}

	prefix := fmt.Sprintf("[%s] [%s] ", now.Format("2006-01-02 15:04:05"), level.String())
	logger.Println(prefix + message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
