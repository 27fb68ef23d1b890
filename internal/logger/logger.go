// Package logger provides structured logging functionality with configurable
// log levels and output destinations. It supports both console and file logging
// with timestamps and severity levels, plus a structured record path used by
// the pipeline to emit one audit entry per file operation.
package logger

import (
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"os"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// DEBUG level for detailed diagnostic information (verbose mode only)
	DEBUG LogLevel = iota
	// INFO level for general informational messages
	INFO
	// WARNING level for potentially problematic situations
	WARNING
	// ERROR level for error events that might still allow the application to continue
	ERROR
)

// Logger manages application logging with configurable levels and output destinations.
// It supports writing to both stderr and a log file simultaneously, and filters
// messages based on the configured log level.
type Logger struct {
	level      LogLevel
	fileWriter io.WriteCloser
	logger     *log.Logger
}

var (
	// globalLogger is the singleton logger instance used throughout the application
	globalLogger *Logger
)

// SetupLogging initializes the global logger with the specified configuration.
//
// The logger writes to stderr by default. If a log file is specified, it writes to both
// stderr and the file using io.MultiWriter. The log file is opened in append mode,
// creating it if it doesn't exist.
//
// Returns an error if the log file cannot be created or opened.
func SetupLogging(verbose bool, logFile string) error {
	level := INFO
	if verbose {
		level = DEBUG
	}

	var fileWriter io.WriteCloser
	var output io.Writer = os.Stderr

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		fileWriter = f
		output = io.MultiWriter(os.Stderr, f)
	}

	l := log.New(output, "", 0)

	globalLogger = &Logger{
		level:      level,
		fileWriter: fileWriter,
		logger:     l,
	}

	return nil
}

// Close closes the log file if one was opened. Safe to call multiple times.
func Close() error {
	if globalLogger != nil && globalLogger.fileWriter != nil {
		err := globalLogger.fileWriter.Close()
		globalLogger.fileWriter = nil
		return err
	}
	return nil
}

// Debug logs a debug-level message (only shown in verbose mode).
func Debug(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// Warning logs a warning message.
func Warning(format string, args ...interface{}) {
	logMessage(WARNING, format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// LogFileError logs a failed deletion of a single file as one ERROR entry
// spanning three lines: a header, the file path, and the underlying error.
func LogFileError(path string, err error) {
	Error("Failed to delete file\n  Path: %s\n  Reason: %v", path, err)
}

// LogFileWarning logs a skipped file as one WARNING entry spanning three
// lines: a header, the file path, and the reason it was skipped.
func LogFileWarning(path string, reason string) {
	Warning("Skipped file\n  Path: %s\n  Reason: %s", path, reason)
}

// logMessage is the internal function that handles all ambient logging.
func logMessage(level LogLevel, format string, args ...interface{}) {
	if globalLogger == nil {
		log.Printf(format, args...)
		return
	}

	if level < globalLogger.level {
		return
	}

	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	levelStr := levelToString(level)

	globalLogger.logger.Printf("%s [%s] %s", timestamp, levelStr, message)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Record is one structured audit entry, per spec §6: every destructive
// operation (or refusal) emits exactly one of these. It carries no file
// contents and, in the default privacy mode, no raw source path — only
// the opaque folder id produced by FolderID.
type Record struct {
	Timestamp time.Time
	RunID     string
	FolderID  string
	Phase     string
	Operation string // FileOperation kind, or "" for non-operation records
	Reason    string // reason code
	Outcome   string // "executed", "refused", "skipped", ...
	Detail    string // free-form, non-path diagnostic text
}

// FolderID opaques an absolute folder path into a short, stable hash
// suitable for log correlation without leaking the real path (default
// privacy mode, spec §6).
func FolderID(absPath string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(absPath))
	return fmt.Sprintf("folder-%x", h.Sum64())
}

// Audit emits a structured Record through the ambient logger at INFO level.
// This is the single call site every destructive-operation decision in the
// core must route through (spec §3 FileOperation lifecycle: "every
// construction emits exactly one audit record").
func Audit(r Record) {
	Info("run=%s folder=%s phase=%s op=%s reason=%s outcome=%s %s",
		r.RunID, r.FolderID, r.Phase, r.Operation, r.Reason, r.Outcome, r.Detail)
}
