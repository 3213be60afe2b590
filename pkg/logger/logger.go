package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts string to Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Fields represents additional structured fields for logging
type Fields map[string]interface{}

// Logger provides structured logging with context propagation
type Logger struct {
	zl    zerolog.Logger
	level Level
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		function := ""
		if fun := runtime.FuncForPC(pc); fun != nil {
			name := fun.Name()
			if slash := strings.LastIndex(name, "/"); slash > 0 {
				name = name[slash+1:]
			}
			function = " " + name + "()"
		}
		return file + ":" + strconv.Itoa(line) + function
	}
}

// callerHook attaches the caller of the public logging method
type callerHook struct{}

func (callerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Caller(4)
}

// New creates a new Logger instance
func New(level string, format string, output string, enableTracing bool) (*Logger, error) {
	var out io.Writer
	switch output {
	case "stdout", "":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = file
	}
	return NewWithWriter(out, level, format, enableTracing), nil
}

// NewWithWriter creates a Logger writing to w
func NewWithWriter(w io.Writer, level string, format string, enableTracing bool) *Logger {
	if format == "text" || os.Getenv("PRETTY") == "1" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: format == "text", TimeFormat: time.RFC3339Nano}
	}
	lvl := ParseLevel(level)
	zl := zerolog.New(w).Level(lvl.zerolog()).With().Timestamp().Logger()
	if enableTracing {
		zl = zl.Hook(callerHook{})
	}
	return &Logger{zl: zl, level: lvl}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), level: FatalLevel}
}

type ctxKey string

const taskIDKey ctxKey = "taskID"

// ContextWithTaskID stores an export run ID for later context loggers
func ContextWithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// WithContext creates a new logger with context values
func (l *Logger) WithContext(ctx context.Context) *ContextLogger {
	cl := &ContextLogger{logger: l}
	if ctx != nil {
		if id, ok := ctx.Value(taskIDKey).(string); ok {
			cl.taskID = id
		}
	}
	return cl
}

func (l *Logger) log(level Level, msg string, fields Fields) {
	e := l.zl.WithLevel(level.zerolog())
	if len(fields) > 0 {
		e = e.Fields(map[string]interface{}(fields))
	}
	e.Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(DebugLevel, msg, mergeFields(fields...))
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(InfoLevel, msg, mergeFields(fields...))
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(WarnLevel, msg, mergeFields(fields...))
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(ErrorLevel, msg, mergeFields(fields...))
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, fields ...Fields) {
	l.log(FatalLevel, msg, mergeFields(fields...))
	os.Exit(1)
}

// ContextLogger wraps Logger with context information
type ContextLogger struct {
	logger    *Logger
	taskID    string
	component string
}

// WithTaskID adds the export run ID to the context logger
func (cl *ContextLogger) WithTaskID(taskID string) *ContextLogger {
	cl.taskID = taskID
	return cl
}

// WithComponent adds component name to the context logger
func (cl *ContextLogger) WithComponent(component string) *ContextLogger {
	cl.component = component
	return cl
}

type errorInfo struct {
	code    string
	message string
}

func (cl *ContextLogger) log(level Level, event string, msg string, fields Fields, duration int64, err *errorInfo) {
	if level < cl.logger.level {
		return
	}

	e := cl.logger.zl.WithLevel(level.zerolog()).Str("event", event)
	if cl.taskID != "" {
		e = e.Str("task_id", cl.taskID)
	}
	if cl.component != "" {
		e = e.Str("component", cl.component)
	}
	if duration > 0 {
		e = e.Int64("duration_ms", duration)
	}
	if err != nil {
		e = e.Dict("error", zerolog.Dict().Str("code", err.code).Str("message", err.message))
	}
	if len(fields) > 0 {
		e = e.Fields(map[string]interface{}(fields))
	}
	e.Msg(msg)
}

// LogExportStarted logs the start of an archive export
func (cl *ContextLogger) LogExportStarted(msg string, fields Fields) {
	cl.log(InfoLevel, "ExportStarted", msg, fields, 0, nil)
}

// LogExportCompleted logs a finished archive export
func (cl *ContextLogger) LogExportCompleted(msg string, duration int64, fields Fields) {
	cl.log(InfoLevel, "ExportCompleted", msg, fields, duration, nil)
}

// LogExportFailed logs an aborted archive export
func (cl *ContextLogger) LogExportFailed(msg string, errorCode string, errorMsg string, fields Fields) {
	cl.log(ErrorLevel, "ExportFailed", msg, fields, 0, &errorInfo{code: errorCode, message: errorMsg})
}

// LogTableOpened logs the start of a table document
func (cl *ContextLogger) LogTableOpened(msg string, fields Fields) {
	cl.log(DebugLevel, "TableOpened", msg, fields, 0, nil)
}

// LogTableClosed logs a finished table document
func (cl *ContextLogger) LogTableClosed(msg string, duration int64, fields Fields) {
	cl.log(InfoLevel, "TableClosed", msg, fields, duration, nil)
}

// LogLOBWritten logs one stored large object
func (cl *ContextLogger) LogLOBWritten(msg string, fields Fields) {
	cl.log(DebugLevel, "LOBWritten", msg, fields, 0, nil)
}

// LogContainerRotated logs the switch to a new auxiliary container
func (cl *ContextLogger) LogContainerRotated(msg string, fields Fields) {
	cl.log(InfoLevel, "ContainerRotated", msg, fields, 0, nil)
}

// LogFileCreated logs file creation
func (cl *ContextLogger) LogFileCreated(msg string, fields Fields) {
	cl.log(InfoLevel, "FileCreated", msg, fields, 0, nil)
}

// LogUploadStarted logs the start of an archive upload
func (cl *ContextLogger) LogUploadStarted(msg string, fields Fields) {
	cl.log(InfoLevel, "UploadStarted", msg, fields, 0, nil)
}

// LogUploadCompleted logs upload completion
func (cl *ContextLogger) LogUploadCompleted(msg string, duration int64, fields Fields) {
	cl.log(InfoLevel, "UploadCompleted", msg, fields, duration, nil)
}

// LogUploadFailed logs upload failure
func (cl *ContextLogger) LogUploadFailed(msg string, errorCode string, errorMsg string, fields Fields) {
	cl.log(ErrorLevel, "UploadFailed", msg, fields, 0, &errorInfo{code: errorCode, message: errorMsg})
}

// LogError logs a generic error
func (cl *ContextLogger) LogError(event string, msg string, errorCode string, errorMsg string, fields Fields) {
	cl.log(ErrorLevel, event, msg, fields, 0, &errorInfo{code: errorCode, message: errorMsg})
}

// LogInfo logs a generic info message
func (cl *ContextLogger) LogInfo(event string, msg string, fields Fields) {
	cl.log(InfoLevel, event, msg, fields, 0, nil)
}

// LogDebug logs a generic debug message
func (cl *ContextLogger) LogDebug(event string, msg string, fields Fields) {
	cl.log(DebugLevel, event, msg, fields, 0, nil)
}

// LogWarn logs a generic warning message
func (cl *ContextLogger) LogWarn(event string, msg string, fields Fields) {
	cl.log(WarnLevel, event, msg, fields, 0, nil)
}

// mergeFields merges multiple Fields into one
func mergeFields(fields ...Fields) Fields {
	result := Fields{}
	for _, f := range fields {
		for k, v := range f {
			result[k] = v
		}
	}
	return result
}
