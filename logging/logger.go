package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/crytic/plum/logging/colors"
	"github.com/rs/zerolog"
)

// GlobalLogger describes a Logger that is disabled by default and is instantiated when the CLI loads a project
// configuration. Each package should create its own sub-logger so that log output can be filtered by module.
var GlobalLogger = NewLogger(zerolog.Disabled)

// Logger describes a custom logging object that can log events to any arbitrary channel in structured,
// unstructured, or colorized unstructured form.
type Logger struct {
	// level describes the log level
	level zerolog.Level

	// context holds the key-value pairs that every event emitted by this Logger will carry.
	context map[string]string

	// structuredLogger describes a logger that will be used to output structured (JSON) logs.
	structuredLogger zerolog.Logger

	// structuredWriters describes the io.Writer objects that receive structured output.
	structuredWriters []io.Writer

	// unstructuredLogger describes a logger that will be used to output unstructured logs without color.
	unstructuredLogger zerolog.Logger

	// unstructuredWriters describes the io.Writer objects that receive unstructured, non-colorized output.
	unstructuredWriters []io.Writer

	// unstructuredColorLogger describes a logger that will be used to output colorized unstructured logs.
	unstructuredColorLogger zerolog.Logger

	// unstructuredColorWriters describes the io.Writer objects that receive colorized unstructured output.
	unstructuredColorWriters []io.Writer

	// writersLock guards the writer lists and the loggers built from them.
	writersLock sync.Mutex
}

// LogFormat describes what format to log in
type LogFormat string

const (
	// STRUCTURED describes that logging should be done in structured JSON format
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED describes that logging should be done in an unstructured format
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo describes a key-value mapping that can be used to log structured data
type StructuredLogInfo map[string]any

// NewLogger will create a new Logger object with a specific log level. By default, the Logger has no writers and
// output is discarded until AddWriter is called.
func NewLogger(level zerolog.Level) *Logger {
	l := &Logger{
		level:   level,
		context: make(map[string]string),
	}
	l.rebuild()
	return l
}

// NewSubLogger will create a new Logger with unique context in the form of a key-value pair. The expected use of this
// function is for each package to have their own unique logger so that parsing of logs is "grep-able" based on some key
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	l.writersLock.Lock()
	defer l.writersLock.Unlock()

	subLogger := &Logger{
		level:                    l.level,
		context:                  make(map[string]string, len(l.context)+1),
		structuredWriters:        l.structuredWriters,
		unstructuredWriters:      l.unstructuredWriters,
		unstructuredColorWriters: l.unstructuredColorWriters,
	}
	for k, v := range l.context {
		subLogger.context[k] = v
	}
	subLogger.context[key] = value
	subLogger.rebuild()
	return subLogger
}

// AddWriter will add a writer to the list of channels where log output will be sent. Adding the same writer twice
// with the same format is a no-op.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat, colored bool) {
	l.writersLock.Lock()
	defer l.writersLock.Unlock()

	target := l.writerList(format, colored)
	for _, w := range *target {
		if w == writer {
			return
		}
	}
	*target = append(*target, writer)
	l.rebuild()
}

// RemoveWriter will remove a writer from the list of writers that the logger manages. If the writer does not exist,
// this function is a no-op.
func (l *Logger) RemoveWriter(writer io.Writer, format LogFormat, colored bool) {
	l.writersLock.Lock()
	defer l.writersLock.Unlock()

	target := l.writerList(format, colored)
	for i, w := range *target {
		if w == writer {
			*target = append((*target)[:i], (*target)[i+1:]...)
			break
		}
	}
	l.rebuild()
}

// writerList returns a pointer to the writer list associated with the given format and color setting.
func (l *Logger) writerList(format LogFormat, colored bool) *[]io.Writer {
	if format == STRUCTURED {
		return &l.structuredWriters
	}
	if colored {
		return &l.unstructuredColorWriters
	}
	return &l.unstructuredWriters
}

// rebuild recreates the underlying zerolog loggers from the current writer lists, level, and context.
func (l *Logger) rebuild() {
	l.structuredLogger = l.withContext(newBaseLogger(l.structuredWriters, l.level).With().Timestamp())

	unstructured := make([]io.Writer, 0, len(l.unstructuredWriters))
	for _, w := range l.unstructuredWriters {
		unstructured = append(unstructured, setupDefaultFormatting(zerolog.ConsoleWriter{Out: w, NoColor: true}, l.level, false))
	}
	l.unstructuredLogger = l.withContext(newBaseLogger(unstructured, l.level).With())

	colored := make([]io.Writer, 0, len(l.unstructuredColorWriters))
	for _, w := range l.unstructuredColorWriters {
		colored = append(colored, setupDefaultFormatting(zerolog.ConsoleWriter{Out: w}, l.level, true))
	}
	l.unstructuredColorLogger = l.withContext(newBaseLogger(colored, l.level).With())
}

// withContext attaches this Logger's key-value context to the provided zerolog context and returns the logger.
func (l *Logger) withContext(ctx zerolog.Context) zerolog.Logger {
	for k, v := range l.context {
		ctx = ctx.Str(k, v)
	}
	return ctx.Logger()
}

// newBaseLogger creates a zerolog.Logger over the provided writers. A logger without writers is disabled so that
// events are cheap to discard.
func newBaseLogger(writers []io.Writer, level zerolog.Level) zerolog.Logger {
	if len(writers) == 0 {
		return zerolog.New(io.Discard).Level(zerolog.Disabled)
	}
	return zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level)
}

// Level will get the log level of the Logger
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel will update the log level of the Logger
func (l *Logger) SetLevel(level zerolog.Level) {
	l.writersLock.Lock()
	defer l.writersLock.Unlock()
	l.level = level
	l.rebuild()
}

// Trace is a wrapper function that will log a trace event
func (l *Logger) Trace(args ...any) {
	l.log(zerolog.TraceLevel, args...)
}

// Debug is a wrapper function that will log a debug event
func (l *Logger) Debug(args ...any) {
	l.log(zerolog.DebugLevel, args...)
}

// Info is a wrapper function that will log an info event
func (l *Logger) Info(args ...any) {
	l.log(zerolog.InfoLevel, args...)
}

// Warn is a wrapper function that will log a warning event
func (l *Logger) Warn(args ...any) {
	l.log(zerolog.WarnLevel, args...)
}

// Error is a wrapper function that will log an error event.
func (l *Logger) Error(args ...any) {
	l.log(zerolog.ErrorLevel, args...)
}

// Panic is a wrapper function that will log a panic event and then panic.
func (l *Logger) Panic(args ...any) {
	_, msg, err, _ := buildMsgs(args...)
	l.log(zerolog.ErrorLevel, args...)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
	panic(msg)
}

// log builds the messages for the given arguments and emits them on every channel at the provided level.
func (l *Logger) log(level zerolog.Level, args ...any) {
	// Build the messages and retrieve any error or associated structured log info
	colorMsg, plainMsg, err, info := buildMsgs(args...)
	debug := l.level <= zerolog.DebugLevel

	l.writersLock.Lock()
	structured := l.structuredLogger
	unstructured := l.unstructuredLogger
	colored := l.unstructuredColorLogger
	l.writersLock.Unlock()

	emit(structured.WithLevel(level), plainMsg, err, info, debug)
	emit(unstructured.WithLevel(level), plainMsg, err, info, debug)
	emit(colored.WithLevel(level), colorMsg, err, info, debug)
}

// emit chains an error and structured info onto the event and sends it. A nil event (disabled level) is a no-op.
func emit(event *zerolog.Event, msg string, err error, info StructuredLogInfo, debug bool) {
	if event == nil {
		return
	}
	if err != nil {
		event = event.Err(err)
		if debug {
			event = event.Stack()
		}
	}
	if info != nil {
		event = event.Any("info", info)
	}
	event.Msg(msg)
}

// buildMsgs describes a function that takes in a variadic list of arguments of any type and returns two strings and,
// optionally, an error and a StructuredLogInfo object. The first string will be a colorized-string that can be used for
// console logging while the second string will be a non-colorized one that can be used for file/structured logging.
func buildMsgs(args ...any) (string, string, error, StructuredLogInfo) {
	if len(args) == 0 {
		return "", "", nil, nil
	}

	colorCtx := colors.Reset
	consoleOutput := make([]string, 0)
	fileOutput := make([]string, 0)
	var info StructuredLogInfo
	var err error

	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			// Switch the current color context
			colorCtx = t
		case StructuredLogInfo:
			// Only one structured log info can be provided for each log message
			info = t
		case error:
			// Only one error can be provided for each log message
			err = t
		default:
			consoleOutput = append(consoleOutput, colorCtx(t))
			fileOutput = append(fileOutput, fmt.Sprintf("%v", t))
		}
	}

	return strings.Join(consoleOutput, ""), strings.Join(fileOutput, ""), err, info
}

// setupDefaultFormatting will update the console logger's formatting to the plum standard. Level markers are only
// colorized if colored is set.
func setupDefaultFormatting(writer zerolog.ConsoleWriter, level zerolog.Level, colored bool) zerolog.ConsoleWriter {
	paint := func(c colors.ColorFunc, s string) string {
		if !colored {
			return s
		}
		return c(s)
	}

	// Get rid of the timestamp for console output
	writer.FormatTimestamp = func(i interface{}) string {
		return ""
	}

	// We will define a custom format for each level
	writer.FormatLevel = func(i any) string {
		s, _ := i.(string)
		level, err := zerolog.ParseLevel(s)
		if err != nil {
			return s
		}

		switch level {
		case zerolog.TraceLevel:
			return paint(colors.CyanBold, zerolog.LevelTraceValue)
		case zerolog.DebugLevel:
			return paint(colors.BlueBold, zerolog.LevelDebugValue)
		case zerolog.InfoLevel:
			return paint(colors.GreenBold, colors.LEFT_ARROW)
		case zerolog.WarnLevel:
			return paint(colors.YellowBold, zerolog.LevelWarnValue)
		case zerolog.ErrorLevel:
			return paint(colors.RedBold, zerolog.LevelErrorValue)
		case zerolog.FatalLevel:
			return paint(colors.RedBold, zerolog.LevelFatalValue)
		case zerolog.PanicLevel:
			return paint(colors.RedBold, zerolog.LevelPanicValue)
		default:
			return s
		}
	}

	// If we are above debug level, we want to get rid of the `module` component when logging to console
	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{"module"}
	}

	return writer
}

// NewStdoutLogger is a convenience constructor used by the CLI: a Logger at the given level writing colorized (or
// plain, if noColor is set) unstructured output to stdout.
func NewStdoutLogger(level zerolog.Level, noColor bool) *Logger {
	l := NewLogger(level)
	l.AddWriter(os.Stdout, UNSTRUCTURED, !noColor)
	return l
}
