package lib

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogDirectory = "logs"
	LogFileName  = "log"
)

/*
	This file implements a logging system with support for different log levels (Debug, Info, Warn, Error, Fatal) and colored output.
	The Logger can output logs to stdout and to auto-rotating log files, and can be 'named' so that every line a simulated
	node writes carries that node's identity.
*/

func init() {
	color.NoColor = false
}

// LoggerI defines the interface for various logging levels and formatted output
type LoggerI interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	Print(msg string)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Printf(format string, args ...interface{})
	Named(name string) LoggerI
}

const (
	DebugLevel int32 = -4
	InfoLevel  int32 = 0
	WarnLevel  int32 = 4
	ErrorLevel int32 = 8

	Reset = iota
	RED
	GREEN
	YELLOW
	BLUE
	GRAY
)

var (
	_ LoggerI = &Logger{}
)

// LoggerConfig holds configuration settings for the logger, including logging level and output writer
type LoggerConfig struct {
	Level int32 `json:"level"`
	Out   io.Writer
}

// Logger is the concrete implementation of LoggerI, managing log output based on configuration
type Logger struct {
	config LoggerConfig
	prefix string
}

// severity is how a log level is labeled and colored
type severity struct {
	level int32
	label string
	color int
}

var (
	debugSeverity = severity{level: DebugLevel, label: "DEBUG", color: BLUE}
	infoSeverity  = severity{level: InfoLevel, label: "INFO", color: GREEN}
	warnSeverity  = severity{level: WarnLevel, label: "WARN", color: YELLOW}
	errorSeverity = severity{level: ErrorLevel, label: "ERROR", color: RED}
	// fatal lines are written whatever the configured level
	fatalSeverity = severity{level: math.MaxInt32, label: "FATAL", color: RED}
)

func (l *Logger) Debug(msg string) { l.log(debugSeverity, msg) }
func (l *Logger) Info(msg string)  { l.log(infoSeverity, msg) }
func (l *Logger) Warn(msg string)  { l.log(warnSeverity, msg) }
func (l *Logger) Error(msg string) { l.log(errorSeverity, msg) }

// Fatal() logs the message and terminates the program
func (l *Logger) Fatal(msg string) {
	l.log(fatalSeverity, msg)
	os.Exit(1)
}

// Print() logs a message without any specific log level or color
func (l *Logger) Print(msg string) { l.write(l.prefix + msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(debugSeverity, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.logf(infoSeverity, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.logf(warnSeverity, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(errorSeverity, format, args...) }

// Fatalf() logs the formatted message and terminates the program
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf(fatalSeverity, format, args...)
	os.Exit(1)
}

// Printf() logs a formatted message without any specific log level or color
func (l *Logger) Printf(format string, args ...interface{}) {
	l.write(l.prefix + fmt.Sprintf(format, args...))
}

// log() writes a colored 'LABEL: [name] msg' line if the severity is enabled
func (l *Logger) log(s severity, msg string) {
	if l.config.Level <= s.level {
		l.write(colorString(s.color, s.label+": "+l.prefix+msg))
	}
}

// logf() is log() for a format string; the arguments are only formatted if the severity is enabled
func (l *Logger) logf(s severity, format string, args ...interface{}) {
	if l.config.Level <= s.level {
		l.log(s, fmt.Sprintf(format, args...))
	}
}

// Named() returns a logger sharing the same output and level that prefixes every line with the name
func (l *Logger) Named(name string) LoggerI {
	return &Logger{config: l.config, prefix: l.prefix + "[" + name + "] "}
}

// write() outputs the log message with a timestamp to the configured writer
func (l *Logger) write(msg string) {
	timeColored := colorString(GRAY, time.Now().Format(time.StampMilli))
	if _, err := l.config.Out.Write([]byte(fmt.Sprintf("%s %s\n", timeColored, msg))); err != nil {
		fmt.Println(fmt.Sprintf("log write failed with err: %s", err.Error()))
	}
}

// NewLogger() creates a new Logger instance with the specified configuration and optional data directory path
func NewLogger(config LoggerConfig, dataDirPath ...string) LoggerI {
	if config.Out == nil {
		if dataDirPath == nil || dataDirPath[0] == "" {
			dataDirPath = make([]string, 1)
			dataDirPath[0] = DefaultDataDirPath()
		}
		logPath := filepath.Join(dataDirPath[0], LogDirectory, LogFileName)
		if _, err := os.Stat(logPath); errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(filepath.Join(dataDirPath[0], LogDirectory), os.ModePerm); err != nil {
				panic(err)
			}
		}
		logFile := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    1, // megabyte
			MaxBackups: 100,
			MaxAge:     14, // days
			Compress:   true,
		}
		config.Out = io.MultiWriter(os.Stdout, logFile)
	}
	return &Logger{
		config: config,
	}
}

// NewDefaultLogger() creates a Logger with default settings, logging at the Debug level to stdout
func NewDefaultLogger() LoggerI {
	return NewLogger(LoggerConfig{
		Level: DebugLevel,
		Out:   os.Stdout,
	})
}

// NewNullLogger() creates a Logger that discards all log output
func NewNullLogger() LoggerI {
	return NewLogger(LoggerConfig{
		Level: DebugLevel,
		Out:   io.Discard,
	})
}

// colorString() returns a string with color applied, preserving line breaks
func colorString(c int, msg string) (res string) {
	arr := strings.Split(msg, "\n")
	l := len(arr)
	for i, part := range arr {
		res += cString(c, part)
		if i != l-1 {
			res += "\n"
		}
	}
	return
}

// cString() returns a string with a specific color applied
func cString(c int, msg string) string {
	switch c {
	case BLUE:
		return color.BlueString(msg)
	case RED:
		return color.RedString(msg)
	case YELLOW:
		return color.YellowString(msg)
	case GREEN:
		return color.GreenString(msg)
	case GRAY:
		return color.HiBlackString(msg)
	default:
		return color.WhiteString(msg)
	}
}
