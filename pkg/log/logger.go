package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

var logger *customLogger

// nolint:gochecknoinits
func init() {
	logger = newLogger(os.Stderr)
}

type customLogger struct {
	*logrus.Logger
}

func newLogger(out io.Writer) *customLogger {
	return &customLogger{&logrus.Logger{
		Out:   out,
		Level: logrus.InfoLevel,
		Hooks: make(logrus.LevelHooks),
		Formatter: &easy.Formatter{
			TimestampFormat: "01-02 15:04:05.000",
			LogFormat:       "[%lvl%]   [%time%]   -   %msg%\r\n",
		},
	}}
}

// SetOutput redirects every subsequent log line to out.
func SetOutput(out io.Writer) {
	logger.SetOutput(out)
}

// SetLevel
// Set log level:
// DebugLevel = 0
// InfoLevel = 1
// WarnLevel = 2
// ErrorLevel = 3
func SetLevel(lvl int) {
	switch lvl {
	case 0:
		logger.Level = logrus.DebugLevel
	case 2:
		logger.Level = logrus.WarnLevel
	case 3:
		logger.Level = logrus.ErrorLevel
	default:
		logger.Level = logrus.InfoLevel
	}
	Infof("log level set to %v.", strings.ToUpper(logger.Level.String()))
}

// SetLevelName accepts debug, info, warn or error; anything else falls back to info.
func SetLevelName(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		SetLevel(0)
	case "warn", "warning":
		SetLevel(2)
	case "error":
		SetLevel(3)
	default:
		SetLevel(1)
	}
}

// IsDebug reports whether debug lines are emitted.
func IsDebug() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}

func Debug(content interface{}) {
	logger.Debug(content)
}

func Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func Info(content interface{}) {
	logger.Info(content)
}

func Infof(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...))
}

func Warn(content interface{}) {
	logger.Warn(content)
}

func Warnf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func Error(content interface{}) {
	logger.Error(content)
}

func Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

func Fatal(content interface{}) {
	logger.Fatal(content)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatal(fmt.Sprintf(format, args...))
}
