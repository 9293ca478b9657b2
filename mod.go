// Package escrow is the root of a node running a two-party escrow ledger on
// top of a fungible token ledger. It provides the global logger and the list
// of Prometheus collectors the components register to.
package escrow

import (
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "ESCROW_LOG_LEVEL"

// EnvLogFile is the name of the environment variable that, when set, makes the
// logger also write to a rotated file at the given path.
const EnvLogFile = "ESCROW_LOG_FILE"

const defaultLevel = zerolog.InfoLevel

func init() {
	lvl := os.Getenv(EnvLogLevel)

	var level zerolog.Level

	switch lvl {
	case "error":
		level = zerolog.ErrorLevel
	case "warn":
		level = zerolog.WarnLevel
	case "info":
		level = zerolog.InfoLevel
	case "debug":
		level = zerolog.DebugLevel
	case "trace":
		level = zerolog.TraceLevel
	case "":
		level = defaultLevel
	default:
		level = zerolog.TraceLevel
	}

	Logger = NewLogger(logOutput(os.Getenv(EnvLogFile))).Level(level)
}

// Logger is a globally available logger instance. By default, it only prints
// info level logs, but it can be changed through the ESCROW_LOG_LEVEL
// environment variable.
var Logger zerolog.Logger

// PromCollectors exposes Prometheus metrics. Components can add their
// collectors to this list and the node will register them when the metrics
// handler is started.
var PromCollectors []prometheus.Collector

// NewLogger returns a logger writing to the given output with a timestamp and
// the caller.
func NewLogger(out io.Writer) zerolog.Logger {
	return zerolog.New(out).
		With().Timestamp().Logger().
		With().Caller().Logger()
}

func logOutput(file string) io.Writer {
	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if file == "" {
		return console
	}

	rotated := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}

	return zerolog.MultiLevelWriter(console, rotated)
}
