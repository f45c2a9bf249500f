// Package logger writes structured logfmt lines through go-kit's logger.
// Call sites pass a message plus alternating key/value pairs:
//
//	logger.Info("shipment status updated", "shipment", s.ShipmentNumber, "status", s.Status)
package logger

import (
	"io"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

var base = New(os.Stderr, "waste-tracking")

// New builds a logfmt logger stamped with UTC time and the service name.
func New(w io.Writer, service string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	return log.With(l, "ts", log.DefaultTimestampUTC, "service", service)
}

// SetLogger replaces the process-wide logger. Call it before serving.
func SetLogger(l log.Logger) {
	base = l
}

// With returns the process logger with extra context attached.
func With(keyvals ...interface{}) log.Logger {
	return log.With(base, keyvals...)
}

func entry(msg string, keyvals []interface{}) []interface{} {
	return append([]interface{}{"msg", msg}, keyvals...)
}

func Info(msg string, keyvals ...interface{}) {
	level.Info(base).Log(entry(msg, keyvals)...)
}

func Warn(msg string, keyvals ...interface{}) {
	level.Warn(base).Log(entry(msg, keyvals)...)
}

func Error(msg string, keyvals ...interface{}) {
	level.Error(base).Log(entry(msg, keyvals)...)
}

func Fatal(msg string, keyvals ...interface{}) {
	level.Error(base).Log(entry(msg, keyvals)...)
	os.Exit(1)
}
