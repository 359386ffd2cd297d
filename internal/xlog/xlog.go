// Package xlog is a small level-prefixed logger in the style of
// ClusterCockpit-cc-backend's pkg/log: plain *log.Logger instances
// with a prefix per level, no third-party logging dependency (no repo
// in the retrieval pack pulls one in -- see SPEC_FULL.md §A). The
// client and server engines log through it the way
// original_source/src/server.rs calls log::trace!/log::warn!.
package xlog

import (
	"io"
	"log"
	"os"
)

var (
	TraceWriter io.Writer = io.Discard
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	TracePrefix = "[TRACE] "
	WarnPrefix  = "[WARN]  "
	ErrPrefix   = "[ERROR] "
)

var (
	traceLog = log.New(TraceWriter, TracePrefix, 0)
	warnLog  = log.New(WarnWriter, WarnPrefix, 0)
	errLog   = log.New(ErrWriter, ErrPrefix, 0)
)

// SetTrace enables or disables trace-level output, the one level off
// by default since every ForwardEvent and Sync would otherwise log.
func SetTrace(enabled bool) {
	if enabled {
		traceLog.SetOutput(os.Stderr)
	} else {
		traceLog.SetOutput(io.Discard)
	}
}

func Trace(format string, args ...interface{}) { traceLog.Printf(format, args...) }
func Warn(format string, args ...interface{})  { warnLog.Printf(format, args...) }
func Err(format string, args ...interface{})   { errLog.Printf(format, args...) }
