// Package mlog provides the engine's structured logging surface: one
// btclog/v2 SubLogger per subsystem, threaded through context.Context the
// way github.com/roasbeef/subtrate's internal/baselib/actor package logs
// (see its package-level `log.DebugS(ctx, msg, "key", value)` call sites).
package mlog

import (
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// backend is the single handler every subsystem logger derives from via
// SubSystem, so a global SetLevel call affects the whole process.
var backend = btclogv2.NewDefaultHandler(os.Stderr)

func init() {
	backend.SetLevel(btclog.LevelInfo)
}

// Logger is the structured, leveled, context-threaded logging interface used
// throughout the engine: Trace/Debug/Info/Warn/Error, each with an "S"
// variant taking a context plus key/value pairs (Warn/Error additionally
// take the causing error).
type Logger = btclogv2.Logger

// Subsystem tags, one per engine component that logs independently.
const (
	TagBroker     = "BRKR"
	TagActor      = "ACTR"
	TagSupervisor = "SUPV"
	TagMonitor    = "MNTR"
)

// New returns a Logger tagged with the given subsystem code.
func New(tag string) Logger {
	return btclogv2.NewSLogger(backend.SubSystem(tag))
}

// SetLevel adjusts the verbosity of every subsystem logger sharing this
// backend (they all derive from the same handler via SubSystem).
func SetLevel(level btclog.Level) {
	backend.SetLevel(level)
}
