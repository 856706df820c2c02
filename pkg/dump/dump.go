// Package dump provides the injected side-effect sink spec §9 asks
// for: graph/meta-election snapshots and ad-hoc trace output are
// confined to a Hook the engine calls through, never touched directly.
package dump

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// Hook receives named dump events from the engine. Implementations
// must not block or retain arguments beyond the call.
type Hook interface {
	Dump(label string, v interface{})
}

// NopHook discards every dump, the default for production nodes.
type NopHook struct{}

// Dump implements Hook.
func (NopHook) Dump(string, interface{}) {}

// LoggingHook writes dumps as structured zap log lines, useful when
// diagnosing a single misbehaving node without a file sink.
type LoggingHook struct {
	Logger *zap.Logger
}

// Dump implements Hook.
func (h LoggingHook) Dump(label string, v interface{}) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("dump", zap.String("label", label), zap.Any("value", v))
}

// FileHook writes each dump as a JSON file under Dir, named by label
// and a monotonically increasing sequence number. Intended for
// offline post-mortem analysis of a single run, never for production.
type FileHook struct {
	Dir    string
	Logger *zap.Logger
	seq    int
}

// Dump implements Hook.
func (h *FileHook) Dump(label string, v interface{}) {
	h.seq++
	path := filepath.Join(h.Dir, label+"."+strconv.Itoa(h.seq)+".json")
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		h.logError(err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		h.logError(err)
	}
}

func (h *FileHook) logError(err error) {
	if h.Logger != nil {
		h.Logger.Warn("dump write failed", zap.Error(err))
	}
}
