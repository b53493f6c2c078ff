// Package hotkeys binds global shortcuts to daemon actions.
package hotkeys

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/winrestore/internal/engine"
	"github.com/1broseidon/winrestore/internal/platform"
)

// Restorer performs a forced restore of the active desktop.
type Restorer interface {
	RestoreNow() engine.RestoreReport
}

// Handler manages global keyboard shortcuts
type Handler struct {
	binder platform.KeyBinder
	logger *slog.Logger
}

// NewHandler creates a new hotkey handler.
func NewHandler(binder platform.KeyBinder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{binder: binder, logger: logger}
}

// RegisterRestore binds keySequence to a forced restore.
func (h *Handler) RegisterRestore(keySequence string, r Restorer) error {
	return h.RegisterFunc(keySequence, func() {
		h.logger.Info("restore hotkey triggered", "key", keySequence)
		rep := r.RestoreNow()
		h.logger.Info("restore hotkey finished",
			"status", rep.Status,
			"written", rep.Written(),
			"failed", rep.Failed())
	})
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	if h.binder == nil {
		return fmt.Errorf("hotkeys are not supported by this backend")
	}
	if err := h.binder.BindKey(keySequence, callback); err != nil {
		return fmt.Errorf("failed to register hotkey %q: %w", keySequence, err)
	}
	return nil
}
