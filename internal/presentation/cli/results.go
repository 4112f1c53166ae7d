package cli

import (
	"sync"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/domain"
)

// ResultLogger is a result sink that writes every sample to the log. It
// gives headless mode its output.
type ResultLogger struct {
	logger application.Logger

	mu   sync.Mutex
	last domain.ColorLabel
	seen bool
}

// NewResultLogger creates a logging sink
func NewResultLogger(logger application.Logger) *ResultLogger {
	return &ResultLogger{logger: logger}
}

// Publish logs result at info level when the label changes and at debug
// level otherwise
func (r *ResultLogger) Publish(result domain.ClassificationResult) {
	args := []interface{}{
		"label", result.Label.String(),
		"x", result.Position.X,
		"y", result.Position.Y,
		"r", result.Color.R,
		"g", result.Color.G,
		"b", result.Color.B,
	}

	r.mu.Lock()
	changed := !r.seen || result.Label != r.last
	r.last = result.Label
	r.seen = true
	r.mu.Unlock()

	if changed {
		r.logger.Info("color", args...)
	} else {
		r.logger.Debug("color", args...)
	}
}
