//go:build !cgo

package window

import (
	"context"
	"errors"

	"camera-color-judge/internal/application"
)

// Run needs the ebiten backend, which requires cgo
func Run(_ context.Context, _ Controller, _ SnapshotSaver, _, _ int, _ application.Logger) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1), use -mode web or -mode headless")
}
