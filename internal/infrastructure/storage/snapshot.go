package storage

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/domain"
)

// SnapshotWriter saves frames as timestamped PNG files with the overlay
// next to them as JSON
type SnapshotWriter struct {
	mutex  sync.Mutex
	dir    string
	logger application.Logger
	saved  int
	now    func() time.Time
}

// NewSnapshotWriter creates the output directory if needed
func NewSnapshotWriter(dir string, logger application.Logger) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &SnapshotWriter{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the output directory
func (w *SnapshotWriter) Dir() string {
	return w.dir
}

// Save writes the frame of update and returns the PNG path. It fails with
// domain.ErrNoFrame when update carries no frame.
func (w *SnapshotWriter) Save(update domain.Update) (string, error) {
	if update.Frame == nil {
		return "", domain.ErrNoFrame
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.saved++
	timestamp := w.now().Format("2006-01-02_15-04-05")
	base := filepath.Join(w.dir, fmt.Sprintf("snapshot_%s_%04d", timestamp, w.saved))
	pngPath := base + ".png"

	file, err := os.Create(pngPath)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := png.Encode(file, update.Frame.RGBA()); err != nil {
		file.Close()
		os.Remove(pngPath)
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close snapshot: %w", err)
	}

	meta, err := json.MarshalIndent(struct {
		Frame   uint64         `json:"frame"`
		Width   int            `json:"width"`
		Height  int            `json:"height"`
		Overlay domain.Overlay `json:"overlay"`
	}{update.Frame.Seq, update.Frame.Width, update.Frame.Height, update.Overlay}, "", "  ")
	if err == nil {
		err = os.WriteFile(base+".json", meta, 0644)
	}
	if err != nil {
		w.logger.Warn("failed to write snapshot metadata", "path", base+".json", "error", err)
	}

	w.logger.Info("snapshot saved", "path", pngPath, "frame", update.Frame.Seq)
	return pngPath, nil
}

// List returns the saved PNG files, oldest first
func (w *SnapshotWriter) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".png") {
			paths = append(paths, filepath.Join(w.dir, entry.Name()))
		}
	}
	return paths, nil
}
