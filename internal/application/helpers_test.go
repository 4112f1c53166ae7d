package application

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"camera-color-judge/internal/domain"
)

type logEntry struct {
	level string
	msg   string
}

// recordingLogger keeps every record for assertions
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Info(msg string, args ...interface{})  { l.add("INFO", msg) }
func (l *recordingLogger) Warn(msg string, args ...interface{})  { l.add("WARN", msg) }
func (l *recordingLogger) Error(msg string, args ...interface{}) { l.add("ERROR", msg) }
func (l *recordingLogger) Debug(msg string, args ...interface{}) { l.add("DEBUG", msg) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && (msg == "" || e.msg == msg) {
			n++
		}
	}
	return n
}

// fakeHandle serves whatever frame was last set; without one it reports
// ErrNoFrame after a short pause
type fakeHandle struct {
	id     string
	mu     sync.Mutex
	frame  *domain.RawFrame
	closed bool
	closes atomic.Int32
	reads  atomic.Int64
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) SetFrame(f *domain.RawFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frame = f
}

func (h *fakeHandle) Read() (*domain.RawFrame, error) {
	h.reads.Add(1)
	h.mu.Lock()
	f, closed := h.frame, h.closed
	h.mu.Unlock()

	if closed {
		return nil, errors.New("handle closed")
	}
	if f == nil {
		time.Sleep(time.Millisecond)
		return nil, domain.ErrNoFrame
	}
	return f, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.closes.Add(1)
	return nil
}

func (h *fakeHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// fakeManager hands out fakeHandles and counts opens
type fakeManager struct {
	mu      sync.Mutex
	openErr error
	opened  []*fakeHandle
	newFn   func(n int) domain.CaptureHandle
}

func (m *fakeManager) ListDevices() ([]domain.VideoDevice, error) {
	return []domain.VideoDevice{{ID: "fake0", Label: "Fake", Kind: "videoinput"}}, nil
}

func (m *fakeManager) OpenCamera(config domain.DeviceConfig) (domain.CaptureHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	if m.newFn != nil {
		return m.newFn(len(m.opened)), nil
	}
	h := &fakeHandle{id: fmt.Sprintf("fake%d", len(m.opened))}
	m.opened = append(m.opened, h)
	return h, nil
}

func (m *fakeManager) handles() []*fakeHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeHandle(nil), m.opened...)
}

// bgrFrame builds a raw device frame filled with (b, g, r)
func bgrFrame(w, h int, b, g, r byte) *domain.RawFrame {
	data := make([]byte, w*h*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = b, g, r
	}
	return &domain.RawFrame{Width: w, Height: h, Channels: 3, Data: data}
}

// paintBGR fills the rectangle [x0,x1)x[y0,y1) of a raw frame
func paintBGR(f *domain.RawFrame, x0, y0, x1, y1 int, b, g, r byte) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := (y*f.Width + x) * 3
			f.Data[i], f.Data[i+1], f.Data[i+2] = b, g, r
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}
