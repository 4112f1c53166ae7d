package camera

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"camera-color-judge/internal/domain"
)

// colorBars are the BGR colors of the test pattern, left to right
var colorBars = [][3]byte{
	{255, 255, 255}, // white
	{0, 255, 255},   // yellow
	{255, 255, 0},   // cyan
	{0, 255, 0},     // green
	{255, 0, 255},   // magenta
	{0, 0, 255},     // red
	{255, 0, 0},     // blue
}

// ColorBars renders the test pattern as a BGR frame: seven vertical bars
// above a black strip covering the bottom quarter
func ColorBars(width, height int) *domain.RawFrame {
	data := make([]byte, width*height*3)
	strip := height - height/4
	for y := 0; y < strip; y++ {
		for x := 0; x < width; x++ {
			bar := colorBars[x*len(colorBars)/width]
			i := (y*width + x) * 3
			data[i], data[i+1], data[i+2] = bar[0], bar[1], bar[2]
		}
	}
	return &domain.RawFrame{Width: width, Height: height, Channels: 3, Data: data}
}

// SyntheticSource is an in-memory capture device. It serves the color bar
// pattern until a frame is injected and can simulate failures.
type SyntheticSource struct {
	width    int
	height   int
	interval time.Duration

	mu        sync.Mutex
	frame     *domain.RawFrame
	failOpen  error
	failReads int
	opens     atomic.Int32
}

// NewSyntheticSource creates a source of width x height frames delivered
// every interval
func NewSyntheticSource(width, height int, interval time.Duration) *SyntheticSource {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	return &SyntheticSource{
		width:    width,
		height:   height,
		interval: interval,
		frame:    ColorBars(width, height),
	}
}

// Inject replaces the frame the source delivers
func (s *SyntheticSource) Inject(frame *domain.RawFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
}

// FailOpen makes the next opens fail with err; nil clears it
func (s *SyntheticSource) FailOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOpen = err
}

// FailReads makes the next n reads report ErrNoFrame
func (s *SyntheticSource) FailReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = n
}

// Opens returns how many handles were opened
func (s *SyntheticSource) Opens() int {
	return int(s.opens.Load())
}

// Open returns a new handle on the source
func (s *SyntheticSource) Open() (domain.CaptureHandle, error) {
	s.mu.Lock()
	err := s.failOpen
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	n := s.opens.Add(1)
	return &SyntheticHandle{
		id:     fmt.Sprintf("synthetic:%d", n),
		source: s,
		done:   make(chan struct{}),
	}, nil
}

func (s *SyntheticSource) next() (*domain.RawFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads > 0 {
		s.failReads--
		return nil, domain.ErrNoFrame
	}
	return s.frame, nil
}

// SyntheticHandle is an open handle on a SyntheticSource
type SyntheticHandle struct {
	id     string
	source *SyntheticSource
	done   chan struct{}
	once   sync.Once
}

// ID returns the handle identifier
func (h *SyntheticHandle) ID() string {
	return h.id
}

// Read waits one frame interval and returns the current frame
func (h *SyntheticHandle) Read() (*domain.RawFrame, error) {
	if h.source.interval > 0 {
		timer := time.NewTimer(h.source.interval)
		defer timer.Stop()
		select {
		case <-h.done:
		case <-timer.C:
		}
	}

	select {
	case <-h.done:
		return nil, fmt.Errorf("%w: %s closed", domain.ErrFrameRead, h.id)
	default:
	}
	return h.source.next()
}

// Close releases the handle
func (h *SyntheticHandle) Close() error {
	h.once.Do(func() { close(h.done) })
	return nil
}
