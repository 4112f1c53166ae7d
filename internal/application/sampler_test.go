package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"camera-color-judge/internal/domain"
)

type collectingSink struct {
	mu      sync.Mutex
	results []domain.ClassificationResult
}

func (s *collectingSink) Publish(r domain.ClassificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *collectingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func rgbFrame(w, h int, c domain.RGB) *domain.Frame {
	pix := make([]byte, w*h*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
	}
	return &domain.Frame{Width: w, Height: h, Channels: 3, Pix: pix}
}

func TestSampleOutOfBounds(t *testing.T) {
	frame := rgbFrame(640, 480, domain.RGB{R: 200})
	positions := []domain.QueryPosition{
		{X: -1, Y: 0}, {X: 0, Y: -1}, {X: 640, Y: 0}, {X: 0, Y: 480},
		{X: 639, Y: 480}, {X: -100, Y: -100}, {X: 10000, Y: 5},
	}
	for _, pos := range positions {
		if got := Sample(frame, pos); got.Label != domain.LabelOutOfBounds {
			t.Errorf("Sample(%+v) = %v, want OutOfBounds", pos, got.Label)
		}
	}

	if got := Sample(frame, domain.QueryPosition{X: 639, Y: 479}); got.Label != domain.LabelRed {
		t.Errorf("corner pixel = %v, want Red", got.Label)
	}
}

func TestSampleTruncatedFrameIsUnknown(t *testing.T) {
	frame := &domain.Frame{Width: 10, Height: 10, Channels: 3, Pix: make([]byte, 9)}
	got := Sample(frame, domain.QueryPosition{X: 9, Y: 9})
	if got.Label != domain.LabelUnknown {
		t.Errorf("Label = %v, want Unknown", got.Label)
	}
}

func TestTickWithoutFrame(t *testing.T) {
	var frames FrameSlot
	var positions PositionSlot
	var results ResultSlot
	sink := &collectingSink{}

	loop := NewSampleLoop(&frames, &positions, &results, &recordingLogger{})
	loop.sinks = []ResultSink{sink}

	if _, ok := loop.Tick(); ok {
		t.Error("Tick() reported a sample without a frame")
	}
	if results.Load() != nil {
		t.Error("result stored without a frame")
	}
	if sink.len() != 0 {
		t.Error("sink called without a frame")
	}
}

func TestTickClassifiesLatestFrame(t *testing.T) {
	var frames FrameSlot
	var positions PositionSlot
	var results ResultSlot
	sink := &collectingSink{}

	loop := NewSampleLoop(&frames, &positions, &results, &recordingLogger{})
	loop.sinks = []ResultSink{sink}
	loop.session = "s1"

	frames.Store(rgbFrame(4, 4, domain.RGB{B: 255}))
	positions.Store(domain.QueryPosition{X: 2, Y: 2})

	result, ok := loop.Tick()
	if !ok || result.Label != domain.LabelBlue {
		t.Fatalf("Tick() = %v, %v", result.Label, ok)
	}
	if result.Session != "s1" || result.Color != (domain.RGB{B: 255}) {
		t.Errorf("result = %+v", result)
	}
	if got := results.Load(); got == nil || got.Label != domain.LabelBlue {
		t.Errorf("stored result = %+v", got)
	}
	if sink.len() != 1 {
		t.Errorf("sink received %d results", sink.len())
	}

	positions.Store(domain.QueryPosition{X: 4, Y: 0})
	if result, _ := loop.Tick(); result.Label != domain.LabelOutOfBounds {
		t.Errorf("Tick() after moving out = %v", result.Label)
	}
}

func TestSampleLoopRefreshesStationaryPointer(t *testing.T) {
	var frames FrameSlot
	var positions PositionSlot
	var results ResultSlot

	loop := NewSampleLoop(&frames, &positions, &results, &recordingLogger{})
	loop.period = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	positions.Store(domain.QueryPosition{X: 1, Y: 1})
	frames.Store(rgbFrame(4, 4, domain.RGB{}))
	waitFor(t, time.Second, "black sample", func() bool {
		r := results.Load()
		return r != nil && r.Label == domain.LabelBlack
	})

	frames.Store(rgbFrame(4, 4, domain.RGB{R: 255, G: 255, B: 255}))
	waitFor(t, time.Second, "white sample", func() bool {
		r := results.Load()
		return r != nil && r.Label == domain.LabelWhite
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sample loop did not stop")
	}
	if loop.State() != LoopStopped {
		t.Errorf("State() = %v", loop.State())
	}
}
