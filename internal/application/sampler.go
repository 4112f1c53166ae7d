package application

import (
	"context"
	"sync/atomic"
	"time"

	"camera-color-judge/internal/domain"
)

// DefaultSamplePeriod is how often the sampler reclassifies the pointer pixel
const DefaultSamplePeriod = time.Second

// Sample classifies the pixel of frame at pos
func Sample(frame *domain.Frame, pos domain.QueryPosition) domain.ClassificationResult {
	result := domain.ClassificationResult{Position: pos}
	if !frame.Contains(pos) {
		result.Label = domain.LabelOutOfBounds
		return result
	}

	c, ok := frame.At(pos.X, pos.Y)
	if !ok {
		result.Label = domain.LabelUnknown
		return result
	}
	result.Color = c
	result.Label = domain.ClassifyRGB(c)
	return result
}

// SampleLoop periodically classifies the latest frame at the latest
// query position, independent of pointer motion
type SampleLoop struct {
	frames    *FrameSlot
	positions *PositionSlot
	results   *ResultSlot
	period    time.Duration
	session   string
	sinks     []ResultSink
	onSample  func(domain.ClassificationResult)
	logger    Logger
	stats     *pipelineStats
	state     atomic.Int32
}

// NewSampleLoop creates an idle sampler
func NewSampleLoop(frames *FrameSlot, positions *PositionSlot, results *ResultSlot, logger Logger) *SampleLoop {
	return &SampleLoop{
		frames:    frames,
		positions: positions,
		results:   results,
		period:    DefaultSamplePeriod,
		logger:    logger,
		stats:     &pipelineStats{},
	}
}

// State returns the loop state
func (l *SampleLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// Run samples once per period until ctx is cancelled
func (l *SampleLoop) Run(ctx context.Context) {
	l.state.Store(int32(LoopRunning))
	defer l.state.Store(int32(LoopStopped))

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick takes one sample. It reports false when no frame is available yet.
func (l *SampleLoop) Tick() (result domain.ClassificationResult, ok bool) {
	frame := l.frames.Load()
	if frame == nil {
		return domain.ClassificationResult{}, false
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("sample failed", "panic", r)
			result = domain.ClassificationResult{Label: domain.LabelUnknown, Position: result.Position, Session: l.session, SampledAt: time.Now()}
			l.results.Store(result)
			ok = true
		}
	}()

	result = Sample(frame, l.positions.Load())
	result.Session = l.session
	result.SampledAt = time.Now()
	l.results.Store(result)
	l.stats.samples.Add(1)

	l.logger.Debug("sampled",
		"x", result.Position.X,
		"y", result.Position.Y,
		"label", result.Label.String(),
		"frame", frame.Seq,
	)

	for _, sink := range l.sinks {
		sink.Publish(result)
	}
	if l.onSample != nil {
		l.onSample(result)
	}
	return result, true
}
