package application

import (
	"context"
	"sync/atomic"
	"time"

	"camera-color-judge/internal/domain"
)

// DefaultFrameInterval is the pause after every published frame (~33 fps)
const DefaultFrameInterval = 30 * time.Millisecond

// LoopState is the lifecycle of a capture or sample loop
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopStopped
)

// pipelineStats are the per-session counters shared by both loops
type pipelineStats struct {
	frames           atomic.Uint64
	readFailures     atomic.Uint64
	conversionErrors atomic.Uint64
	samples          atomic.Uint64
}

func (p *pipelineStats) reset() {
	p.frames.Store(0)
	p.readFailures.Store(0)
	p.conversionErrors.Store(0)
	p.samples.Store(0)
}

// CaptureLoop pulls frames from a device handle, converts them and
// publishes the latest one
type CaptureLoop struct {
	handle       domain.CaptureHandle
	converter    *FrameConverter
	frames       *FrameSlot
	interval     time.Duration
	retryBackoff time.Duration
	onFrame      func(*domain.Frame)
	logger       Logger
	stats        *pipelineStats
	state        atomic.Int32
}

// NewCaptureLoop creates an idle capture loop
func NewCaptureLoop(handle domain.CaptureHandle, converter *FrameConverter, frames *FrameSlot, logger Logger) *CaptureLoop {
	return &CaptureLoop{
		handle:    handle,
		converter: converter,
		frames:    frames,
		interval:  DefaultFrameInterval,
		logger:    logger,
		stats:     &pipelineStats{},
	}
}

// State returns the loop state
func (l *CaptureLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// Run reads until ctx is cancelled. A read in flight is not interrupted;
// if it returns after cancellation the loop exits without logging and
// without publishing.
func (l *CaptureLoop) Run(ctx context.Context) {
	l.state.Store(int32(LoopRunning))
	defer l.state.Store(int32(LoopStopped))

	l.logger.Debug("capture loop started", "device", l.handle.ID())
	defer l.logger.Debug("capture loop stopped", "device", l.handle.ID())

	var seq uint64
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := l.handle.Read()
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			l.stats.readFailures.Add(1)
			l.logger.Warn("frame read failed", "device", l.handle.ID(), "error", err)
			if !sleepContext(ctx, l.retryBackoff) {
				return
			}
			continue
		}
		if raw.Empty() {
			l.stats.readFailures.Add(1)
			l.logger.Warn("empty frame received", "device", l.handle.ID())
			if !sleepContext(ctx, l.retryBackoff) {
				return
			}
			continue
		}

		frame, err := l.converter.Convert(raw)
		if err != nil {
			l.stats.conversionErrors.Add(1)
			l.logger.Warn("frame dropped", "device", l.handle.ID(), "error", err)
			if !sleepContext(ctx, l.retryBackoff) {
				return
			}
			continue
		}

		seq++
		frame.Seq = seq
		frame.CapturedAt = time.Now()
		l.frames.Store(frame)
		l.stats.frames.Add(1)
		if l.onFrame != nil {
			l.onFrame(frame)
		}

		if !sleepContext(ctx, l.interval) {
			return
		}
	}
}

// sleepContext waits for d or until ctx is done. It reports false when
// ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
