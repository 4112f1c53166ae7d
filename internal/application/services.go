package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"camera-color-judge/internal/domain"
)

// DefaultStopTimeout bounds how long Disconnect waits for the loops
const DefaultStopTimeout = 2 * time.Second

// Options configures the color judge service
type Options struct {
	Device           domain.DeviceConfig
	TargetWidth      int
	TargetHeight     int
	FrameInterval    time.Duration // Pause after every published frame
	SamplePeriod     time.Duration // Period of the sampling loop
	ReadRetryBackoff time.Duration // Pause after a failed read, 0 retries immediately
	StopTimeout      time.Duration // Bounded wait for the loops on disconnect
}

// DefaultOptions returns the standard timings and a 640x480 target
func DefaultOptions() Options {
	return Options{
		TargetWidth:   DefaultTargetWidth,
		TargetHeight:  DefaultTargetHeight,
		FrameInterval: DefaultFrameInterval,
		SamplePeriod:  DefaultSamplePeriod,
		StopTimeout:   DefaultStopTimeout,
	}
}

// ColorJudgeService owns the connection lifecycle: it opens the device,
// runs the capture and sample loops while connected and releases the
// device on disconnect
type ColorJudgeService struct {
	cameraManager CameraManager
	logger        Logger
	options       Options
	converter     *FrameConverter

	frames    FrameSlot
	positions PositionSlot
	results   ResultSlot
	bus       *UpdateBus
	sinks     []ResultSink
	observers []StateObserver

	state       atomic.Int32
	session     atomic.Value // string
	connectedAt atomic.Value // time.Time
	stats       pipelineStats

	activeHandle domain.CaptureHandle
	cancelFunc   context.CancelFunc
	loops        *sync.WaitGroup
	mutex        sync.Mutex
}

// NewColorJudgeService creates a disconnected service
func NewColorJudgeService(cameraManager CameraManager, options Options, logger Logger) *ColorJudgeService {
	if options.FrameInterval < 0 {
		options.FrameInterval = 0
	}
	if options.SamplePeriod <= 0 {
		options.SamplePeriod = DefaultSamplePeriod
	}
	if options.StopTimeout <= 0 {
		options.StopTimeout = DefaultStopTimeout
	}

	s := &ColorJudgeService{
		cameraManager: cameraManager,
		logger:        logger,
		options:       options,
		converter:     NewFrameConverter(options.TargetWidth, options.TargetHeight),
		bus:           NewUpdateBus(),
	}
	s.session.Store("")
	s.connectedAt.Store(time.Time{})
	return s
}

// AddResultSink registers a sink for periodic results. A sink added while
// connected receives results from the next session on.
func (s *ColorJudgeService) AddResultSink(sink ResultSink) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sinks = append(s.sinks, sink)
}

// AddStateObserver registers an observer for state transitions
func (s *ColorJudgeService) AddStateObserver(observer StateObserver) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.observers = append(s.observers, observer)
}

// ListDevices returns the available capture devices
func (s *ColorJudgeService) ListDevices() ([]domain.VideoDevice, error) {
	devices, err := s.cameraManager.ListDevices()
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		return nil, err
	}
	return devices, nil
}

// Connect opens the device and starts the capture and sample loops.
// It is a no-op when already connected. On failure the state stays
// Disconnected and the error matches domain.ErrDeviceUnavailable.
func (s *ColorJudgeService) Connect() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.activeHandle != nil {
		s.logger.Info("camera already connected", "session", s.Session())
		return nil
	}

	s.setState(domain.StateConnecting)
	s.logger.Info("opening camera",
		"driver", s.options.Device.Driver,
		"index", s.options.Device.Index,
		"device", s.options.Device.ID,
		"source", s.options.Device.Source,
	)

	handle, err := s.cameraManager.OpenCamera(s.options.Device)
	if err != nil {
		s.setState(domain.StateDisconnected)
		s.logger.Error("failed to open camera", "error", err)
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDeviceUnavailable, err)
	}

	session := uuid.New().String()
	s.session.Store(session)
	s.connectedAt.Store(time.Now())
	s.stats.reset()
	s.frames.Clear()
	s.results.Clear()

	ctx, cancel := context.WithCancel(context.Background())
	loops := &sync.WaitGroup{}

	capture := NewCaptureLoop(handle, s.converter, &s.frames, s.logger)
	capture.interval = s.options.FrameInterval
	capture.retryBackoff = s.options.ReadRetryBackoff
	capture.stats = &s.stats
	capture.onFrame = func(*domain.Frame) { s.notify() }

	sampler := NewSampleLoop(&s.frames, &s.positions, &s.results, s.logger)
	sampler.period = s.options.SamplePeriod
	sampler.session = session
	sampler.sinks = append([]ResultSink(nil), s.sinks...)
	sampler.stats = &s.stats
	sampler.onSample = func(domain.ClassificationResult) { s.notify() }

	s.activeHandle = handle
	s.cancelFunc = cancel
	s.loops = loops
	s.setState(domain.StateConnected)

	loops.Add(2)
	go func() {
		defer loops.Done()
		capture.Run(ctx)
	}()
	go func() {
		defer loops.Done()
		sampler.Run(ctx)
	}()

	s.logger.Info("camera connected", "device", handle.ID(), "session", session)
	return nil
}

// Disconnect stops both loops, waits for them up to the stop timeout and
// releases the device. It is a no-op when already disconnected.
func (s *ColorJudgeService) Disconnect() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.activeHandle == nil {
		return nil
	}

	s.setState(domain.StateDisconnecting)
	s.cancelFunc()

	if !waitTimeout(s.loops, s.options.StopTimeout) {
		s.logger.Warn("loops still running after stop timeout, releasing device",
			"timeout", s.options.StopTimeout.String(),
			"session", s.Session(),
		)
	}

	var closeErr error
	if err := s.activeHandle.Close(); err != nil {
		s.logger.Error("failed to release camera", "error", err)
		closeErr = fmt.Errorf("release camera: %w", err)
	}

	s.logger.Info("camera disconnected",
		"session", s.Session(),
		"frames", s.stats.frames.Load(),
		"read_failures", s.stats.readFailures.Load(),
	)

	s.activeHandle = nil
	s.cancelFunc = nil
	s.loops = nil
	s.setState(domain.StateDisconnected)

	return closeErr
}

// Toggle connects when disconnected and disconnects otherwise
func (s *ColorJudgeService) Toggle() error {
	if s.State() == domain.StateDisconnected {
		return s.Connect()
	}
	return s.Disconnect()
}

// ToggleLabel is the caption of the connect/disconnect control
func (s *ColorJudgeService) ToggleLabel() string {
	if s.State() == domain.StateDisconnected {
		return "Connect"
	}
	return "Disconnect"
}

// MovePointer records a new query position and classifies it right away
// when a frame is available. Safe to call from any goroutine.
func (s *ColorJudgeService) MovePointer(x, y int) {
	pos := domain.QueryPosition{X: x, Y: y}
	s.positions.Store(pos)

	if frame := s.frames.Load(); frame != nil {
		result := Sample(frame, pos)
		result.Session = s.Session()
		result.SampledAt = time.Now()
		s.results.Store(result)
	}
	s.notify()
}

// State returns the connection state without blocking
func (s *ColorJudgeService) State() domain.ConnectionState {
	return domain.ConnectionState(s.state.Load())
}

// Session returns the ID of the current or last session
func (s *ColorJudgeService) Session() string {
	return s.session.Load().(string)
}

// Position returns the latest query position
func (s *ColorJudgeService) Position() domain.QueryPosition {
	return s.positions.Load()
}

// Result returns the latest classification, nil if none yet
func (s *ColorJudgeService) Result() *domain.ClassificationResult {
	return s.results.Load()
}

// Frame returns the latest frame, nil if none yet
func (s *ColorJudgeService) Frame() *domain.Frame {
	return s.frames.Load()
}

// Snapshot returns the current frame and overlay for polling renderers
func (s *ColorJudgeService) Snapshot() domain.Update {
	return domain.Update{
		Frame: s.frames.Load(),
		Overlay: domain.Overlay{
			Position: s.positions.Load(),
			Result:   s.results.Load(),
			State:    s.State(),
		},
	}
}

// Subscribe registers a render surface; see UpdateBus
func (s *ColorJudgeService) Subscribe() (<-chan domain.Update, func()) {
	return s.bus.Subscribe()
}

// Stats returns the counters of the current or last session
func (s *ColorJudgeService) Stats() domain.CaptureStats {
	return domain.CaptureStats{
		Session:          s.Session(),
		State:            s.State().String(),
		ConnectedAt:      s.connectedAt.Load().(time.Time),
		FramesCaptured:   s.stats.frames.Load(),
		ReadFailures:     s.stats.readFailures.Load(),
		ConversionErrors: s.stats.conversionErrors.Load(),
		Samples:          s.stats.samples.Load(),
	}
}

func (s *ColorJudgeService) notify() {
	s.bus.Publish(s.Snapshot())
}

// setState must be called with s.mutex held
func (s *ColorJudgeService) setState(state domain.ConnectionState) {
	s.state.Store(int32(state))
	s.logger.Debug("connection state changed", "state", state.String())
	for _, observer := range s.observers {
		observer.StateChanged(state, s.Session())
	}
	s.notify()
}

// waitTimeout waits for wg and reports whether it finished in time
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
