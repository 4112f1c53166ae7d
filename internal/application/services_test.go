package application

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"camera-color-judge/internal/domain"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.FrameInterval = time.Millisecond
	opts.SamplePeriod = 20 * time.Millisecond
	opts.StopTimeout = 500 * time.Millisecond
	return opts
}

type stateRecorder struct {
	mu     sync.Mutex
	states []domain.ConnectionState
}

func (r *stateRecorder) StateChanged(state domain.ConnectionState, session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) get() []domain.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ConnectionState(nil), r.states...)
}

func TestConnectFailureKeepsDisconnected(t *testing.T) {
	manager := &fakeManager{openErr: errors.New("no such device")}
	service := NewColorJudgeService(manager, testOptions(), &recordingLogger{})

	err := service.Connect()
	if !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("Connect() = %v, want ErrDeviceUnavailable", err)
	}
	if service.State() != domain.StateDisconnected {
		t.Errorf("State() = %v", service.State())
	}
	if service.ToggleLabel() != "Connect" {
		t.Errorf("ToggleLabel() = %q", service.ToggleLabel())
	}
}

func TestConnectTwiceOpensOneDevice(t *testing.T) {
	manager := &fakeManager{}
	log := &recordingLogger{}
	service := NewColorJudgeService(manager, testOptions(), log)
	defer service.Disconnect()

	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}
	session := service.Session()
	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}

	if n := len(manager.handles()); n != 1 {
		t.Fatalf("opened %d handles, want 1", n)
	}
	if service.Session() != session {
		t.Error("second Connect started a new session")
	}
	if log.count("INFO", "camera already connected") != 1 {
		t.Error("second Connect did not log a notice")
	}
	if service.State() != domain.StateConnected {
		t.Errorf("State() = %v", service.State())
	}
}

func TestDisconnectWhileDisconnectedIsNoop(t *testing.T) {
	manager := &fakeManager{}
	recorder := &stateRecorder{}
	service := NewColorJudgeService(manager, testOptions(), &recordingLogger{})
	service.AddStateObserver(recorder)

	if err := service.Disconnect(); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}
	if service.State() != domain.StateDisconnected {
		t.Errorf("State() = %v", service.State())
	}
	if len(recorder.get()) != 0 {
		t.Errorf("state transitions on no-op: %v", recorder.get())
	}
	if len(manager.handles()) != 0 {
		t.Error("Disconnect opened a device")
	}
}

func TestConnectDisconnectLifecycle(t *testing.T) {
	manager := &fakeManager{}
	recorder := &stateRecorder{}
	service := NewColorJudgeService(manager, testOptions(), &recordingLogger{})
	service.AddStateObserver(recorder)

	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}
	if service.ToggleLabel() != "Disconnect" {
		t.Errorf("ToggleLabel() = %q", service.ToggleLabel())
	}
	handle := manager.handles()[0]
	waitFor(t, time.Second, "device reads", func() bool { return handle.reads.Load() > 0 })

	if err := service.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if !handle.Closed() || handle.closes.Load() != 1 {
		t.Errorf("handle closed %d times", handle.closes.Load())
	}

	reads := handle.reads.Load()
	time.Sleep(20 * time.Millisecond)
	if handle.reads.Load() != reads {
		t.Error("capture loop still reading after Disconnect returned")
	}

	want := []domain.ConnectionState{
		domain.StateConnecting, domain.StateConnected,
		domain.StateDisconnecting, domain.StateDisconnected,
	}
	got := recorder.get()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReconnectUsesFreshHandle(t *testing.T) {
	manager := &fakeManager{}
	service := NewColorJudgeService(manager, testOptions(), &recordingLogger{})

	for i := 0; i < 3; i++ {
		if err := service.Toggle(); err != nil {
			t.Fatal(err)
		}
		if err := service.Toggle(); err != nil {
			t.Fatal(err)
		}
	}

	handles := manager.handles()
	if len(handles) != 3 {
		t.Fatalf("opened %d handles, want 3", len(handles))
	}
	for i, h := range handles {
		if h.closes.Load() != 1 {
			t.Errorf("handle %d closed %d times", i, h.closes.Load())
		}
	}
}

// blockingHandle never returns from Read until closed
type blockingHandle struct {
	closed  chan struct{}
	once    sync.Once
	reading atomic.Bool
}

func (h *blockingHandle) ID() string { return "blocking" }

func (h *blockingHandle) Read() (*domain.RawFrame, error) {
	h.reading.Store(true)
	<-h.closed
	return nil, errors.New("closed")
}

func (h *blockingHandle) Close() error {
	h.once.Do(func() { close(h.closed) })
	return nil
}

func TestDisconnectBoundedWait(t *testing.T) {
	handle := &blockingHandle{closed: make(chan struct{})}
	manager := &fakeManager{newFn: func(int) domain.CaptureHandle { return handle }}
	log := &recordingLogger{}

	opts := testOptions()
	opts.StopTimeout = 30 * time.Millisecond
	service := NewColorJudgeService(manager, opts, log)

	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "capture loop blocked in Read", handle.reading.Load)

	start := time.Now()
	if err := service.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Disconnect took %v", elapsed)
	}
	if log.count("WARN", "loops still running after stop timeout, releasing device") != 1 {
		t.Error("timeout warning not logged")
	}
	if service.State() != domain.StateDisconnected {
		t.Errorf("State() = %v", service.State())
	}
}

func TestMovePointerClassifiesImmediately(t *testing.T) {
	manager := &fakeManager{}
	service := NewColorJudgeService(manager, testOptions(), &recordingLogger{})
	defer service.Disconnect()

	service.MovePointer(10, 10)
	if service.Result() != nil {
		t.Fatal("result without any frame")
	}

	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}
	manager.handles()[0].SetFrame(bgrFrame(640, 480, 255, 0, 0))
	waitFor(t, time.Second, "first frame", func() bool { return service.Frame() != nil })

	service.MovePointer(700, 10)
	if r := service.Result(); r == nil || r.Label != domain.LabelOutOfBounds {
		t.Errorf("result outside the frame = %+v", r)
	}
	service.MovePointer(5, 5)
	if r := service.Result(); r == nil || r.Label != domain.LabelBlue || r.Session != service.Session() {
		t.Errorf("result = %+v", r)
	}
	if service.Position() != (domain.QueryPosition{X: 5, Y: 5}) {
		t.Errorf("Position() = %+v", service.Position())
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	manager := &fakeManager{}
	service := NewColorJudgeService(manager, testOptions(), &recordingLogger{})
	updates, cancel := service.Subscribe()
	defer cancel()

	service.MovePointer(3, 4)
	select {
	case u := <-updates:
		if u.Overlay.Position != (domain.QueryPosition{X: 3, Y: 4}) || u.Overlay.State != domain.StateDisconnected {
			t.Errorf("update = %+v", u.Overlay)
		}
	case <-time.After(time.Second):
		t.Fatal("no update after MovePointer")
	}
}

func TestEndToEndRedRegion(t *testing.T) {
	manager := &fakeManager{}
	sink := &collectingSink{}
	opts := testOptions()
	opts.SamplePeriod = 50 * time.Millisecond
	service := NewColorJudgeService(manager, opts, &recordingLogger{})
	service.AddResultSink(sink)
	defer service.Disconnect()

	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}

	service.MovePointer(150, 120)
	if service.Result() != nil {
		t.Fatal("pointer move before any frame produced a result")
	}

	raw := bgrFrame(640, 480, 40, 40, 40)
	paintBGR(raw, 100, 100, 300, 200, 0, 0, 255)
	manager.handles()[0].SetFrame(raw)
	waitFor(t, time.Second, "first frame", func() bool { return service.Frame() != nil })

	// The next periodic sample is at most one period away
	waitFor(t, opts.SamplePeriod+opts.SamplePeriod/2, "periodic red classification", func() bool {
		r := service.Result()
		return r != nil && r.Label == domain.LabelRed
	})
	if sink.len() == 0 {
		t.Error("result sink received nothing")
	}

	service.MovePointer(640, -1)
	if r := service.Result(); r == nil || r.Label != domain.LabelOutOfBounds {
		t.Errorf("result at (640,-1) = %+v", r)
	}

	stats := service.Stats()
	if stats.FramesCaptured == 0 || stats.Samples == 0 || stats.State != "Connected" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSinkAddedWhileConnectedJoinsNextSession(t *testing.T) {
	manager := &fakeManager{}
	early := &collectingSink{}
	late := &collectingSink{}
	service := NewColorJudgeService(manager, testOptions(), &recordingLogger{})
	service.AddResultSink(early)
	defer service.Disconnect()

	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}
	manager.handles()[0].SetFrame(bgrFrame(640, 480, 0, 0, 255))
	service.AddResultSink(late)

	waitFor(t, time.Second, "samples in the first session", func() bool { return early.len() >= 2 })
	if late.len() != 0 {
		t.Errorf("sink added mid-session received %d results", late.len())
	}

	if err := service.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := service.Connect(); err != nil {
		t.Fatal(err)
	}
	manager.handles()[1].SetFrame(bgrFrame(640, 480, 0, 0, 255))
	waitFor(t, time.Second, "late sink in the next session", func() bool { return late.len() > 0 })
}
