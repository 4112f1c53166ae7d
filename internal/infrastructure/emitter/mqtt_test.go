package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"camera-color-judge/internal/config"
	"camera-color-judge/internal/domain"
	"camera-color-judge/internal/infrastructure/logger"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: p.err}
}

func (p *fakePublisher) received() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message(nil), p.messages...)
}

func newTestEmitter(t *testing.T, pub *fakePublisher) *MQTTEmitter {
	t.Helper()
	e := NewMQTTEmitter(config.MQTTConfig{TopicPrefix: "colorjudge/bench", QoS: 1}, logger.Nop())
	e.pub = pub
	e.start()
	t.Cleanup(func() { e.Close() })
	return e
}

func waitMessages(t *testing.T, pub *fakePublisher, n int) []message {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got := pub.received(); len(got) >= n {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d messages, got %d", n, len(pub.received()))
	return nil
}

func TestEmitterPublishesResults(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEmitter(t, pub)

	e.Publish(domain.ClassificationResult{
		Label:    domain.LabelRed,
		Color:    domain.RGB{R: 200, G: 10, B: 10},
		Position: domain.QueryPosition{X: 4, Y: 5},
		Session:  "s-1",
	})

	msg := waitMessages(t, pub, 1)[0]
	if msg.topic != "colorjudge/bench/result" || msg.retained {
		t.Errorf("topic = %q retained = %v", msg.topic, msg.retained)
	}

	var decoded struct {
		Label    string `json:"label"`
		Color    domain.RGB
		Position domain.QueryPosition
	}
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Label != "Red" || decoded.Color.R != 200 || decoded.Position.Y != 5 {
		t.Errorf("payload = %s", msg.payload)
	}

	if got := e.Stats().Published["colorjudge/bench/result"]; got != 1 {
		t.Errorf("Published = %d", got)
	}
}

func TestEmitterRetainsState(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEmitter(t, pub)

	e.StateChanged(domain.StateConnected, "s-2")

	msg := waitMessages(t, pub, 1)[0]
	if msg.topic != "colorjudge/bench/state" || !msg.retained {
		t.Errorf("topic = %q retained = %v", msg.topic, msg.retained)
	}
	var state StateMessage
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.State != "Connected" || state.Session != "s-2" {
		t.Errorf("state = %+v", state)
	}
}

func TestEmitterCountsFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	e := newTestEmitter(t, pub)

	e.Publish(domain.ClassificationResult{Label: domain.LabelBlue})
	waitMessages(t, pub, 1)

	deadline := time.Now().Add(time.Second)
	for e.Stats().Errors == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if e.Stats().Errors != 1 {
		t.Errorf("Errors = %d", e.Stats().Errors)
	}
}

func TestOfferLatestKeepsNewest(t *testing.T) {
	ch := make(chan int, 1)

	if offerLatest(ch, 1) {
		t.Error("first offer reported a replacement")
	}
	if !offerLatest(ch, 2) {
		t.Error("second offer did not report a replacement")
	}
	if got := <-ch; got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestPublishNeverBlocksWithoutLoop(t *testing.T) {
	e := NewMQTTEmitter(config.MQTTConfig{TopicPrefix: "x"}, logger.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			e.Publish(domain.ClassificationResult{Label: domain.LabelGreen})
			e.StateChanged(domain.StateConnecting, "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	if e.Stats().Replaced != 99 {
		t.Errorf("Replaced = %d, want 99", e.Stats().Replaced)
	}
}
