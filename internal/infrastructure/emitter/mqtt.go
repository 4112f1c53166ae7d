package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/config"
	"camera-color-judge/internal/domain"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// publisher is the part of mqtt.Client the emitter publishes through
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// StateMessage is the retained payload on the state topic
type StateMessage struct {
	State   string    `json:"state"`
	Session string    `json:"session,omitempty"`
	At      time.Time `json:"at"`
}

// MQTTEmitter publishes classification results and connection state to
// an MQTT broker. Publish and StateChanged never block: each keeps only
// the newest pending message and a background goroutine sends it.
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	logger application.Logger
	client mqtt.Client
	pub    publisher

	results chan domain.ClassificationResult
	states  chan StateMessage
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	replaced  uint64
	connected bool
}

// NewMQTTEmitter creates an emitter; call Connect before use
func NewMQTTEmitter(cfg config.MQTTConfig, logger application.Logger) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		logger:    logger,
		results:   make(chan domain.ClassificationResult, 1),
		states:    make(chan StateMessage, 1),
		done:      make(chan struct{}),
		published: make(map[string]uint64),
	}
}

// ResultTopic is where classification results are published
func (e *MQTTEmitter) ResultTopic() string {
	return e.cfg.TopicPrefix + "/result"
}

// StateTopic is where the retained connection state is published
func (e *MQTTEmitter) StateTopic() string {
	return e.cfg.TopicPrefix + "/state"
}

// Connect starts publishing and establishes the broker connection. Call
// it once.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	will, err := json.Marshal(StateMessage{State: "Offline", At: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal will: %w", err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetWill(e.StateTopic(), string(will), e.cfg.QoS, true)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect", "broker", e.cfg.Broker, "error", err)
	}

	e.client = mqtt.NewClient(opts)
	e.pub = e.client

	// The client keeps retrying after a connect timeout and queues publishes
	e.start()

	e.logger.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	timeout := connectTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	token := e.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

func (e *MQTTEmitter) start() {
	e.wg.Add(1)
	go e.run()
}

// Publish queues result, replacing a result that is still pending
func (e *MQTTEmitter) Publish(result domain.ClassificationResult) {
	if offerLatest(e.results, result) {
		e.mu.Lock()
		e.replaced++
		e.mu.Unlock()
	}
}

// StateChanged queues the new connection state
func (e *MQTTEmitter) StateChanged(state domain.ConnectionState, session string) {
	offerLatest(e.states, StateMessage{State: state.String(), Session: session, At: time.Now()})
}

func (e *MQTTEmitter) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case result := <-e.results:
			e.send(e.ResultTopic(), false, result)
		case state := <-e.states:
			e.send(e.StateTopic(), true, state)
		}
	}
}

func (e *MQTTEmitter) send(topic string, retained bool, message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		e.countError()
		e.logger.Error("failed to marshal mqtt message", "topic", topic, "error", err)
		return
	}

	token := e.pub.Publish(topic, e.cfg.QoS, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		e.countError()
		e.logger.Warn("mqtt publish timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		e.countError()
		e.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		return
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	e.logger.Debug("mqtt message published", "topic", topic, "size", len(payload))
}

// Close stops publishing and disconnects from the broker
func (e *MQTTEmitter) Close() error {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()

	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.logger.Info("mqtt disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
	Replaced  uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
		Replaced:  e.replaced,
	}
}

func (e *MQTTEmitter) setConnected(connected bool) {
	e.mu.Lock()
	e.connected = connected
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// offerLatest puts v into the single-slot channel ch, discarding a pending
// value if there is one. It reports whether a value was discarded.
func offerLatest[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return false
	default:
	}

	replaced := false
	select {
	case <-ch:
		replaced = true
	default:
	}

	select {
	case ch <- v:
	default:
	}
	return replaced
}
