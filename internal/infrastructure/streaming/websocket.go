package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"camera-color-judge/internal/application"
	"camera-color-judge/internal/domain"
)

// Controller is the part of the color judge service the web surface drives
type Controller interface {
	Subscribe() (<-chan domain.Update, func())
	Snapshot() domain.Update
	MovePointer(x, y int)
	Connect() error
	Disconnect() error
	Toggle() error
	ToggleLabel() string
	Stats() domain.CaptureStats
}

// SnapshotSaver stores the current frame
type SnapshotSaver interface {
	Save(update domain.Update) (string, error)
}

// Options configures the web surface
type Options struct {
	Listen      string
	StreamFPS   int // Upper bound for JPEG frames per client
	JPEGQuality int
}

// Command is a message sent by the browser
type Command struct {
	Type string `json:"type"` // move, toggle, connect, disconnect, snapshot
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// OverlayMessage is the text message describing the overlay of a frame
type OverlayMessage struct {
	Type      string     `json:"type"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
	Label     string     `json:"label"`
	Color     domain.RGB `json:"color"`
	TextColor domain.RGB `json:"text_color"`
	HasResult bool       `json:"has_result"`
	State     string     `json:"state"`
	Button    string     `json:"button"`
	Frame     uint64     `json:"frame"`
}

// ReplyMessage answers a command that produces a result or fails
type ReplyMessage struct {
	Type  string `json:"type"` // snapshot, error
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// WebServer serves the live image over WebSocket: binary messages carry
// JPEG frames, text messages carry the overlay. Browsers send pointer
// moves and control commands back on the same socket.
type WebServer struct {
	controller Controller
	snapshots  SnapshotSaver
	logger     application.Logger
	options    Options
	upgrader   websocket.Upgrader

	server    *http.Server
	isRunning bool
	clients   map[*websocket.Conn]bool
	mutex     sync.Mutex
}

// NewWebServer creates a web surface; snapshots may be nil
func NewWebServer(controller Controller, snapshots SnapshotSaver, logger application.Logger, options Options) *WebServer {
	if options.StreamFPS <= 0 {
		options.StreamFPS = 15
	}
	if options.JPEGQuality <= 0 || options.JPEGQuality > 100 {
		options.JPEGQuality = jpeg.DefaultQuality
	}
	return &WebServer{
		controller: controller,
		snapshots:  snapshots,
		logger:     logger,
		options:    options,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the HTTP routes of the surface
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Start listens on the configured address in the background
func (s *WebServer) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	s.server = &http.Server{
		Addr:    s.options.Listen,
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Info("web surface listening", "addr", s.options.Listen)
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.isRunning = true
	return nil
}

// Stop shuts the server down and closes all client sockets
func (s *WebServer) Stop() error {
	s.mutex.Lock()
	if !s.isRunning {
		s.mutex.Unlock()
		return nil
	}
	s.isRunning = false
	server := s.server
	for conn := range s.clients {
		conn.Close()
	}
	s.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("web surface stopped")
	return nil
}

// Clients returns the number of connected browsers
func (s *WebServer) Clients() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.clients)
}

func (s *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.controller.Stats()); err != nil {
		s.logger.Warn("failed to write stats", "error", err)
	}
}

func (s *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.mutex.Lock()
	s.clients[conn] = true
	s.mutex.Unlock()

	clientAddr := conn.RemoteAddr().String()
	s.logger.Info("client connected", "remote", clientAddr)

	c := &client{conn: conn, server: s}
	updates, cancel := s.controller.Subscribe()

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		c.writeLoop(updates)
	}()

	c.readLoop()

	cancel()
	writer.Wait()
	conn.Close()

	s.mutex.Lock()
	delete(s.clients, conn)
	s.mutex.Unlock()

	s.logger.Info("client disconnected", "remote", clientAddr)
}

// client is one browser connection. gorilla connections allow a single
// concurrent writer, so every write goes through writeMu.
type client struct {
	conn    *websocket.Conn
	server  *WebServer
	writeMu sync.Mutex

	lastFrame   uint64
	lastSent    time.Time
	lastOverlay OverlayMessage
}

func (c *client) readLoop() {
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.server.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(ReplyMessage{Type: "error", Error: "malformed command"})
			continue
		}
		c.handle(cmd)
	}
}

func (c *client) handle(cmd Command) {
	ctrl := c.server.controller
	var err error

	switch cmd.Type {
	case "move":
		ctrl.MovePointer(cmd.X, cmd.Y)
	case "toggle":
		err = ctrl.Toggle()
	case "connect":
		err = ctrl.Connect()
	case "disconnect":
		err = ctrl.Disconnect()
	case "snapshot":
		if c.server.snapshots == nil {
			err = fmt.Errorf("snapshots are disabled")
			break
		}
		var path string
		if path, err = c.server.snapshots.Save(ctrl.Snapshot()); err == nil {
			c.reply(ReplyMessage{Type: "snapshot", Path: path})
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}

	if err != nil {
		c.server.logger.Warn("command failed", "command", cmd.Type, "error", err)
		c.reply(ReplyMessage{Type: "error", Error: err.Error()})
	}
}

func (c *client) writeLoop(updates <-chan domain.Update) {
	if err := c.send(c.server.controller.Snapshot(), true); err != nil {
		return
	}
	for update := range updates {
		if err := c.send(update, false); err != nil {
			c.server.logger.Debug("websocket write failed", "error", err)
			c.conn.Close()
			for range updates {
			}
			return
		}
	}
}

// send writes the overlay when it changed and the frame when it is new and
// the per-client frame budget allows it
func (c *client) send(update domain.Update, force bool) error {
	overlay := NewOverlayMessage(update, c.server.controller.ToggleLabel())
	if force || overlay != c.lastOverlay {
		if err := c.writeJSON(overlay); err != nil {
			return err
		}
		c.lastOverlay = overlay
	}

	frame := update.Frame
	if frame == nil || (!force && frame.Seq == c.lastFrame) {
		return nil
	}
	minGap := time.Second / time.Duration(c.server.options.StreamFPS)
	if !force && time.Since(c.lastSent) < minGap {
		return nil
	}

	data, err := EncodeJPEG(frame, c.server.options.JPEGQuality)
	if err != nil {
		c.server.logger.Warn("jpeg encoding failed", "frame", frame.Seq, "error", err)
		return nil
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.BinaryMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}
	c.lastFrame = frame.Seq
	c.lastSent = time.Now()
	return nil
}

func (c *client) reply(msg ReplyMessage) {
	if err := c.writeJSON(msg); err != nil {
		c.server.logger.Debug("websocket reply failed", "error", err)
	}
}

func (c *client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewOverlayMessage describes the overlay of update for the browser
func NewOverlayMessage(update domain.Update, button string) OverlayMessage {
	o := update.Overlay
	msg := OverlayMessage{
		Type:      "overlay",
		X:         o.Position.X,
		Y:         o.Position.Y,
		Label:     domain.LabelUnknown.String(),
		TextColor: o.TextColor(),
		State:     o.State.String(),
		Button:    button,
	}
	if o.Result != nil {
		msg.HasResult = true
		msg.Label = o.Result.Label.String()
		msg.Color = o.Result.Color
	}
	if update.Frame != nil {
		msg.Frame = update.Frame.Seq
	}
	return msg
}

// EncodeJPEG compresses frame for the browser
func EncodeJPEG(frame *domain.Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.RGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
