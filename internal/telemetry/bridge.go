package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// CommandHandler processes commands pushed down from the cloud endpoint
// (e.g. a remote reactivate/deactivate request), adapted from the
// teacher's saas.CommandHandler.
type CommandHandler interface {
	HandleCommand(cmd *TunnelMessage) (*TunnelMessage, error)
}

// Bridge is a reconnecting WebSocket client that streams adapter
// lifecycle events to a cloud endpoint. Adapted near-verbatim in
// structure from the teacher's saas.TunnelAgent: same connect/readLoop/
// heartbeatLoop/reconnect shape, repointed at LifecycleEvent instead of
// flow/SaaS command RPC.
type Bridge struct {
	config *Config
	conn   *websocket.Conn
	logger *zap.Logger

	connected      bool
	mu             sync.RWMutex
	stopCh         chan struct{}
	reconnectTimer *time.Timer
	reconnectCount int

	commandHandler CommandHandler

	onConnected    func()
	onDisconnected func()
}

// NewBridge creates a new cloud bridge.
func NewBridge(config *Config, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// SetCommandHandler sets the handler for incoming cloud commands.
func (b *Bridge) SetCommandHandler(handler CommandHandler) {
	b.commandHandler = handler
}

// SetCallbacks sets connection lifecycle callbacks.
func (b *Bridge) SetCallbacks(onConnected, onDisconnected func()) {
	b.onConnected = onConnected
	b.onDisconnected = onDisconnected
}

// Start connects to the cloud endpoint. A no-op if the bridge is
// disabled in config.
func (b *Bridge) Start() error {
	if !b.config.Enabled {
		b.logger.Info("telemetry bridge disabled")
		return nil
	}
	if err := b.config.Validate(); err != nil {
		return err
	}

	b.logger.Info("starting telemetry bridge",
		zap.String("server", b.config.ServerURL),
		zap.String("device_id", b.config.DeviceID))

	return b.connect()
}

// Stop gracefully closes the bridge connection.
func (b *Bridge) Stop() error {
	b.logger.Info("stopping telemetry bridge")
	close(b.stopCh)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reconnectTimer != nil {
		b.reconnectTimer.Stop()
	}
	if b.conn != nil {
		_ = b.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		b.conn.Close()
		b.conn = nil
	}
	b.connected = false
	return nil
}

// IsConnected reports the current connection status.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Publish implements EventSink: sends a lifecycle event over the
// tunnel, fire-and-forget (dropped silently if not connected — the
// adapter's loop must never block on telemetry).
func (b *Bridge) Publish(event LifecycleEvent) {
	if !b.IsConnected() {
		return
	}
	msg := &TunnelMessage{
		Type:     "event",
		DeviceID: b.config.DeviceID,
		Action:   string(event.Type),
		Payload:  event.Detail,
	}
	if err := b.sendMessage(msg); err != nil {
		b.logger.Warn("failed to publish lifecycle event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func (b *Bridge) connect() error {
	url := b.config.TunnelURL()
	b.logger.Info("connecting to telemetry endpoint", zap.String("url", url))

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return ErrConnectionFailed(err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	connectMsg := &TunnelMessage{
		Type:     "connect",
		DeviceID: b.config.DeviceID,
		APIKey:   b.config.APIKey,
	}
	if err := b.sendMessage(connectMsg); err != nil {
		conn.Close()
		return ErrAuthenticationFailed("failed to send connect message")
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msgBytes, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return ErrAuthenticationFailed("no response from server")
	}
	conn.SetReadDeadline(time.Time{})

	var response TunnelMessage
	if err := json.Unmarshal(msgBytes, &response); err != nil {
		conn.Close()
		return ErrAuthenticationFailed("invalid server response")
	}
	if response.Type != "connected" {
		conn.Close()
		return ErrAuthenticationFailed("authentication rejected: " + response.Error)
	}

	b.mu.Lock()
	b.connected = true
	b.reconnectCount = 0
	b.mu.Unlock()

	b.logger.Info("telemetry bridge connected", zap.String("device_id", b.config.DeviceID))
	if b.onConnected != nil {
		b.onConnected()
	}

	go b.readLoop()
	go b.heartbeatLoop()
	return nil
}

func (b *Bridge) readLoop() {
	defer b.handleDisconnect()

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		_, msgBytes, err := b.conn.ReadMessage()
		if err != nil {
			b.logger.Warn("telemetry bridge read error", zap.Error(err))
			return
		}

		var msg TunnelMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			b.logger.Warn("failed to parse tunnel message", zap.Error(err))
			continue
		}
		b.handleMessage(&msg)
	}
}

func (b *Bridge) handleMessage(msg *TunnelMessage) {
	switch msg.Type {
	case "pong":
	case "command":
		go b.handleCommand(msg)
	default:
		b.logger.Debug("unhandled tunnel message type", zap.String("type", msg.Type))
	}
}

func (b *Bridge) handleCommand(msg *TunnelMessage) {
	if b.commandHandler == nil {
		b.logger.Warn("no command handler registered, ignoring command", zap.String("action", msg.Action))
		return
	}

	response, err := b.commandHandler.HandleCommand(msg)
	if err != nil {
		response = &TunnelMessage{Type: "response", ID: msg.ID, Status: "error", Error: err.Error()}
	} else if response == nil {
		response = &TunnelMessage{Type: "response", ID: msg.ID, Status: "success"}
	} else {
		response.Type = "response"
		response.ID = msg.ID
		if response.Status == "" {
			response.Status = "success"
		}
	}

	if err := b.sendMessage(response); err != nil {
		b.logger.Warn("failed to send command response", zap.String("id", msg.ID), zap.Error(err))
	}
}

func (b *Bridge) heartbeatLoop() {
	ticker := time.NewTicker(b.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if !b.IsConnected() {
				return
			}
			if err := b.sendMessage(&TunnelMessage{Type: "ping"}); err != nil {
				b.logger.Warn("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func (b *Bridge) handleDisconnect() {
	b.mu.Lock()
	wasConnected := b.connected
	b.connected = false
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.mu.Unlock()

	if wasConnected {
		b.logger.Warn("telemetry bridge disconnected")
		if b.onDisconnected != nil {
			b.onDisconnected()
		}
	}

	select {
	case <-b.stopCh:
		return
	default:
	}
	b.reconnect()
}

func (b *Bridge) reconnect() {
	b.mu.Lock()
	b.reconnectCount++
	count := b.reconnectCount
	b.mu.Unlock()

	if count > b.config.MaxReconnectAttempts {
		b.logger.Error("max reconnect attempts reached, giving up", zap.Int("attempts", count))
		return
	}

	delay := time.Duration(count) * 5 * time.Second
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}

	b.logger.Info("attempting telemetry bridge reconnect", zap.Int("attempt", count), zap.Duration("delay", delay))

	b.mu.Lock()
	b.reconnectTimer = time.AfterFunc(delay, func() {
		if err := b.connect(); err != nil {
			b.logger.Warn("telemetry bridge reconnect failed", zap.Error(err))
			b.handleDisconnect()
		}
	})
	b.mu.Unlock()
}

func (b *Bridge) sendMessage(msg *TunnelMessage) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
