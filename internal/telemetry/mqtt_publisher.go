package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTPublisherConfig configures the alternative MQTT transport for
// lifecycle events, adapted from the teacher's MQTTOutConfig.
type MQTTPublisherConfig struct {
	Broker         string
	Topic          string
	QoS            byte
	Retain         bool
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// MQTTPublisher is an EventSink that publishes lifecycle events to an
// MQTT broker, for deployments that already run one instead of the
// Bridge's own WebSocket tunnel. Adapted from the teacher's
// MQTTOutExecutor connect/publish pattern.
type MQTTPublisher struct {
	config    MQTTPublisherConfig
	client    mqtt.Client
	connected bool
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewMQTTPublisher creates (but does not yet connect) an MQTT publisher.
func NewMQTTPublisher(config MQTTPublisherConfig, logger *zap.Logger) *MQTTPublisher {
	if config.ClientID == "" {
		config.ClientID = fmt.Sprintf("nciadapter_%d", time.Now().UnixNano())
	}
	if config.QoS > 2 {
		config.QoS = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTPublisher{config: config, logger: logger}
}

// Connect dials the configured broker.
func (p *MQTTPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetAutoReconnect(true)

	keepAlive := p.config.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	connectTimeout := p.config.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 30 * time.Second
	}
	opts.SetConnectTimeout(connectTimeout)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.mu.Lock()
		p.connected = true
		p.mu.Unlock()
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
		p.logger.Warn("mqtt publisher connection lost", zap.Error(err))
	})

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqtt connect failed: %w", token.Error())
	}
	return nil
}

// Publish implements EventSink.
func (p *MQTTPublisher) Publish(event LifecycleEvent) {
	if !p.isConnected() {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal lifecycle event for mqtt", zap.Error(err))
		return
	}

	token := p.client.Publish(p.config.Topic, p.config.QoS, p.config.Retain, payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.logger.Warn("mqtt publish timed out", zap.String("type", string(event.Type)))
		return
	}
	if token.Error() != nil {
		p.logger.Warn("mqtt publish failed", zap.String("type", string(event.Type)), zap.Error(token.Error()))
	}
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.client != nil && p.client.IsConnected()
}

// Close disconnects the MQTT client.
func (p *MQTTPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.connected = false
	}
	return nil
}
