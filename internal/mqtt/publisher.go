package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"beacon-bridge.klederson.com/internal/config"
)

var errStopped = errors.New("mqtt publisher stopped")

// Publisher forwards bridge events to an MQTT broker. Each event is
// published as JSON on <prefix>/events/<name>.
type Publisher struct {
	client paho.Client
	opts   config.MQTTOptions
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher builds a publisher for the configured broker. It does not
// connect until Connect is called.
func NewPublisher(opts config.MQTTOptions, logger *slog.Logger) *Publisher {
	p := &Publisher{
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	co := paho.NewClientOptions()
	co.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Broker, opts.Port))
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)

	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)

	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	co.SetOnConnectHandler(func(_ paho.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", opts.Broker, "port", opts.Port)
	})
	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(co)
	return p
}

// Connect waits for the initial broker connection. It returns early when
// ctx is done or the publisher was closed.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errStopped
	default:
	}
	if p.Active() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errStopped
		default:
		}
	}
}

// Active reports whether the broker connection is up.
func (p *Publisher) Active() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Emit publishes one event. Delivery is fire and forget: the token is
// not awaited so the scan cycle never blocks on the network.
func (p *Publisher) Emit(name string, payload any) {
	if !p.Active() {
		return
	}
	data, err := encode(payload)
	if err != nil {
		p.logger.Error("mqtt: encode event", "event", name, "error", err)
		return
	}

	topic := Topic(p.opts.TopicPrefix, name)
	token := p.client.Publish(topic, config.MQTTQoS, false, data)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt: publish failed", "topic", topic, "error", err)
		}
	}()
	p.logger.Debug("mqtt: published event", "topic", topic)
}

// Close disconnects from the broker. Safe to call more than once.
func (p *Publisher) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.client.Disconnect(250)
	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// Topic returns the topic an event is published on.
func Topic(prefix, event string) string {
	if prefix == "" {
		return "events/" + event
	}
	return prefix + "/events/" + event
}

// encode renders a payload as JSON; a nil payload becomes an empty
// message.
func encode(payload any) ([]byte, error) {
	if payload == nil {
		return []byte{}, nil
	}
	return json.Marshal(payload)
}
