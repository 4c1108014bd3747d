package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Config configures the broker connection.
type Config struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int
}

// client is the part of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
}

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client client
	topics Topics
	mu     sync.Mutex
	box    *outbox
	log    logrus.FieldLogger
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is retried in the background; it never blocks startup.
func NewRealPublisher(cfg Config, log logrus.FieldLogger) *RealPublisher {
	p := newPublisher(cfg, log)

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "LWT",
	})

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "sq-peripheral"
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.WithError(err).Warn("connection lost, buffering")
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	p.log.WithField("broker", cfg.Broker).Info("connecting")
	return p
}

func newPublisher(cfg Config, log logrus.FieldLogger) *RealPublisher {
	l := log.WithField("module", "mqtt")
	return &RealPublisher{
		topics: TopicsFor(cfg.Prefix),
		box:    newOutbox(cfg.BufferSize, l),
		log:    l,
	}
}

// PublishCharacteristic sends a characteristic change to the broker.
// QoS 0 (at-most-once), not retained. Does not wait for the broker.
func (p *RealPublisher) PublishCharacteristic(event CharacteristicEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	_, err = p.publish(bufferedMsg{topic: p.topics.Characteristics, payload: payload})
	return err
}

// PublishSystem sends a system lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	token, err := p.publish(bufferedMsg{
		topic:    p.topics.System,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
	if err != nil || token == nil {
		return err
	}
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// publish sends msg, or buffers it and returns a nil token while offline.
func (p *RealPublisher) publish(msg bufferedMsg) (paho.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil || !p.client.IsConnectionOpen() {
		p.box.push(msg)
		return nil, nil
	}
	return p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload), nil
}

// onConnect replays everything buffered while offline, oldest first.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending := p.box.drain()
	for _, msg := range pending {
		p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
	p.log.WithFields(logrus.Fields{"replayed": len(pending), "dropped": p.box.dropped}).Info("connected")
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box.len()
}

// Dropped returns the number of messages evicted from a full outbox.
func (p *RealPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.box.dropped
}

// IsConnected reports whether the broker connection is open.
func (p *RealPublisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}
