// Package mqtt bridges an MQTT broker and a Director: named messages and
// cutscene requests arrive on topics, and bus messages are published back.
package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultQoS     byte = 1
	defaultTimeout      = 10 * time.Second
)

// Config contains broker connection settings.
type Config struct {
	Broker   string
	ClientID string

	// Timeout bounds connect, subscribe and publish round trips.
	// Default: 10s.
	Timeout time.Duration
}

// Client wraps the Paho MQTT client.
type Client struct {
	client  paho.Client
	broker  string
	timeout time.Duration
	mu      sync.Mutex
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return &Client{
		client:  paho.NewClient(opts),
		broker:  cfg.Broker,
		timeout: cfg.Timeout,
	}
}

// Connect attempts to connect to the broker without blocking past the
// configured timeout.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(c.timeout) {
		return &ConnectTimeoutError{Broker: c.broker}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.broker, err)
	}
	return nil
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, defaultQoS, handler)
	if !token.WaitTimeout(c.timeout) {
		return &TimeoutError{Op: "subscribe", Topic: topic}
	}
	return token.Error()
}

// Publish sends payload to topic.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, defaultQoS, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct {
	Broker string
}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout: " + e.Broker
}

// TimeoutError indicates a subscribe or publish timed out.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Topic
}
