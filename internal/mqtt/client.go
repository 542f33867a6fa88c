package mqtt

import (
	"log"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/StrokeForge/internal/events"
)

const tokenTimeout = 10 * time.Second

// Broker is the part of an MQTT connection the script subscriber uses.
type Broker interface {
	Subscribe(topic string, handler paho.MessageHandler) error
	Publish(topic string, payload []byte, retained bool) error
}

// Client wraps the Paho MQTT client for StrokeForge.
type Client struct {
	client paho.Client
	mu     sync.Mutex

	hookMu    sync.Mutex
	onConnect func()
}

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect.
// Handlers run on their own goroutines so they may publish.
func NewClient(clientID string) *Client {
	c := &Client{}

	opts := paho.NewClientOptions().
		AddBroker(BrokerURL()).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(func(paho.Client) { c.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { c.handleConnectionLost(err) })

	if user := os.Getenv("MQTT_USERNAME"); user != "" {
		opts.SetUsername(user)
		opts.SetPassword(os.Getenv("MQTT_PASSWORD"))
	}

	c.client = paho.NewClient(opts)
	return c
}

// OnConnect sets a function run after every successful (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = fn
	c.hookMu.Unlock()
}

func (c *Client) handleConnect() {
	events.Emit("info", "transport.connected", "", map[string]interface{}{
		"broker": BrokerURL(),
	})

	c.hookMu.Lock()
	fn := c.onConnect
	c.hookMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) handleConnectionLost(err error) {
	fields := map[string]interface{}{"broker": BrokerURL()}
	if err != nil {
		fields["error"] = err.Error()
	}
	events.Emit("warn", "transport.disconnected", "", fields)
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(tokenTimeout) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(tokenTimeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload to topic with QoS 1.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(tokenTimeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}

// Start connects and runs subscribe after every (re)connect, logging errors
// but not crashing. Returns true if the first connect succeeded.
func (c *Client) Start(subscribe func() error) bool {
	c.OnConnect(func() {
		if err := subscribe(); err != nil {
			log.Printf("mqtt: failed to subscribe: %v", err)
		}
	})

	if err := c.Connect(); err != nil {
		log.Printf("mqtt: failed to connect to %s: %v", BrokerURL(), err)
		return false
	}

	log.Printf("mqtt: connected to %s", BrokerURL())
	return true
}
