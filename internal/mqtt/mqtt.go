package mqttc

import (
	"os"
	"time"

	"example.com/colony-brain/internal/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultBroker is used when neither the caller nor MQTT_BROKER names one.
const DefaultBroker = "tcp://127.0.0.1:1883"

type Client struct {
	Client mqtt.Client
	log    logging.Logger
}

// NewClientWithHandler lets callers provide an OnConnect handler, which is
// also where subscriptions belong so they survive reconnects.
func NewClientWithHandler(clientID, broker string, onConnect mqtt.OnConnectHandler, log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	if broker == "" {
		broker = os.Getenv("MQTT_BROKER")
		if broker == "" {
			broker = DefaultBroker
		}
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt connection lost", "err", err)
		})

	if onConnect != nil {
		opts.SetOnConnectHandler(onConnect)
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		log.Error("mqtt connect", "broker", broker, "err", token.Error())
	}
	return &Client{Client: c, log: log}
}

func (c *Client) Publish(topic string, payload []byte) {
	c.publish(topic, payload, false)
}

// PublishRetained publishes a message the broker keeps for late subscribers.
func (c *Client) PublishRetained(topic string, payload []byte) {
	c.publish(topic, payload, true)
}

func (c *Client) publish(topic string, payload []byte, retained bool) {
	if c == nil || c.Client == nil {
		return
	}
	token := c.Client.Publish(topic, 0, retained, payload)
	if token.Wait() && token.Error() != nil {
		c.log.Warn("mqtt publish", "topic", topic, "err", token.Error())
	}
}

func (c *Client) Subscribe(topic string, handler mqtt.MessageHandler) {
	if c == nil || c.Client == nil {
		return
	}
	token := c.Client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		c.log.Error("mqtt subscribe", "topic", topic, "err", token.Error())
	}
}

func (c *Client) Connected() bool {
	return c != nil && c.Client != nil && c.Client.IsConnected()
}

func (c *Client) Disconnect() {
	if c == nil || c.Client == nil {
		return
	}
	c.Client.Disconnect(250)
}
