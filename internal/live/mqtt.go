package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telemetry_dashboard/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultTopicPrefix = "telemetry"
	subscribeTimeout   = 10 * time.Second
	disconnectQuiesce  = 250 // ms
)

// ErrSubscribeTimeout is returned when the broker does not acknowledge a join.
var ErrSubscribeTimeout = errors.New("subscribe timed out")

// MQTTConfig configures the MQTT transport. The bearer credential is sent as
// the MQTT password with the fixed username "bearer".
type MQTTConfig struct {
	Broker       string
	ClientID     string
	TopicPrefix  string
	QoS          byte
	Credential   func() string
	ReconnectMax time.Duration
}

// MQTTTransport subscribes to <prefix>/<room> on an MQTT broker. Reconnects
// are handled by paho; the on-connect handler re-issues the subscription.
type MQTTTransport struct {
	cfg       MQTTConfig
	log       *logger.Logger
	newClient func(o *mqtt.ClientOptions) mqtt.Client
}

func NewMQTTTransport(cfg MQTTConfig, log *logger.Logger) (*MQTTTransport, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "telemetry-dashboard"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos %d out of range", cfg.QoS)
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = defaultReconnectMax
	}
	if cfg.Credential == nil {
		cfg.Credential = func() string { return "" }
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MQTTTransport{cfg: cfg, log: log, newClient: mqtt.NewClient}, nil
}

// Topic returns the topic carrying events for room.
func (t *MQTTTransport) Topic(room string) string {
	return strings.TrimRight(t.cfg.TopicPrefix, "/") + "/" + room
}

// Dial starts connecting in the background; paho keeps retrying until the
// broker is reachable.
func (t *MQTTTransport) Dial(_ context.Context, h Handlers) (Conn, error) {
	client := t.newClient(t.clientOptions(h))
	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.log.Warnw("mqtt_connect_failed", "broker", t.cfg.Broker, "err", err)
		}
	}()
	return &mqttHandle{client: client}, nil
}

func (t *MQTTTransport) clientOptions(h Handlers) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(t.cfg.Broker)
	opts.SetClientID(t.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(defaultReconnectMin)
	opts.SetMaxReconnectInterval(t.cfg.ReconnectMax)
	opts.SetOrderMatters(true)
	opts.SetCredentialsProvider(func() (string, string) {
		return "bearer", t.cfg.Credential()
	})

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if h.OnConnect != nil {
			h.OnConnect(&mqttJoiner{sub: c, t: t, onMessage: h.OnMessage})
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if h.OnConnectionLost != nil {
			h.OnConnectionLost(err)
		}
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		if h.OnReconnecting != nil {
			h.OnReconnecting()
		}
	})
	return opts
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

type mqttJoiner struct {
	sub       subscriber
	t         *MQTTTransport
	onMessage func([]byte)
}

func (j *mqttJoiner) Join(room string) error {
	topic := j.t.Topic(room)
	token := j.sub.Subscribe(topic, j.t.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		if j.onMessage != nil {
			j.onMessage(m.Payload())
		}
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe %s: %w", topic, ErrSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

type mqttHandle struct {
	client mqtt.Client
}

func (c *mqttHandle) Close() error {
	c.client.Disconnect(disconnectQuiesce)
	return nil
}
