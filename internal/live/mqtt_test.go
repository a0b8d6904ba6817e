package live

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- Test doubles ----

type tokenStub struct {
	completed bool
	err       error
}

func (t *tokenStub) Wait() bool { return t.completed }
func (t *tokenStub) WaitTimeout(time.Duration) bool { return t.completed }
func (t *tokenStub) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *tokenStub) Error() error { return t.err }

type messageStub struct {
	mqtt.Message
	payload []byte
}

func (m messageStub) Payload() []byte { return m.payload }

type subscriberStub struct {
	topic string
	qos   byte
	cb    mqtt.MessageHandler
	token *tokenStub
}

func (s *subscriberStub) Subscribe(topic string, qos byte, cb mqtt.MessageHandler) mqtt.Token {
	s.topic, s.qos, s.cb = topic, qos, cb
	return s.token
}

func newTestMQTT(t *testing.T) *MQTTTransport {
	t.Helper()
	tr, err := NewMQTTTransport(MQTTConfig{
		Broker:      "tcp://broker:1883",
		ClientID:    "dash-1",
		TopicPrefix: "fleet/",
		QoS:         1,
		Credential:  func() string { return "tok-xyz" },
	}, nil)
	require.NoError(t, err)
	return tr
}

// ---- Tests ----

func TestMQTTTransport_ClientOptions(t *testing.T) {
	t.Parallel()

	tr := newTestMQTT(t)
	var lost error
	reconnecting := 0
	opts := tr.clientOptions(Handlers{
		OnConnectionLost: func(err error) { lost = err },
		OnReconnecting:   func() { reconnecting++ },
	})

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://broker:1883", opts.Servers[0].String())
	assert.Equal(t, "dash-1", opts.ClientID)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)

	user, pass := opts.CredentialsProvider()
	assert.Equal(t, "bearer", user)
	assert.Equal(t, "tok-xyz", pass)

	opts.OnConnectionLost(nil, errors.New("keepalive timeout"))
	assert.EqualError(t, lost, "keepalive timeout")
	opts.OnReconnecting(nil, opts)
	assert.Equal(t, 1, reconnecting)
}

func TestMQTTJoiner_SubscribesAndForwards(t *testing.T) {
	t.Parallel()

	tr := newTestMQTT(t)
	var got []byte
	sub := &subscriberStub{token: &tokenStub{completed: true}}
	j := &mqttJoiner{sub: sub, t: tr, onMessage: func(b []byte) { got = b }}

	require.NoError(t, j.Join(DefaultRoom))
	assert.Equal(t, "fleet/dashboard", sub.topic)
	assert.Equal(t, byte(1), sub.qos)

	sub.cb(nil, messageStub{payload: []byte(`{"device_id":"PC-5"}`)})
	assert.Equal(t, `{"device_id":"PC-5"}`, string(got))
}

func TestMQTTJoiner_Failures(t *testing.T) {
	t.Parallel()

	tr := newTestMQTT(t)

	timeout := &mqttJoiner{sub: &subscriberStub{token: &tokenStub{}}, t: tr}
	assert.ErrorIs(t, timeout.Join("dashboard"), ErrSubscribeTimeout)

	denied := errors.New("not authorized")
	refused := &mqttJoiner{sub: &subscriberStub{token: &tokenStub{completed: true, err: denied}}, t: tr}
	assert.ErrorIs(t, refused.Join("dashboard"), denied)
}

func TestNewMQTTTransport_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewMQTTTransport(MQTTConfig{}, nil)
	assert.Error(t, err)

	_, err = NewMQTTTransport(MQTTConfig{Broker: "tcp://b:1883", QoS: 3}, nil)
	assert.Error(t, err)

	tr, err := NewMQTTTransport(MQTTConfig{Broker: "tcp://b:1883"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "telemetry/dashboard", tr.Topic(DefaultRoom))
}
