package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jkaflik/windowbox2mqtt/internal/shutter"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mu            sync.Mutex
	published     []published
	subscriptions map[string]paho.MessageHandler
	unsubscribed  []string
	publishErr    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscriptions: map[string]paho.MessageHandler{}}
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() paho.Token    { return &fakeToken{} }
func (c *fakeClient) Disconnect(uint)        {}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.publishErr != nil {
		return &fakeToken{err: c.publishErr}
	}

	var p string
	switch v := payload.(type) {
	case string:
		p = v
	case []byte:
		p = string(v)
	}
	c.published = append(c.published, published{topic: topic, retained: retained, payload: p})
	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions[topic] = callback
	return &fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	for topic := range filters {
		c.Subscribe(topic, 0, callback)
	}
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unsubscribed = append(c.unsubscribed, topics...)
	return &fakeToken{}
}

func (c *fakeClient) AddRoute(string, paho.MessageHandler) {}

func (c *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

// deliver simulates an incoming message on a subscribed topic.
func (c *fakeClient) deliver(topic, payload string) {
	c.mu.Lock()
	h := c.subscriptions[topic]
	c.mu.Unlock()

	if h != nil {
		h(c, &fakeMessage{topic: topic, payload: []byte(payload)})
	}
}

// last returns the most recent payload published on topic.
func (c *fakeClient) last(topic string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i].payload, true
		}
	}
	return "", false
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type fakeShutter struct {
	handler   shutter.ShutterUpdateHandler
	commands  []string
	positions []int
	update    shutter.Update
}

func (s *fakeShutter) ID() string              { return "dev_motor_0" }
func (s *fakeShutter) Name() string            { return "Left" }
func (s *fakeShutter) FullOpenPosition() int   { return 0 }
func (s *fakeShutter) FullClosePosition() int  { return 100 }
func (s *fakeShutter) Position() *int          { return s.update.Position }
func (s *fakeShutter) State() string           { return s.update.State }
func (s *fakeShutter) Available() bool         { return s.update.Available }
func (s *fakeShutter) Attributes() interface{} { return map[string]int{"motor_state": 2} }

func (s *fakeShutter) OnUpdate(h shutter.ShutterUpdateHandler) {
	s.handler = h
}

func (s *fakeShutter) Open(context.Context) error {
	s.commands = append(s.commands, shutter.OpenCommand)
	return nil
}

func (s *fakeShutter) Close(context.Context) error {
	s.commands = append(s.commands, shutter.CloseCommand)
	return nil
}

func (s *fakeShutter) Stop(context.Context) error {
	s.commands = append(s.commands, shutter.StopCommand)
	return nil
}

func (s *fakeShutter) Favorite(context.Context) error {
	s.commands = append(s.commands, shutter.FavoriteCommand)
	return nil
}

func (s *fakeShutter) NextStep(context.Context) error {
	s.commands = append(s.commands, shutter.NextStepCommand)
	return nil
}

func (s *fakeShutter) SetPosition(_ context.Context, position int) error {
	s.positions = append(s.positions, position)
	return nil
}

func (s *fakeShutter) emit(u shutter.Update) {
	s.update = u
	s.handler(u)
}
