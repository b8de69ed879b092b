package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/clock"
	"github.com/opencode-ai/sequencer/internal/models"
	"github.com/opencode-ai/sequencer/internal/scene"
	"github.com/opencode-ai/sequencer/internal/sequence"
	"github.com/opencode-ai/sequencer/internal/sequencer"
)

// fakeTransport records subscriptions and publishes in memory.
type fakeTransport struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	published     []string
	publishedCh   chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subscriptions: make(map[string]paho.MessageHandler),
		publishedCh:   make(chan string, 16),
	}
}

func (f *fakeTransport) Subscribe(topic string, handler paho.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[topic] = handler
	return nil
}

func (f *fakeTransport) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	f.published = append(f.published, topic+" "+string(payload))
	f.mu.Unlock()
	f.publishedCh <- topic + " " + string(payload)
	return nil
}

func (f *fakeTransport) simulate(topic string, payload string) {
	f.mu.Lock()
	handler, ok := f.subscriptions[topic]
	f.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: []byte(payload)})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

type fakeRepo struct {
	mu     sync.Mutex
	events []*models.Event
}

func (r *fakeRepo) Create(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type bridgeFixture struct {
	transport *fakeTransport
	director  *sequencer.Director
	bridge    *Bridge
	repo      *fakeRepo
	alice     *scene.Node
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()

	s := scene.New()
	alice := s.Add(scene.NewNode("Alice"))
	director := sequencer.New(sequencer.DefaultConfig(), sequencer.Options{
		Clock: clock.NewManual(),
		Bus:   bus.New(),
		Scene: s,
	})

	cutscenes := map[string]*sequence.Cutscene{
		"wave": {Name: "wave", Sequence: "SendMessage(Wave, {{ .how }})->Message(Waved)"},
	}
	find := func(name string) (*sequence.Cutscene, error) {
		c, ok := cutscenes[name]
		if !ok {
			return nil, sequence.ErrCutsceneNotFound
		}
		return c, nil
	}

	f := &bridgeFixture{
		transport: newFakeTransport(),
		director:  director,
		repo:      &fakeRepo{},
		alice:     alice,
	}
	f.bridge = NewBridge(BridgeConfig{Topic: "stage/"}, f.transport, director, find, f.repo)
	require.NoError(t, f.bridge.Start())
	t.Cleanup(f.bridge.Stop)
	return f
}

func (f *bridgeFixture) awaitPublished(t *testing.T) string {
	t.Helper()
	select {
	case got := <-f.transport.publishedCh:
		return got
	case <-time.After(5 * time.Second):
		t.Fatal("nothing published")
		return ""
	}
}

func TestBridgeSubscribesTopics(t *testing.T) {
	f := newBridgeFixture(t)

	require.Contains(t, f.transport.subscriptions, "stage/message")
	require.Contains(t, f.transport.subscriptions, "stage/play")
	require.ErrorIs(t, f.bridge.Start(), ErrBridgeStarted)
}

func TestBridgeMessageReachesSequence(t *testing.T) {
	f := newBridgeFixture(t)
	waved := 0
	f.alice.On("Wave", func(string) { waved++ })

	_, err := f.director.PlaySequence("SendMessage(Wave)@Message(Go)", f.alice, nil, sequencer.PlayOptions{})
	require.NoError(t, err)

	f.transport.simulate("stage/message", `{"name": "Go"}`)
	require.Zero(t, waved, "delivery waits for the loop")

	f.director.Tick()
	require.Equal(t, 1, waved)
	require.Equal(t, "stage/out Go", f.awaitPublished(t))

	require.Len(t, f.repo.events, 1)
	require.Equal(t, models.EventTypeMessageReceived, f.repo.events[0].Type)
	require.Equal(t, models.EntityTypeBridge, f.repo.events[0].EntityType)
}

func TestBridgeIgnoresEmptyMessage(t *testing.T) {
	f := newBridgeFixture(t)

	f.transport.simulate("stage/message", "   ")
	f.transport.simulate("stage/message", `{"name": ""}`)
	require.Empty(t, f.repo.events)
}

func TestBridgePlayRequest(t *testing.T) {
	f := newBridgeFixture(t)
	var got []string
	f.alice.On("Wave", func(arg string) { got = append(got, arg) })

	f.transport.simulate("stage/play", `{"cutscene": "wave", "speaker": "Alice", "vars": {"how": "warmly"}}`)
	require.Empty(t, f.director.Handles())

	f.director.Tick()
	require.Equal(t, []string{"warmly"}, got)
	require.Equal(t, "stage/out Waved", f.awaitPublished(t))
}

func TestBridgePlayRequestUnknownCutscene(t *testing.T) {
	f := newBridgeFixture(t)

	f.transport.simulate("stage/play", `{"cutscene": "missing"}`)
	f.transport.simulate("stage/play", `not json`)
	f.director.Tick()
	require.Empty(t, f.director.Handles())
}

func TestBridgeStopEndsPublishing(t *testing.T) {
	f := newBridgeFixture(t)
	f.bridge.Stop()

	f.director.Bus().Send("After")
	f.transport.mu.Lock()
	defer f.transport.mu.Unlock()
	require.Empty(t, f.transport.published)
}

func TestParseMessageName(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"Go", "Go"},
		{"  Go \n", "Go"},
		{`{"name":"Door.Open"}`, "Door.Open"},
		{`{broken`, "{broken"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			require.Equal(t, tt.want, parseMessageName([]byte(tt.payload)))
		})
	}
}
