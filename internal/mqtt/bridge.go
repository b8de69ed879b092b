package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/sequencer/internal/bus"
	"github.com/opencode-ai/sequencer/internal/events"
	"github.com/opencode-ai/sequencer/internal/logging"
	"github.com/opencode-ai/sequencer/internal/sequence"
	"github.com/opencode-ai/sequencer/internal/sequencer"
)

// Topic suffixes under the bridge's root topic.
const (
	TopicMessage = "message"
	TopicPlay    = "play"
	TopicOut     = "out"
)

const outboxSize = 256

// ErrBridgeStarted is returned by Start on a running bridge.
var ErrBridgeStarted = errors.New("bridge already started")

// Transport is the broker surface the bridge needs. *Client implements it.
type Transport interface {
	Subscribe(topic string, handler paho.MessageHandler) error
	Publish(topic string, payload []byte) error
}

// Player is the Director surface the bridge drives. Everything except Post
// and Do runs inside functions handed to Do.
type Player interface {
	Post(name string) bool
	Do(fn func()) bool
	Bus() *bus.Bus
	PlayCutscene(c *sequence.Cutscene, req sequencer.CutsceneRequest, opts sequencer.PlayOptions) (*sequencer.Handle, error)
}

// CutsceneFinder looks up a library cutscene by name.
type CutsceneFinder func(name string) (*sequence.Cutscene, error)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// ID names the bridge in the event log.
	ID string

	// Topic is the root topic, e.g. "sequencer".
	Topic string
}

// Bridge connects broker topics to a Director.
type Bridge struct {
	config    BridgeConfig
	transport Transport
	player    Player
	find      CutsceneFinder
	events    events.Repository
	logger    zerolog.Logger

	mu          sync.Mutex
	unsubscribe func()
	outbox      chan string
	wg          sync.WaitGroup
}

// NewBridge creates a bridge. find and repo may be nil.
func NewBridge(cfg BridgeConfig, transport Transport, player Player, find CutsceneFinder, repo events.Repository) *Bridge {
	if cfg.ID == "" {
		cfg.ID = "mqtt"
	}
	cfg.Topic = strings.TrimSuffix(strings.TrimSpace(cfg.Topic), "/")
	if cfg.Topic == "" {
		cfg.Topic = "sequencer"
	}
	return &Bridge{
		config:    cfg,
		transport: transport,
		player:    player,
		find:      find,
		events:    repo,
		logger:    logging.Component("mqtt").With().Str("bridge", cfg.ID).Logger(),
	}
}

// Topic returns the full topic for a suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.config.Topic + "/" + suffix
}

// Start subscribes to the inbound topics and begins publishing bus messages.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unsubscribe != nil {
		return ErrBridgeStarted
	}
	if err := b.transport.Subscribe(b.Topic(TopicMessage), b.handleMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.Topic(TopicMessage), err)
	}
	if err := b.transport.Subscribe(b.Topic(TopicPlay), b.handlePlay); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.Topic(TopicPlay), err)
	}

	b.outbox = make(chan string, outboxSize)
	b.wg.Add(1)
	go b.publishLoop(b.outbox)

	b.unsubscribe = b.player.Bus().Subscribe(bus.ListenerFunc(b.enqueue))
	b.logger.Info().Str("topic", b.config.Topic).Msg("bridge started")
	return nil
}

// Stop stops publishing bus messages and waits for queued publishes.
// Broker subscriptions end with the client connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.unsubscribe == nil {
		b.mu.Unlock()
		return
	}
	b.unsubscribe()
	b.unsubscribe = nil
	close(b.outbox)
	b.mu.Unlock()

	b.wg.Wait()
}

// handleMessage accepts a bare name or {"name": "..."}.
func (b *Bridge) handleMessage(_ paho.Client, msg paho.Message) {
	name := parseMessageName(msg.Payload())
	if name == "" {
		b.logger.Warn().Str("topic", msg.Topic()).Msg("empty message name ignored")
		return
	}

	if !b.player.Post(name) {
		return
	}
	b.logger.Debug().Str("message", name).Msg("message received")

	if b.events != nil {
		if err := events.LogMessageReceived(context.Background(), b.events, b.config.ID, name, msg.Topic()); err != nil {
			b.logger.Warn().Err(err).Msg("failed to record message")
		}
	}
}

func (b *Bridge) handlePlay(_ paho.Client, msg paho.Message) {
	var req sequencer.CutsceneRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		b.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("invalid play request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || b.find == nil {
		b.logger.Warn().Str("cutscene", req.Name).Msg("play request cannot be served")
		return
	}

	c, err := b.find(req.Name)
	if err != nil {
		b.logger.Warn().Err(err).Str("cutscene", req.Name).Msg("cutscene lookup failed")
		return
	}

	ok := b.player.Do(func() {
		h, err := b.player.PlayCutscene(c, req, sequencer.PlayOptions{DestroyWhenDone: true})
		if err != nil {
			b.logger.Warn().Err(err).Str("cutscene", req.Name).Msg("cutscene failed to start")
			return
		}
		b.logger.Info().Str("cutscene", req.Name).Str("handle", h.ID).Msg("cutscene started")
	})
	if !ok {
		b.logger.Warn().Str("cutscene", req.Name).Msg("director inbox full, play request dropped")
	}
}

// enqueue runs on the loop goroutine and must not wait on the broker.
func (b *Bridge) enqueue(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.outbox == nil || b.unsubscribe == nil {
		return
	}
	select {
	case b.outbox <- name:
	default:
		b.logger.Warn().Str("message", name).Msg("outbox full, message not published")
	}
}

func (b *Bridge) publishLoop(outbox <-chan string) {
	defer b.wg.Done()
	for name := range outbox {
		if err := b.transport.Publish(b.Topic(TopicOut), []byte(name)); err != nil {
			b.logger.Warn().Err(err).Str("message", name).Msg("publish failed")
		}
	}
}

func parseMessageName(payload []byte) string {
	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal([]byte(text), &body); err == nil {
			return strings.TrimSpace(body.Name)
		}
	}
	return text
}
