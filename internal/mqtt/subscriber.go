package mqtt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/StrokeForge/internal/config"
	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/script"
	"github.com/AaronLay10/StrokeForge/internal/session"
)

// Topic suffixes under <prefix>/<script id>/.
const (
	TopicScript   = "script"
	TopicPipeline = "pipeline"
	TopicRendered = "rendered"
	TopicPairs    = "pairs"
)

// ScriptSubscriber feeds scripts and pipelines received over MQTT into the
// session store and publishes rendered output back.
// Subscriptions are tracked so SubscribeAll is idempotent across reconnects.
type ScriptSubscriber struct {
	mu         sync.RWMutex
	broker     Broker
	store      *session.Store
	prefix     string
	subscribed map[string]bool
}

// NewScriptSubscriber creates a subscriber for topics under prefix.
func NewScriptSubscriber(broker Broker, store *session.Store, prefix string) *ScriptSubscriber {
	return &ScriptSubscriber{
		broker:     broker,
		store:      store,
		prefix:     strings.TrimSuffix(prefix, "/"),
		subscribed: make(map[string]bool),
	}
}

// Topics returns the wildcard topics the subscriber listens on.
func (s *ScriptSubscriber) Topics() []string {
	return []string{
		s.prefix + "/+/" + TopicScript,
		s.prefix + "/+/" + TopicPipeline,
	}
}

// SubscribeAll subscribes to every input topic not yet subscribed.
func (s *ScriptSubscriber) SubscribeAll() error {
	for _, topic := range s.Topics() {
		s.mu.RLock()
		done := s.subscribed[topic]
		s.mu.RUnlock()
		if done {
			continue
		}

		if err := s.broker.Subscribe(topic, s.handle); err != nil {
			events.Emit("error", "transport.error", "failed to subscribe", map[string]interface{}{
				"topic": topic,
				"error": err.Error(),
			})
			return err
		}

		s.mu.Lock()
		s.subscribed[topic] = true
		s.mu.Unlock()
	}
	return nil
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *ScriptSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns all subscribed topics in sorted order.
func (s *ScriptSubscriber) SubscribedTopics() []string {
	s.mu.RLock()
	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	s.mu.RUnlock()

	sort.Strings(topics)
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this before resubscribing on reconnect.
func (s *ScriptSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}

// ParseTopic splits <prefix>/<id>/<suffix> into id and suffix.
func ParseTopic(prefix, topic string) (id, suffix string, ok bool) {
	rest := strings.TrimPrefix(topic, strings.TrimSuffix(prefix, "/")+"/")
	if rest == topic {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (s *ScriptSubscriber) handle(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	id, suffix, ok := ParseTopic(s.prefix, topic)
	if !ok {
		return
	}

	events.Emit("info", "transport.received", "", map[string]interface{}{
		"script_id": id,
		"topic":     topic,
		"bytes":     len(msg.Payload()),
	})

	var err error
	switch suffix {
	case TopicScript:
		err = s.handleScript(id, msg.Payload())
	case TopicPipeline:
		err = s.handlePipeline(id, msg.Payload())
	default:
		return
	}

	if err != nil {
		events.Emit("warn", "script.rejected", "invalid payload", map[string]interface{}{
			"script_id": id,
			"topic":     topic,
			"error":     err.Error(),
		})
	}
}

func (s *ScriptSubscriber) handleScript(id string, payload []byte) error {
	in, err := decodeScript(payload)
	if err != nil {
		return err
	}
	_, err = s.store.SetScript(id, in)
	return err
}

func (s *ScriptSubscriber) handlePipeline(id string, payload []byte) error {
	cfg, err := config.ParsePipelineConfig(payload)
	if err != nil {
		return err
	}
	mods, err := pipeline.FromConfig(cfg)
	if err != nil {
		return err
	}
	_, err = s.store.SetPipeline(id, mods)
	return err
}

// decodeScript accepts a JSON script or two-column CSV.
func decodeScript(payload []byte) (script.Script, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		return script.ParseJSON(payload)
	}
	return script.ParseCSV(payload)
}

// Publish sends out as retained <prefix>/<id>/rendered and <prefix>/<id>/pairs
// messages. It has the shape of a session.RenderFunc.
func (s *ScriptSubscriber) Publish(id string, out script.Script) {
	rendered, err := script.MarshalJSON(out)
	if err != nil {
		s.publishFailed(id, "", err)
		return
	}
	pairs, err := json.Marshal(script.Pairs(out))
	if err != nil {
		s.publishFailed(id, "", err)
		return
	}

	for _, p := range []struct {
		suffix  string
		payload []byte
	}{
		{TopicRendered, rendered},
		{TopicPairs, pairs},
	} {
		topic := fmt.Sprintf("%s/%s/%s", s.prefix, id, p.suffix)
		if err := s.broker.Publish(topic, p.payload, true); err != nil {
			s.publishFailed(id, topic, err)
			continue
		}
		events.Emit("info", "transport.published", "", map[string]interface{}{
			"script_id": id,
			"topic":     topic,
			"bytes":     len(p.payload),
		})
	}
}

func (s *ScriptSubscriber) publishFailed(id, topic string, err error) {
	events.Emit("error", "transport.error", "failed to publish rendered script", map[string]interface{}{
		"script_id": id,
		"topic":     topic,
		"error":     err.Error(),
	})
}
