package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"homegraph/pkg/config"
	"homegraph/pkg/entity"
	"homegraph/pkg/storage"
)

// MQTTSource subscribes to entity state topics and writes state changes to
// storage. Topic layout follows the usual home-automation convention:
//
//	<prefix>/state/<entity_id>
//
// The payload is either the bare state string ("on", "21.5") or a JSON
// object {"state": "...", "attributes": {...}, "timestamp": "..."}.
// Bare payloads are stamped with the receive time.
type MQTTSource struct {
	client mqtt.Client
	store  storage.Storage
	prefix string
}

// MQTTConfig holds broker connection settings
type MQTTConfig struct {
	BrokerURL   string
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
}

// statePayload is the JSON payload form
type statePayload struct {
	State      string            `json:"state"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp,omitempty"`
}

// NewMQTTSource connects to the broker and subscribes to the state topics.
// The paho client auto-reconnects; the subscription is re-established in the
// OnConnect handler so restarts of the broker are survived.
func NewMQTTSource(cfg MQTTConfig, store storage.Storage) (*MQTTSource, error) {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = config.MQTTDefaultPrefix
	}

	src := &MQTTSource{store: store, prefix: prefix}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "homegraph-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(config.MQTTConnectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			topic := prefix + "/state/+"
			token := c.Subscribe(topic, config.MQTTQoS, src.handleMessage)
			token.Wait()
			if token.Error() != nil {
				log.Printf("MQTT subscribe to %s failed: %v", topic, token.Error())
				return
			}
			log.Printf("MQTT subscribed to %s", topic)
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.BrokerURL, token.Error())
	}

	src.client = client
	return src, nil
}

// handleMessage maps one MQTT message to a stored state change
func (s *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	entityID := strings.TrimPrefix(msg.Topic(), s.prefix+"/state/")
	if entityID == "" || entityID == msg.Topic() {
		log.Printf("MQTT message on unexpected topic %s, dropping", msg.Topic())
		return
	}

	change := parseStateMessage(entityID, msg.Payload())
	if err := change.Validate(); err != nil {
		log.Printf("MQTT state for %s rejected: %v", entityID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.IngestTimeout)
	defer cancel()

	if err := s.store.Write(ctx, []entity.StateChange{change}); err != nil {
		log.Printf("Failed to store MQTT state for %s: %v", entityID, err)
	}
}

// parseStateMessage accepts both bare-string and JSON payloads
func parseStateMessage(entityID string, payload []byte) entity.StateChange {
	var p statePayload
	if err := json.Unmarshal(payload, &p); err == nil && p.State != "" {
		ts := p.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		return entity.StateChange{
			EntityID:   entityID,
			State:      p.State,
			Attributes: p.Attributes,
			Timestamp:  ts,
		}
	}

	return entity.StateChange{
		EntityID:  entityID,
		State:     strings.TrimSpace(string(payload)),
		Timestamp: time.Now(),
	}
}

// Close disconnects from the broker, waiting briefly for in-flight messages
func (s *MQTTSource) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
