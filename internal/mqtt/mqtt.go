// Package mqtt mirrors characteristic changes and lifecycle events to an MQTT
// broker, with an abstraction for testing.
package mqtt

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "sq/peripheral"

// Topics are the MQTT topics under one prefix.
type Topics struct {
	// Characteristics carries one message per attribute database write.
	Characteristics string

	// System carries lifecycle events (retained).
	System string
}

// TopicsFor returns the topics under prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Characteristics: prefix + "/characteristics",
		System:          prefix + "/system",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishCharacteristic sends a characteristic change to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishCharacteristic(event CharacteristicEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CharacteristicEvent is one characteristic value written to the attribute
// database.
type CharacteristicEvent struct {
	Timestamp time.Time
	Name      string
	Value     int
	Raw       []byte
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Characteristic CharacteristicPayload `json:"characteristic"`
}

// CharacteristicPayload contains the characteristic change details.
type CharacteristicPayload struct {
	Name      string `json:"name"`
	Value     int    `json:"value"`
	Raw       string `json:"raw"`
	Timestamp string `json:"timestamp"`
}

// FormatPayload creates the JSON payload for a characteristic change. Raw
// bytes are hex encoded in wire order.
func FormatPayload(event CharacteristicEvent) ([]byte, error) {
	payload := Payload{
		Characteristic: CharacteristicPayload{
			Name:      event.Name,
			Value:     event.Value,
			Raw:       hex.EncodeToString(event.Raw),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
