// Package mqtt publishes the events of the controller to a mqtt broker.
package mqtt

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

const (
	// quiesce is the specified number of milliseconds to wait for existing work to be completed.
	quiesce = 250
	// connectTimeout limits the wait for the broker in Connect and on reconnect.
	connectTimeout = 5 * time.Second
	// queue is the number of messages buffered while the broker is slow.
	queue = 32
)

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler mqttlib.Client
	topic   string
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	// C is closed by Disconnect.
	C chan Message

	// mu guards closed and the sends on C
	mu     sync.RWMutex
	closed bool
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// ScanEvent is published to <topic>/scan for every decoded credential.
// Slot is -1 for an unknown credential.
type ScanEvent struct {
	Time     string `json:"time"`
	Reader   int    `json:"reader"`
	Facility uint8  `json:"facility"`
	User     uint16 `json:"user"`
	Granted  bool   `json:"granted"`
	Slot     int    `json:"slot"`
	Door     int    `json:"door"`
}

// DoorEvent is published to <topic>/door when a door opens or closes.
type DoorEvent struct {
	Time string `json:"time"`
	Door int    `json:"door"`
	Open bool   `json:"open"`
}

// New generate a new mqtt broker client.
// Events are published below topic.
func New(topic string) *Handler {
	return &Handler{
		topic: strings.TrimSuffix(topic, "/"),
		C:     make(chan Message, queue),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt message are send.
func (m *Handler) Connect(broker string) error {
	if broker == "" {
		debug.InfoLog.Print("no mqtt broker defined, events are not published")
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID("dorbo").
		SetConnectTimeout(connectTimeout)
	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return mqttlib.ErrNotConnected
	}
	return t.Error()
}

// Disconnect will end the connection to the broker and stop Service.
func (m *Handler) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.handler != nil {
		m.handler.Disconnect(quiesce)
	}
	close(m.C)
	return nil
}

// Enabled reports whether a broker is connected.
func (m *Handler) Enabled() bool {
	return m.handler != nil
}

// PublishScan queues a scan event.
func (m *Handler) PublishScan(e ScanEvent) {
	m.publish("scan", e)
}

// PublishDoor queues a door event.
func (m *Handler) PublishDoor(e DoorEvent) {
	m.publish("door", e)
}

// publish marshals v and queues it for Service without blocking the caller.
// Messages are dropped while the queue is full.
func (m *Handler) publish(sub string, v interface{}) {
	if m.handler == nil || m.topic == "" {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		debug.ErrorLog.Printf("mqtt: marshal %s event: %v", sub, err)
		return
	}

	msg := Message{Topic: m.topic + "/" + sub, Payload: payload}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.C <- msg:
	default:
		debug.ErrorLog.Printf("mqtt: queue full, dropping message to topic %v", msg.Topic)
	}
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no handler or topic is defined, the message will be ignored.
// Service returns after Disconnect.
func (m *Handler) Service() {
	for d := range m.C {
		if m.handler == nil || d.Topic == "" {
			continue
		}

		if !m.handler.IsConnected() {
			debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

			if err := m.ReConnect(); err != nil {
				debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
				continue
			}
		}

		debug.DebugLog.Printf("publishing %v bytes to topic %v", len(d.Payload), d.Topic)
		t := m.handler.Publish(d.Topic, d.Qos, d.Retained, d.Payload)

		go func(topic string) {
			if !t.WaitTimeout(connectTimeout) {
				debug.ErrorLog.Printf("publishing topic %v: timeout", topic)
				return
			}
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}(d.Topic)
	}
}
