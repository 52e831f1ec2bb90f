// Package rangefinder subscribes to rangefinder readings published over MQTT
// and feeds them into the bridge's range slots. Topics are one per sensor,
// <prefix>/<n> with n counted from 1 on the wire, carrying the range in
// metres as a plain decimal payload.
package rangefinder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/helios-sim/fdm.bridge/internal/monitoring"
)

// RangeSetter receives decoded readings keyed by zero-based slot index. The
// bridge implements this; it owns the synchronization with tick processing.
type RangeSetter interface {
	SetRange(index int, value float64)
}

// Config configures the subscription.
type Config struct {
	Broker      string // e.g. tcp://127.0.0.1:1883
	ClientID    string
	TopicPrefix string // defaults to "rangefinder"
	Count       int    // number of sensor slots in use
}

// Subscriber is a live MQTT subscription feeding a RangeSetter.
type Subscriber struct {
	client mqtt.Client
	topic  string
}

// Subscribe connects to the broker and subscribes to every sensor topic
// under the prefix. The subscription lifetime belongs to the caller (the
// bridge owner), which must Close it on teardown.
func Subscribe(cfg Config, sink RangeSetter) (*Subscriber, error) {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "rangefinder"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "fdm-bridge"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	topic := prefix + "/+"
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		handleReading(msg.Topic(), msg.Payload(), cfg.Count, sink)
	}
	if token := client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}

	return &Subscriber{client: client, topic: topic}, nil
}

// handleReading parses one message and forwards it to the sink. Indexes are
// 1-based on the wire and shifted to the bridge's zero-based slots.
func handleReading(topic string, payload []byte, count int, sink RangeSetter) {
	idx := topic[strings.LastIndexByte(topic, '/')+1:]
	n, err := strconv.Atoi(idx)
	if err != nil || n < 1 {
		monitoring.Logf("rangefinder: ignoring topic %q: bad sensor index", topic)
		return
	}
	if count > 0 && n > count {
		monitoring.Logf("rangefinder: ignoring reading for unconfigured sensor %d", n)
		return
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		monitoring.Logf("rangefinder: bad payload on %q: %v", topic, err)
		return
	}
	sink.SetRange(n-1, v)
}

// Close unsubscribes and disconnects. Readings already in flight are safe:
// the sink synchronizes internally.
func (s *Subscriber) Close() {
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		monitoring.Logf("rangefinder: unsubscribe failed: %v", token.Error())
	}
	s.client.Disconnect(250)
}
