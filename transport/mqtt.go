package transport

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to an intensity topic on a broker. It is the
// ingress for setups without a desktop router, where something like a
// home automation hub publishes intensity values instead.
type MQTTSource struct {
	sink   Sink
	broker string
	topic  string
	id     string
	client mqtt.Client
}

func NewMQTTSource(sink Sink, broker, topic, clientID string) *MQTTSource {
	return &MQTTSource{sink: sink, broker: broker, topic: topic, id: clientID}
}

// Start connects to the broker and subscribes to the intensity topic.
// Reconnecting after broker restarts is left to the paho client.
func (s *MQTTSource) Start() error {
	opts := mqtt.NewClientOptions().AddBroker(s.broker).SetClientID(s.id).SetAutoReconnect(true)
	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to MQTT broker %s: %w", s.broker, token.Error())
	}
	if token := s.client.Subscribe(s.topic, 0, s.handleMessage); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topic, token.Error())
	}
	slog.Info("MQTT source subscribed", "broker", s.broker, "topic", s.topic)
	return nil
}

func (s *MQTTSource) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *MQTTSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	raw, err := parsePayload(msg.Payload())
	if err != nil {
		slog.Warn("dropping malformed MQTT payload", "topic", msg.Topic(), "error", err)
		return
	}
	feed(s.sink, "mqtt", raw)
}

// parsePayload reads a bare decimal intensity value.
func parsePayload(payload []byte) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
}
