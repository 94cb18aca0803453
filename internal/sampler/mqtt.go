package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lizzahq/attendd/internal/attendance"
)

// fixPayload is the JSON published by the device's GPS bridge.
type fixPayload struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	RecordedAt string  `json:"recorded_at"`
}

// MQTT subscribes to a GPS-bridge topic and keeps only the most recent
// fix. Sample returns that fix while it is fresher than maxAge.
type MQTT struct {
	client mqtt.Client
	logger *slog.Logger
	topic  string
	maxAge time.Duration
	now    func() time.Time

	mu   sync.Mutex
	fix  attendance.Sample
	seen bool
}

// NewMQTT connects to the broker and subscribes to topic. A connect
// refusal from the broker's auth layer maps to permission_denied; any
// other connect failure maps to unsupported, since the device has no
// usable location capability without its bridge.
func NewMQTT(brokerAddr, topic string, maxAge time.Duration, logger *slog.Logger) (*MQTT, error) {
	s := &MQTT{
		logger: logger,
		topic:  topic,
		maxAge: maxAge,
		now:    time.Now,
	}

	clientID := fmt.Sprintf("attendd-%d", time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false).SetAutoReconnect(true)
	opts.OnConnect = func(c mqtt.Client) {
		if token := c.Subscribe(topic, 0, s.handleFix); token.Wait() && token.Error() != nil {
			logger.Error("mqtt subscribe failed", "topic", topic, "error", token.Error())
		}
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		err := token.Error()
		if strings.Contains(strings.ToLower(err.Error()), "not authorized") {
			return nil, &Error{Kind: attendance.ErrPermissionDenied, Msg: err.Error()}
		}
		return nil, &Error{Kind: attendance.ErrUnsupported, Msg: err.Error()}
	}
	logger.Info("connected to gps bridge", "broker", brokerAddr, "topic", topic)
	return s, nil
}

func (s *MQTT) handleFix(_ mqtt.Client, msg mqtt.Message) {
	var p fixPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		s.logger.Warn("discarding malformed fix", "topic", msg.Topic(), "error", err)
		return
	}

	at := s.now()
	if p.RecordedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, p.RecordedAt); err == nil {
			at = t
		}
	}
	s.store(attendance.Sample{Lat: p.Lat, Lon: p.Lon, At: at})
}

func (s *MQTT) store(fix attendance.Sample) {
	s.mu.Lock()
	s.fix = fix
	s.seen = true
	s.mu.Unlock()
}

// Sample returns the latest fix. No fix yet is position_unavailable; a
// fix older than maxAge is a timeout (the bridge has gone quiet).
func (s *MQTT) Sample(_ context.Context) (attendance.Sample, error) {
	s.mu.Lock()
	fix, seen := s.fix, s.seen
	s.mu.Unlock()

	if !seen {
		return attendance.Sample{}, &Error{Kind: attendance.ErrPositionUnavailable, Msg: "no fix received yet"}
	}
	if age := s.now().Sub(fix.At); age > s.maxAge {
		return attendance.Sample{}, &Error{Kind: attendance.ErrTimeout, Msg: fmt.Sprintf("last fix is %s old", age.Round(time.Second))}
	}
	return fix, nil
}

// Close disconnects from the broker.
func (s *MQTT) Close() {
	s.client.Disconnect(250)
}
