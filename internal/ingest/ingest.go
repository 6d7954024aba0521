// Package ingest subscribes to live station readings over MQTT and merges
// them into the registry.
//
// Devices publish one JSON reading per message:
//
//	{"stationId":"ENV-MON-001","parameters":{"pH":7.3},"timestamp":"2025-06-01T09:30:00Z"}
//
// Readings for unknown stations register a new station when they carry a
// name and a valid type; otherwise they are rejected.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/DukeRupert/tsfwatch/internal/domain"
	"github.com/DukeRupert/tsfwatch/internal/events"
	"github.com/DukeRupert/tsfwatch/internal/metrics"
	"github.com/DukeRupert/tsfwatch/internal/registry"
)

// DefaultTopic matches every station's readings topic.
const DefaultTopic = "tsf/stations/+/readings"

// Reading is the payload of one MQTT message.
type Reading struct {
	StationID  string               `json:"stationId"`
	Name       string               `json:"name,omitempty"`
	Type       domain.StationType   `json:"type,omitempty"`
	Position   *domain.Position     `json:"position,omitempty"`
	Parameters map[string]float64   `json:"parameters"`
	Status     domain.StationStatus `json:"status,omitempty"`
	AlertLevel domain.AlertLevel    `json:"alertLevel,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Validate checks the reading can be applied.
func (r *Reading) Validate() error {
	if r.StationID == "" {
		return errors.New("stationId is required")
	}
	if len(r.Parameters) == 0 {
		return errors.New("parameters are required")
	}
	if r.Status != "" && !r.Status.IsValid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.AlertLevel != "" && !r.AlertLevel.IsValid() {
		return fmt.Errorf("unknown alert level %q", r.AlertLevel)
	}
	return nil
}

// =============================================================================
// Handler
// =============================================================================

// Handler applies readings to the registry.
type Handler struct {
	registry  *registry.Registry
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(reg *registry.Registry, publisher events.Publisher, logger *slog.Logger) *Handler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{
		registry:  reg,
		publisher: publisher,
		logger:    logger.With("component", "ingest"),
		now:       time.Now,
	}
}

// Handle decodes and applies one message payload.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	const op = "ingest.Handle"

	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Malformed station reading")
	}
	if err := r.Validate(); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, err.Error())
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = h.now()
	}

	if !h.registry.UpdateStationReadings(r.StationID, r.Parameters, r.Timestamp) {
		if r.Name == "" || !r.Type.IsValid() {
			return domain.NotFound(op, "station", r.StationID)
		}
		station := domain.MonitoringStation{
			ID:          r.StationID,
			Name:        r.Name,
			Type:        r.Type,
			Parameters:  r.Parameters,
			LastReading: r.Timestamp,
			Status:      domain.StationStatusOnline,
			AlertLevel:  domain.AlertLevelNormal,
		}
		if r.Position != nil {
			station.Position = *r.Position
		}
		h.registry.UpsertStation(station)
	}

	if r.Status != "" || r.AlertLevel != "" {
		current, _ := h.registry.Station(r.StationID)
		status, alert := current.Status, current.AlertLevel
		if r.Status != "" {
			status = r.Status
		}
		if r.AlertLevel != "" {
			alert = r.AlertLevel
		}
		h.registry.SetStationStatus(r.StationID, status, alert)
	}

	metrics.StationReading("mqtt")
	events.PublishJSON(ctx, h.publisher, h.logger, events.TypeStationReading, r)
	return nil
}

// =============================================================================
// Subscriber
// =============================================================================

// Config holds broker settings.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string

	// ConnectTimeout bounds how long Start waits for the first connection.
	ConnectTimeout time.Duration

	// RetryInterval is the pause between connection attempts while the
	// broker is unreachable.
	RetryInterval time.Duration
}

// Subscriber feeds broker messages to a Handler. The subscription is made
// on every (re)connect, so it survives broker restarts.
type Subscriber struct {
	config  Config
	handler *Handler
	client  mqtt.Client
	logger  *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewSubscriber creates a subscriber. It does not connect until Start.
func NewSubscriber(cfg Config, handler *Handler, logger *slog.Logger) (*Subscriber, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "tsfwatch"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}

	s := &Subscriber{
		config:  cfg,
		handler: handler,
		logger:  logger.With("component", "mqtt"),
		ctx:     context.Background(),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.RetryInterval).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOnConnectHandler(s.onConnect).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			s.logger.Warn("broker connection lost", "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	s.client = mqtt.NewClient(opts)

	return s, nil
}

// Start begins connecting. Messages are handled with ctx until Stop. If the
// broker is not reachable within ConnectTimeout, Start returns nil and the
// client keeps retrying in the background; it subscribes once connected.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	token := s.client.Connect()
	if !token.WaitTimeout(s.config.ConnectTimeout) {
		s.logger.Warn("broker not reachable yet, retrying in background",
			"broker", s.config.Broker,
			"retry_interval", s.config.RetryInterval,
		)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.config.Broker, err)
	}
	return nil
}

// onConnect subscribes to the readings topic. paho calls it in its own
// goroutine after the first connection and after every reconnect.
func (s *Subscriber) onConnect(c mqtt.Client) {
	s.logger.Info("connected to broker", "broker", s.config.Broker)

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	token := c.Subscribe(s.config.Topic, 1, s.messageHandler(ctx))
	if !token.WaitTimeout(s.config.ConnectTimeout) {
		s.logger.Error("subscribe timed out", "topic", s.config.Topic)
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("subscribe failed", "topic", s.config.Topic, "error", err)
		return
	}
	s.logger.Info("subscribed to station readings", "topic", s.config.Topic)
}

// Stop unsubscribes and disconnects. Disconnect also ends a pending
// connect retry.
func (s *Subscriber) Stop() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.config.Topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(250)
	s.logger.Info("disconnected from broker")
}

func (s *Subscriber) messageHandler(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handler.Handle(ctx, msg.Payload()); err != nil {
			s.logger.Warn("rejected station reading",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
