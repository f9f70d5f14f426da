// Package ingest subscribes to device access events published over MQTT and
// records them in the access log.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/redmonkez12/locklog/internal/accesslog"
	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/lock"
	"github.com/redmonkez12/locklog/internal/logging"
)

// Devices publish to locklog/access/{lockUID}.
const (
	TopicPrefix = "locklog/access/"
	topicFilter = TopicPrefix + "+"

	connectTimeout    = 10 * time.Second
	keepAlive         = 60 * time.Second
	maxReconnectDelay = 2 * time.Minute
	disconnectQuiesce = 250 // milliseconds
	recordTimeout     = 10 * time.Second
)

var (
	ErrConnectionFailed = errors.New("mqtt connection failed")
	ErrSubscribeFailed  = errors.New("mqtt subscribe failed")
	ErrBadTopic         = errors.New("topic does not name a lock")
	ErrUnknownLock      = errors.New("event from unregistered lock")
)

// Recorder stores an access event. *accesslog.Service satisfies it.
type Recorder interface {
	Record(ctx context.Context, in accesslog.RecordInput) (*accesslog.Log, error)
}

// LockFinder resolves the lock named in a topic. *lock.Repository satisfies it.
type LockFinder interface {
	GetByUID(ctx context.Context, uid string) (*lock.Lock, error)
}

// Subscriber turns MQTT messages into access log entries. Only registered
// locks are accepted since the broker does not authenticate per device.
type Subscriber struct {
	client   pahomqtt.Client
	recorder Recorder
	locks    LockFinder
	logger   *logging.Logger
	qos      byte
}

func newSubscriber(recorder Recorder, locks LockFinder, logger *logging.Logger, qos int) *Subscriber {
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return &Subscriber{recorder: recorder, locks: locks, logger: logger, qos: byte(qos)}
}

// Connect dials the broker and subscribes. The subscription is renewed on
// every reconnect.
func Connect(cfg config.MQTTConfig, recorder Recorder, locks LockFinder, logger *logging.Logger) (*Subscriber, error) {
	s := newSubscriber(recorder, locks, logger, cfg.QoS)

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		if err := s.subscribe(c); err != nil {
			s.logger.Error("failed to subscribe", "topic", topicFilter, "error", err)
			return
		}
		s.logger.Info("subscribed to access events", "topic", topicFilter)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = pahomqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return s, nil
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnectDelay)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	return opts
}

// subscribe counts a subscription that is not acknowledged in time as failed.
func (s *Subscriber) subscribe(c pahomqtt.Client) error {
	token := c.Subscribe(topicFilter, s.qos, s.onMessage)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Close disconnects, giving in-flight work a moment to finish.
func (s *Subscriber) Close() {
	if s.client != nil {
		s.client.Disconnect(disconnectQuiesce)
	}
}

func (s *Subscriber) onMessage(_ pahomqtt.Client, m pahomqtt.Message) {
	if err := s.handle(m.Topic(), m.Payload()); err != nil {
		s.logger.Warn("dropped access event", "topic", m.Topic(), "error", err)
	}
}

// handle records one event. paho runs handlers on its own goroutines, so the
// context here is not tied to any request.
func (s *Subscriber) handle(topic string, payload []byte) error {
	lockUID, err := lockFromTopic(topic)
	if err != nil {
		return err
	}

	var in accesslog.RecordInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	in.Key = lockUID

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if _, err := s.locks.GetByUID(ctx, lockUID); err != nil {
		if errors.Is(err, lock.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownLock, lockUID)
		}
		return err
	}

	_, err = s.recorder.Record(ctx, in)
	return err
}

func lockFromTopic(topic string) (string, error) {
	uid, ok := strings.CutPrefix(topic, TopicPrefix)
	if !ok || uid == "" || strings.Contains(uid, "/") {
		return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return uid, nil
}
