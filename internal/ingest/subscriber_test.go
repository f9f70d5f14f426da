package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/locklog/internal/accesslog"
	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/lock"
	"github.com/redmonkez12/locklog/internal/logging"
)

type fakeRecorder struct {
	got []accesslog.RecordInput
	err error
}

func (f *fakeRecorder) Record(_ context.Context, in accesslog.RecordInput) (*accesslog.Log, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = append(f.got, in)
	return &accesslog.Log{ID: uuid.New(), Source: in.Key}, nil
}

type fakeLocks map[string]bool

func (f fakeLocks) GetByUID(_ context.Context, uid string) (*lock.Lock, error) {
	if !f[uid] {
		return nil, lock.ErrNotFound
	}
	return &lock.Lock{ID: uuid.New(), UID: uid}, nil
}

// fakeMessage implements the parts of pahomqtt.Message the handler reads.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakeToken completes immediately when done is set, otherwise never.
type fakeToken struct {
	done bool
	err  error
}

func (t fakeToken) Wait() bool                     { return t.done }
func (t fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.done {
		close(ch)
	}
	return ch
}
func (t fakeToken) Error() error { return t.err }

// fakeClient answers Subscribe with a fixed token; other methods are not used.
type fakeClient struct {
	pahomqtt.Client
	token  fakeToken
	topics []string
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	c.topics = append(c.topics, topic)
	return c.token
}

func newTestSubscriber() (*Subscriber, *fakeRecorder) {
	rec := &fakeRecorder{}
	return newSubscriber(rec, fakeLocks{"L-1": true}, logging.Discard(), 1), rec
}

func TestHandle_RecordsUnderTopicLock(t *testing.T) {
	s, rec := newTestSubscriber()

	err := s.handle("locklog/access/L-1", []byte(`{"card_id":"A","project_id":"P-1","score":4.5,"success":true}`))
	require.NoError(t, err)

	require.Len(t, rec.got, 1)
	assert.Equal(t, "L-1", rec.got[0].Key)
	assert.Equal(t, "A", rec.got[0].CardID)
	assert.Equal(t, 4.5, rec.got[0].Score)
	assert.True(t, rec.got[0].Success)
}

func TestHandle_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{name: "no lock in topic", topic: "locklog/access/", payload: `{}`, wantErr: ErrBadTopic},
		{name: "nested topic", topic: "locklog/access/L-1/extra", payload: `{}`, wantErr: ErrBadTopic},
		{name: "foreign topic", topic: "other/L-1", payload: `{}`, wantErr: ErrBadTopic},
		{name: "unknown lock", topic: "locklog/access/L-9", payload: `{}`, wantErr: ErrUnknownLock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestSubscriber()
			err := s.handle(tt.topic, []byte(tt.payload))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, rec.got)
		})
	}
}

func TestHandle_BadPayload(t *testing.T) {
	s, rec := newTestSubscriber()

	err := s.handle("locklog/access/L-1", []byte(`not json`))
	assert.ErrorContains(t, err, "failed to decode payload")
	assert.Empty(t, rec.got)
}

func TestHandle_KeyInPayloadIgnored(t *testing.T) {
	s, rec := newTestSubscriber()

	require.NoError(t, s.handle("locklog/access/L-1", []byte(`{"key":"L-9","card_id":"A"}`)))
	assert.Equal(t, "L-1", rec.got[0].Key)
}

func TestOnMessage_SwallowsErrors(t *testing.T) {
	s, rec := newTestSubscriber()
	rec.err = errors.New("store down")

	assert.NotPanics(t, func() {
		s.onMessage(nil, fakeMessage{topic: "locklog/access/L-1", payload: []byte(`{}`)})
	})
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(config.MQTTConfig{
		Broker:   "tcp://broker:1883",
		ClientID: "locklog-test",
		Username: "dev",
		Password: "secret",
	})

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.Equal(t, "locklog-test", opts.ClientID)
	assert.Equal(t, "dev", opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.Equal(t, 10*time.Second, opts.ConnectTimeout)
}

func TestNewSubscriber_ClampsQoS(t *testing.T) {
	assert.Equal(t, byte(1), newSubscriber(nil, nil, logging.Discard(), 7).qos)
	assert.Equal(t, byte(2), newSubscriber(nil, nil, logging.Discard(), 2).qos)
}

func TestSubscribe(t *testing.T) {
	tests := []struct {
		name    string
		token   fakeToken
		wantErr string
	}{
		{name: "acknowledged", token: fakeToken{done: true}},
		{name: "rejected by broker", token: fakeToken{done: true, err: errors.New("not authorized")}, wantErr: "not authorized"},
		{name: "never acknowledged", token: fakeToken{}, wantErr: "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSubscriber()
			c := &fakeClient{token: tt.token}

			err := s.subscribe(c)
			assert.Equal(t, []string{topicFilter}, c.topics)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrSubscribeFailed)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
