package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connected    bool
	token        paho.Token
	messages     []published
	disconnected bool
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) { c.disconnected = true }

func TestPublisher_Publish(t *testing.T) {
	client := &fakeClient{connected: true, token: newToken(nil, true)}
	p := NewPublisher(client, Config{Topic: "facewatch/recognitions", QoS: 1}, nil)

	ev := domain.RecognitionEvent{
		ID:              uuid.New(),
		IdentityID:      uuid.New(),
		DisplayName:     "Alice",
		ConfidenceScore: 0.61,
		Timestamp:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, client.messages, 1)

	msg := client.messages[0]
	assert.Equal(t, "facewatch/recognitions/"+ev.IdentityID.String(), msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var got domain.RecognitionEvent
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, ev.IdentityID, got.IdentityID)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, 0.61, got.ConfidenceScore)
}

func TestPublisher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeClient
		ctx     func() context.Context
		wantErr error
	}{
		{
			name:    "not connected",
			client:  &fakeClient{connected: false},
			ctx:     context.Background,
			wantErr: ErrNotConnected,
		},
		{
			name:    "broker error",
			client:  &fakeClient{connected: true, token: newToken(errors.New("not authorized"), true)},
			ctx:     context.Background,
			wantErr: nil,
		},
		{
			name:   "context cancelled while waiting",
			client: &fakeClient{connected: true, token: newToken(nil, false)},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPublisher(tt.client, Config{Topic: "t"}, nil)
			err := p.Publish(tt.ctx(), domain.RecognitionEvent{IdentityID: uuid.New()})

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPublisher_Close(t *testing.T) {
	client := &fakeClient{}
	require.NoError(t, NewPublisher(client, Config{}, nil).Close())
	assert.True(t, client.disconnected)
}
