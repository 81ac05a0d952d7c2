package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil))), &buf
}

func TestSlogLogger_Log(t *testing.T) {
	tests := []struct {
		name          string
		event         Event
		wantEventType string
		wantSuccess   bool
		wantHasError  bool
	}{
		{
			name: "identity enrolled",
			event: Event{
				EventType:   EventIdentityEnrolled,
				IdentityID:  uuid.New(),
				DisplayName: "Alice",
				Source:      "photos/alice.jpg",
				Success:     true,
			},
			wantEventType: string(EventIdentityEnrolled),
			wantSuccess:   true,
		},
		{
			name: "failed enrollment",
			event: Event{
				EventType: EventIdentityEnrolled,
				Source:    "photos/blank.jpg",
				Success:   false,
				Error:     "No face detected in the image",
			},
			wantEventType: string(EventIdentityEnrolled),
			wantSuccess:   false,
			wantHasError:  true,
		},
		{
			name: "identity deactivated",
			event: Event{
				EventType:  EventIdentityDeactivated,
				IdentityID: uuid.New(),
				Success:    true,
			},
			wantEventType: string(EventIdentityDeactivated),
			wantSuccess:   true,
		},
		{
			name: "image identified with metadata",
			event: Event{
				EventType: EventImageIdentified,
				Success:   true,
				Metadata:  map[string]string{"faces": "2"},
			},
			wantEventType: string(EventImageIdentified),
			wantSuccess:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := captureLogger()
			require.NoError(t, logger.Log(context.Background(), tt.event))

			var line map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, "audit_event", line["msg"])
			assert.Equal(t, "audit", line["component"])
			assert.Equal(t, tt.wantEventType, line["event_type"])
			assert.Equal(t, tt.wantSuccess, line["success"])

			var data Event
			require.NoError(t, json.Unmarshal([]byte(line["event_data"].(string)), &data))
			assert.NotEqual(t, uuid.Nil, data.ID)
			assert.False(t, data.Timestamp.IsZero())
			assert.Equal(t, tt.wantHasError, data.Error != "")
			assert.Equal(t, tt.event.IdentityID, data.IdentityID)
		})
	}
}

func TestSlogLogger_KeepsGivenIDAndTimestamp(t *testing.T) {
	logger, buf := captureLogger()
	id := uuid.New()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, logger.Log(context.Background(), Event{ID: id, Timestamp: ts, EventType: EventIdentityUpdated, Success: true}))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, id.String(), line["event_id"])

	var data Event
	require.NoError(t, json.Unmarshal([]byte(line["event_data"].(string)), &data))
	assert.True(t, ts.Equal(data.Timestamp))
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = &NoOpLogger{}
	assert.NoError(t, l.Log(context.Background(), Event{EventType: EventIdentityEnrolled}))
}
