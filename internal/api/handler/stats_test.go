package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/events"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/registry"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/session"
)

type fixedSession session.Stats

func (f fixedSession) Stats() session.Stats { return session.Stats(f) }

type fixedRecorder events.StatsSnapshot

func (f fixedRecorder) Stats() events.StatsSnapshot { return events.StatsSnapshot(f) }

type fixedSet struct{ snap *registry.Snapshot }

func (f fixedSet) Snapshot() *registry.Snapshot { return f.snap }

func getStats(t *testing.T, h *StatsHandler) StatsResponse {
	t.Helper()
	app := fiber.New()
	app.Get("/stats", h.Stats)

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestStatsHandler_AllSources(t *testing.T) {
	set := fixedSet{snap: registry.NewSnapshot(
		registry.Entry{ID: uuid.New(), DisplayName: "Alice", Embedding: domain.Embedding{0, 1}},
		registry.Entry{ID: uuid.New(), DisplayName: "Bob", Embedding: domain.Embedding{1, 0}},
	)}
	h := NewStatsHandler(
		fixedSession{FramesSeen: 10, FramesProcessed: 4, CacheHits: 6, Matches: 3, Running: true, AdmissionState: "holding"},
		fixedRecorder{Recorded: 3, Published: 2},
		set,
		NewSystemSampler(nil),
	)

	out := getStats(t, h)

	require.NotNil(t, out.Session)
	assert.Equal(t, int64(10), out.Session.FramesSeen)
	assert.Equal(t, int64(6), out.Session.CacheHits)
	assert.True(t, out.Session.Running)
	assert.Equal(t, "holding", out.Session.AdmissionState)

	require.NotNil(t, out.Events)
	assert.Equal(t, int64(3), out.Events.Recorded)
	assert.Equal(t, int64(2), out.Events.Published)

	require.NotNil(t, out.Registry)
	assert.Equal(t, 2, out.Registry.Identities)

	assert.Positive(t, out.System.NumCPU)
	assert.Positive(t, out.System.Goroutines)
	assert.False(t, out.Timestamp.IsZero())
}

func TestStatsHandler_NoSources(t *testing.T) {
	out := getStats(t, NewStatsHandler(nil, nil, nil, nil))

	assert.Nil(t, out.Session)
	assert.Nil(t, out.Events)
	assert.Nil(t, out.Registry)
	assert.Zero(t, out.System.NumCPU)
}

func TestSystemSampler_Sample(t *testing.T) {
	stats := NewSystemSampler(nil).Sample(context.Background())

	assert.Positive(t, stats.NumCPU)
	assert.Positive(t, stats.HeapAlloc)
	assert.GreaterOrEqual(t, stats.MemoryPercent, 0.0)
}
