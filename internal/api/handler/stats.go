package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/events"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/registry"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/session"
)

type SessionSource interface {
	Stats() session.Stats
}

type RecorderSource interface {
	Stats() events.StatsSnapshot
}

type WorkingSet interface {
	Snapshot() *registry.Snapshot
}

type RegistryStats struct {
	Identities int       `json:"identities"`
	Version    uint64    `json:"version"`
	BuiltAt    time.Time `json:"built_at"`
}

type StatsResponse struct {
	Session   *session.Stats        `json:"session,omitempty"`
	Events    *events.StatsSnapshot `json:"events,omitempty"`
	Registry  *RegistryStats        `json:"registry,omitempty"`
	System    SystemStats           `json:"system"`
	Timestamp time.Time             `json:"timestamp"`
}

// StatsHandler serves pipeline counters. Any source may be nil, e.g. when
// no session is running in this process.
type StatsHandler struct {
	session  SessionSource
	recorder RecorderSource
	registry WorkingSet
	system   *SystemSampler
}

func NewStatsHandler(s SessionSource, r RecorderSource, ws WorkingSet, system *SystemSampler) *StatsHandler {
	return &StatsHandler{session: s, recorder: r, registry: ws, system: system}
}

// Stats handles GET /stats
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	resp := StatsResponse{Timestamp: time.Now().UTC()}

	if h.session != nil {
		st := h.session.Stats()
		resp.Session = &st
	}
	if h.recorder != nil {
		st := h.recorder.Stats()
		resp.Events = &st
	}
	if h.registry != nil {
		snap := h.registry.Snapshot()
		resp.Registry = &RegistryStats{
			Identities: snap.Len(),
			Version:    snap.Version(),
			BuiltAt:    snap.BuiltAt(),
		}
	}
	if h.system != nil {
		resp.System = h.system.Sample(c.UserContext())
	}

	return c.JSON(resp)
}
