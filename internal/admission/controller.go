// Package admission throttles the expensive detect+encode path of a
// recognition session to at most one run per interval.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
)

const DefaultInterval = 500 * time.Millisecond

type State int

const (
	// Idle has no cached result yet; every frame is processed.
	Idle State = iota
	// Holding serves the cached result until the interval elapses.
	Holding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Holding:
		return "holding"
	default:
		return "unknown"
	}
}

// Extractor runs detection and encoding on a normalized frame.
type Extractor func(ctx context.Context, img imaging.Image) ([]domain.DetectedFace, error)

// Decision is the outcome for one frame.
type Decision struct {
	Faces     []domain.DetectedFace
	Processed bool
}

// Controller is the per-session admission state. Time-based only: frame
// content, motion and face count are never considered.
type Controller struct {
	interval time.Duration
	extract  Extractor
	now      func() time.Time

	mu              sync.Mutex
	state           State
	lastProcessedAt time.Time
	cached          []domain.DetectedFace
}

type Option func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func NewController(interval time.Duration, extract Extractor, opts ...Option) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Controller{
		interval: interval,
		extract:  extract,
		now:      time.Now,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Admit returns the faces for img, running the extractor only when the
// controller is Idle or the interval has elapsed since the last run.
//
// A failed run is returned as an error and leaves the cache untouched. It
// still counts as a run, so the following frames inside the interval are
// served the previous result instead of retrying at frame rate.
func (c *Controller) Admit(ctx context.Context, img imaging.Image) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.state == Holding && now.Sub(c.lastProcessedAt) < c.interval {
		return Decision{Faces: domain.CloneFaces(c.cached)}, nil
	}

	faces, err := c.extract(ctx, img)
	if err != nil {
		if c.state == Holding {
			c.lastProcessedAt = now
		}
		return Decision{Processed: true}, err
	}

	c.cached = domain.CloneFaces(faces)
	c.lastProcessedAt = now
	c.state = Holding

	return Decision{Faces: domain.CloneFaces(c.cached), Processed: true}, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) LastProcessedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProcessedAt
}

// Reset drops the cache and returns to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
	c.cached = nil
	c.lastProcessedAt = time.Time{}
}
