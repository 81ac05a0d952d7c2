// Package events persists recognition events off the recognition loop and
// fans them out to publishers.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

var ErrRecorderStopped = errors.New("event recorder stopped")

// LogStore appends recognition events to persistent storage.
type LogStore interface {
	AddLog(ctx context.Context, identityID uuid.UUID, score float64, timestamp time.Time) (uuid.UUID, error)
}

// Publisher forwards a persisted event to an external system.
type Publisher interface {
	Publish(ctx context.Context, event domain.RecognitionEvent) error
}

// Recorder handles async persistence of recognition events in batches
type Recorder struct {
	store      LogStore
	publishers []Publisher
	logger     *slog.Logger

	// Channel with buffer so the recognition loop rarely waits on storage
	eventCh chan domain.RecognitionEvent

	batchInterval  time.Duration
	maxBatchSize   int
	writeTimeout   time.Duration
	publishTimeout time.Duration

	stats Stats

	// Lifecycle
	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Stats are cumulative counters since the recorder was created.
type Stats struct {
	Recorded  atomic.Int64
	Failed    atomic.Int64
	Published atomic.Int64
}

type StatsSnapshot struct {
	Recorded  int64 `json:"recorded"`
	Failed    int64 `json:"failed"`
	Published int64 `json:"published"`
}

// Config holds configuration for the recorder
type Config struct {
	BufferSize     int           // Channel buffer size (default: 256)
	BatchInterval  time.Duration // Interval to flush a partial batch (default: 1 second)
	MaxBatchSize   int           // Max events per batch (default: 50)
	WriteTimeout   time.Duration // Timeout for writing one batch (default: 10 seconds)
	PublishTimeout time.Duration // Timeout for one publisher and one event (default: 2 seconds)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:     256,
		BatchInterval:  time.Second,
		MaxBatchSize:   50,
		WriteTimeout:   10 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

func NewRecorder(store LogStore, logger *slog.Logger, config Config, publishers ...Publisher) *Recorder {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.BatchInterval <= 0 {
		config.BatchInterval = defaults.BatchInterval
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = defaults.MaxBatchSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		store:          store,
		publishers:     publishers,
		logger:         logger,
		eventCh:        make(chan domain.RecognitionEvent, config.BufferSize),
		batchInterval:  config.BatchInterval,
		maxBatchSize:   config.MaxBatchSize,
		writeTimeout:   config.WriteTimeout,
		publishTimeout: config.PublishTimeout,
		done:           make(chan struct{}),
	}
}

// Start begins the background worker
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
	r.logger.Info("event recorder started",
		"buffer_size", cap(r.eventCh),
		"batch_interval", r.batchInterval,
		"publishers", len(r.publishers),
	)
}

// Stop flushes pending events and shuts down the worker
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("event recorder stopped", "recorded", r.stats.Recorded.Load(), "failed", r.stats.Failed.Load())
}

// Record queues an event. It waits while the buffer is full instead of
// dropping, since recognition events are an append-only audit trail.
func (r *Recorder) Record(ctx context.Context, event domain.RecognitionEvent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrRecorderStopped
	}

	select {
	case r.eventCh <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) Stats() StatsSnapshot {
	return StatsSnapshot{
		Recorded:  r.stats.Recorded.Load(),
		Failed:    r.stats.Failed.Load(),
		Published: r.stats.Published.Load(),
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.batchInterval)
	defer ticker.Stop()

	var batch []domain.RecognitionEvent

	for {
		select {
		case <-r.done:
			// no sender can be active once done is closed
			for {
				select {
				case event := <-r.eventCh:
					batch = append(batch, event)
				default:
					r.processBatch(batch)
					return
				}
			}

		case event := <-r.eventCh:
			batch = append(batch, event)
			if len(batch) >= r.maxBatchSize {
				r.processBatch(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.processBatch(batch)
				batch = nil
			}
		}
	}
}

// processBatch persists the whole batch before any publisher runs, so a slow
// publisher cannot eat into the write deadline.
func (r *Recorder) processBatch(batch []domain.RecognitionEvent) {
	if len(batch) == 0 {
		return
	}

	recorded := r.persist(batch)
	for _, event := range recorded {
		r.publish(event)
	}

	if len(recorded) > 0 {
		r.logger.Debug("batch recognition events recorded", "count", len(recorded))
	}
}

func (r *Recorder) persist(batch []domain.RecognitionEvent) []domain.RecognitionEvent {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	recorded := make([]domain.RecognitionEvent, 0, len(batch))
	for _, event := range batch {
		id, err := r.store.AddLog(ctx, event.IdentityID, event.ConfidenceScore, event.Timestamp)
		if err != nil {
			r.stats.Failed.Add(1)
			r.logger.Error("failed to record recognition event",
				"identity_id", event.IdentityID,
				"error", err,
			)
			continue
		}
		event.ID = id
		r.stats.Recorded.Add(1)
		recorded = append(recorded, event)
	}
	return recorded
}

func (r *Recorder) publish(event domain.RecognitionEvent) {
	for _, p := range r.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), r.publishTimeout)
		err := p.Publish(ctx, event)
		cancel()
		if err != nil {
			r.logger.Warn("failed to publish recognition event", "event_id", event.ID, "error", err)
			continue
		}
		r.stats.Published.Add(1)
	}
}
