package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/events"
)

var (
	ErrQueueFull = errors.New("webhook queue is full")
	ErrStopped   = errors.New("webhook worker is stopped")
)

// Worker is an events.Publisher that queues recognition events and delivers
// them in the background, retrying with exponential backoff. Publish never
// waits on the network, so a slow endpoint cannot hold up event recording.
type Worker struct {
	service      *Service
	maxAttempts  int
	drainTimeout time.Duration
	logger       *slog.Logger
	sleep        func(ctx context.Context, d time.Duration) error

	// ctx is cancelled when Stop gives up on the queue.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	queue   chan job
	stopped bool
	wg      sync.WaitGroup
}

var _ events.Publisher = (*Worker)(nil)

func NewWorker(service *Service, cfg Config, logger *slog.Logger) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service:      service,
		maxAttempts:  cfg.MaxAttempts,
		drainTimeout: cfg.DrainTimeout,
		logger:       logger,
		sleep:        sleepContext,
		ctx:          ctx,
		cancel:       cancel,
		queue:        make(chan job, cfg.QueueSize),
	}
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("webhook worker started")
}

// Stop keeps delivering what is already queued for up to the drain timeout.
// After that the in-flight delivery is aborted and the rest is dropped.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.queue)
	w.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(w.drainTimeout)
	defer timer.Stop()
	select {
	case <-finished:
	case <-timer.C:
		w.logger.Warn("webhook drain timed out", "timeout", w.drainTimeout, "pending", len(w.queue))
		w.cancel()
		<-finished
	}
	w.cancel()
	w.logger.Info("webhook worker stopped")
}

func (w *Worker) Publish(_ context.Context, event domain.RecognitionEvent) error {
	payload, err := json.Marshal(EventPayload{
		Type:      EventRecognition,
		Data:      event,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}

	select {
	case w.queue <- job{eventType: EventRecognition, payload: payload}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	var dropped int
	for j := range w.queue {
		if w.ctx.Err() != nil {
			dropped++
			continue
		}
		w.deliver(j)
	}
	if dropped > 0 {
		w.logger.Warn("webhook events dropped on shutdown", "count", dropped)
	}
}

func (w *Worker) deliver(j job) {
	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err = w.service.Send(w.ctx, j.eventType, j.payload); err == nil {
			return
		}
		if w.ctx.Err() != nil {
			w.logger.Warn("webhook delivery aborted", "error", err)
			return
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			w.logger.Warn("webhook rejected event", "status", se.StatusCode)
			return
		}
		if attempt < w.maxAttempts {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			w.logger.Debug("webhook delivery scheduled for retry",
				"attempt", attempt,
				"next_retry_in", delay,
				"error", err,
			)
			if w.sleep(w.ctx, delay) != nil {
				w.logger.Warn("webhook delivery aborted", "error", err)
				return
			}
		}
	}
	w.logger.Warn("webhook delivery failed", "attempts", w.maxAttempts, "error", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
