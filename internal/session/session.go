// Package session runs the capture, admission, match and record loop for one
// frame source.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/admission"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/capture"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/match"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/registry"
)

// WorkingSet is the read side of the identity registry.
type WorkingSet interface {
	Snapshot() *registry.Snapshot
}

// Recorder receives recognition events.
type Recorder interface {
	Record(ctx context.Context, event domain.RecognitionEvent) error
}

// FrameHandler is called once per frame read by Run. err is the frame's
// processing error, in which case results is empty.
type FrameHandler func(frame imaging.Image, results []domain.MatchResult, err error)

type Config struct {
	Interval      time.Duration
	Tolerance     float64
	Dimension     int
	MinConfidence float64 // matches below this are returned but not recorded
}

type Session struct {
	id        uuid.UUID
	source    capture.Source
	provider  provider.EmbeddingProvider
	registry  WorkingSet
	recorder  Recorder
	engine    *match.Engine
	admission *admission.Controller
	config    Config
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool
	stats   counters
}

type Option func(*Session)

// WithClock replaces time.Now for event timestamps and admission decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

func New(
	source capture.Source,
	p provider.EmbeddingProvider,
	workingSet WorkingSet,
	recorder Recorder,
	config Config,
	logger *slog.Logger,
	opts ...Option,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Dimension == 0 {
		config.Dimension = p.Dimension()
	}

	s := &Session{
		id:       uuid.New(),
		source:   source,
		provider: p,
		registry: workingSet,
		recorder: recorder,
		engine:   match.NewEngine(config.Tolerance, config.Dimension),
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.With("session_id", s.id)

	extract := func(ctx context.Context, img imaging.Image) ([]domain.DetectedFace, error) {
		return provider.Extract(ctx, s.provider, img)
	}
	s.admission = admission.NewController(config.Interval, extract, admission.WithClock(s.now))

	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Step processes one frame: normalize, admit (detect+encode or cached
// result), match every face against the current working set, and record an
// event for each resolved identity. All results are returned, matched or not.
func (s *Session) Step(ctx context.Context, frame imaging.Image) ([]domain.MatchResult, error) {
	start := time.Now()
	s.stats.framesSeen.Add(1)

	normalized := s.provider.Normalize(frame)

	decision, err := s.admission.Admit(ctx, normalized)
	if decision.Processed {
		s.stats.framesProcessed.Add(1)
		s.stats.lastLatency.Store(int64(time.Since(start)))
	} else {
		s.stats.cacheHits.Add(1)
	}
	if err != nil {
		s.stats.failures.Add(1)
		return nil, err
	}

	candidates := s.registry.Snapshot().Candidates()
	results := make([]domain.MatchResult, 0, len(decision.Faces))
	for _, face := range decision.Faces {
		result, err := s.engine.Match(face.Embedding, candidates)
		if err != nil {
			s.stats.failures.Add(1)
			return nil, fmt.Errorf("match face at %v: %w", face.Region, err)
		}
		result.Region = face.Region
		results = append(results, result)
	}

	s.emit(ctx, results)

	if !decision.Processed {
		s.logger.Debug("served cached faces", "faces", len(results))
	}
	return results, nil
}

func (s *Session) emit(ctx context.Context, results []domain.MatchResult) {
	now := s.now()
	for _, r := range results {
		if !r.Matched() {
			continue
		}
		s.stats.matches.Add(1)

		if s.recorder == nil || !recordable(r, s.engine.Tolerance(), s.config.MinConfidence) {
			continue
		}

		event := domain.RecognitionEvent{
			ID:              uuid.New(),
			IdentityID:      r.IdentityID,
			DisplayName:     r.DisplayName,
			ConfidenceScore: r.Confidence,
			Timestamp:       now,
			SessionID:       s.id,
		}
		// Recording is best effort; a lost event never fails the frame.
		if err := s.recorder.Record(ctx, event); err != nil {
			s.logger.Warn("failed to record recognition event",
				"identity_id", r.IdentityID,
				"error", err,
			)
			continue
		}
		s.stats.events.Add(1)
	}
}

// recordable reports whether a match is logged. A match sitting exactly on
// the tolerance is reported to callers but not recorded.
func recordable(r domain.MatchResult, tolerance, minConfidence float64) bool {
	return r.Distance < tolerance && r.Confidence >= minConfidence
}

// Run opens the source and processes frames until ctx is done, the source is
// exhausted, or a read fails. The source is closed on every exit path.
//
// A frame that fails to process is logged and passed to handler with the
// error; the loop continues with the next frame. Read failures end the
// session with an error wrapping domain.ErrCaptureUnavailable.
func (s *Session) Run(ctx context.Context, handler FrameHandler) (err error) {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session is already running")
	}
	defer s.running.Store(false)

	defer func() {
		if cerr := s.source.Close(); cerr != nil {
			s.logger.Warn("failed to release capture source", "error", cerr)
			if err == nil {
				err = domain.ErrCaptureUnavailable.WithError(cerr)
			}
		}
	}()

	if err := s.source.Open(ctx); err != nil {
		return asCaptureError(err)
	}

	s.admission.Reset()
	s.logger.Info("recognition session started")
	defer func() {
		s.logger.Info("recognition session stopped", "stats", s.Stats())
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := s.source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return asCaptureError(err)
		}

		results, err := s.Step(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("frame processing failed", "error", err)
		}

		if handler != nil {
			handler(frame, results, err)
		}
	}
}

func asCaptureError(err error) error {
	if errors.Is(err, domain.ErrCaptureUnavailable) {
		return err
	}
	return domain.ErrCaptureUnavailable.WithError(err)
}
