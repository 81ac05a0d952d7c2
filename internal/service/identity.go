package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/capture"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/match"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/registry"
)

// NearestSearcher ranks stored identities by distance, e.g. with a vector index.
type NearestSearcher interface {
	SearchNearest(ctx context.Context, query domain.Embedding, limit int) ([]domain.NearestMatch, error)
}

// Identification is the decision for one face of a still image, plus the
// nearest identities for comparison.
type Identification struct {
	Match   domain.MatchResult    `json:"match"`
	Nearest []domain.NearestMatch `json:"nearest,omitempty"`
}

// EnrollOutcome reports one file of a bulk enrollment.
type EnrollOutcome struct {
	Path        string
	DisplayName string
	ID          uuid.UUID
	Err         error
}

type EnrollReport struct {
	Enrolled int
	Failed   []EnrollOutcome
}

// IdentityService covers the single-image paths: enrolling from files and
// identifying faces in a still image.
type IdentityService struct {
	registry *registry.Registry
	provider provider.EmbeddingProvider
	searcher NearestSearcher
	engine   *match.Engine
	audit    audit.Logger
	logger   *slog.Logger
}

type Option func(*IdentityService)

// WithAudit records every enrollment, update, deactivation and identification.
func WithAudit(l audit.Logger) Option {
	return func(s *IdentityService) {
		s.audit = l
	}
}

func NewIdentityService(
	reg *registry.Registry,
	p provider.EmbeddingProvider,
	searcher NearestSearcher,
	tolerance float64,
	logger *slog.Logger,
	opts ...Option,
) *IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IdentityService{
		registry: reg,
		provider: p,
		searcher: searcher,
		engine:   match.NewEngine(tolerance, p.Dimension()),
		audit:    &audit.NoOpLogger{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DisplayNameFromPath derives a display name from an image file name.
func DisplayNameFromPath(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.NewReplacer("_", " ").Replace(name))
}

// EnrollFile enrolls the first face found in the image at path. An empty
// name falls back to the file name.
func (s *IdentityService) EnrollFile(ctx context.Context, path, name string, details domain.IdentityDetails) (uuid.UUID, error) {
	if name == "" {
		name = DisplayNameFromPath(path)
	}
	if details.PhotoPath == nil {
		details.PhotoPath = domain.Ptr(path)
	}

	id, err := s.enrollFile(ctx, path, name, details)
	s.record(ctx, audit.Event{
		EventType:   audit.EventIdentityEnrolled,
		IdentityID:  id,
		DisplayName: name,
		Source:      path,
	}, err)
	return id, err
}

func (s *IdentityService) enrollFile(ctx context.Context, path, name string, details domain.IdentityDetails) (uuid.UUID, error) {
	img, err := imaging.Load(path)
	if err != nil {
		return uuid.Nil, err
	}
	return s.registry.Enroll(ctx, img, name, details)
}

// EnrollDir enrolls every image directly under dir, named after its file.
// A failing file is reported and skipped; only listing the directory or a
// cancelled context aborts the run.
func (s *IdentityService) EnrollDir(ctx context.Context, dir string, progress func(EnrollOutcome)) (EnrollReport, error) {
	files, err := capture.ListImages(dir)
	if err != nil {
		return EnrollReport{}, fmt.Errorf("list %s: %w", dir, err)
	}

	var report EnrollReport
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := EnrollOutcome{Path: path, DisplayName: DisplayNameFromPath(path)}
		outcome.ID, outcome.Err = s.EnrollFile(ctx, path, outcome.DisplayName, domain.IdentityDetails{})
		if outcome.Err != nil {
			report.Failed = append(report.Failed, outcome)
			s.logger.Warn("enrollment failed", "path", path, "error", outcome.Err)
		} else {
			report.Enrolled++
		}

		if progress != nil {
			progress(outcome)
		}
	}

	return report, nil
}

// UpdateFromFile changes an identity, re-encoding from imagePath when given.
func (s *IdentityService) UpdateFromFile(ctx context.Context, id uuid.UUID, name *string, imagePath string, details *domain.IdentityDetails) (bool, error) {
	ok, err := s.updateFromFile(ctx, id, name, imagePath, details)

	ev := audit.Event{EventType: audit.EventIdentityUpdated, IdentityID: id, Source: imagePath}
	if name != nil {
		ev.DisplayName = *name
	}
	auditErr := err
	if err == nil && !ok {
		auditErr = domain.ErrUnknownIdentity
	}
	s.record(ctx, ev, auditErr)
	return ok, err
}

func (s *IdentityService) updateFromFile(ctx context.Context, id uuid.UUID, name *string, imagePath string, details *domain.IdentityDetails) (bool, error) {
	req := registry.UpdateRequest{DisplayName: name, Details: details}
	if imagePath != "" {
		img, err := imaging.Load(imagePath)
		if err != nil {
			return false, err
		}
		req.Image = &img
	}
	return s.registry.Update(ctx, id, req)
}

// Deactivate stops id from matching. It returns false when id is unknown.
func (s *IdentityService) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.registry.Deactivate(ctx, id)

	auditErr := err
	if err == nil && !ok {
		auditErr = domain.ErrUnknownIdentity
	}
	s.record(ctx, audit.Event{EventType: audit.EventIdentityDeactivated, IdentityID: id}, auditErr)
	return ok, err
}

// Identify runs detect, encode and match on a still image. nearest > 0 adds
// that many nearest identities per face.
func (s *IdentityService) Identify(ctx context.Context, img imaging.Image, nearest int) ([]Identification, error) {
	out, err := s.identify(ctx, img, nearest)

	matched := 0
	for _, id := range out {
		if id.Match.Matched() {
			matched++
		}
	}
	s.record(ctx, audit.Event{
		EventType: audit.EventImageIdentified,
		Metadata: map[string]string{
			"faces":   strconv.Itoa(len(out)),
			"matched": strconv.Itoa(matched),
		},
	}, err)
	return out, err
}

func (s *IdentityService) identify(ctx context.Context, img imaging.Image, nearest int) ([]Identification, error) {
	faces, err := provider.Extract(ctx, s.provider, s.provider.Normalize(img))
	if err != nil {
		return nil, err
	}

	candidates := s.registry.Snapshot().Candidates()
	out := make([]Identification, 0, len(faces))
	for _, face := range faces {
		result, err := s.engine.Match(face.Embedding, candidates)
		if err != nil {
			return nil, err
		}
		result.Region = face.Region

		id := Identification{Match: result}
		if nearest > 0 {
			id.Nearest, err = s.nearest(ctx, face.Embedding, candidates, nearest)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, id)
	}

	return out, nil
}

func (s *IdentityService) nearest(ctx context.Context, query domain.Embedding, candidates []match.Candidate, limit int) ([]domain.NearestMatch, error) {
	if s.searcher == nil {
		return match.Nearest(query, candidates, limit), nil
	}
	matches, err := s.searcher.SearchNearest(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search nearest: %w", err)
	}
	return matches, nil
}

func (s *IdentityService) record(ctx context.Context, ev audit.Event, err error) {
	ev.Success = err == nil
	if err != nil {
		ev.Error = err.Error()
	}
	if aerr := s.audit.Log(ctx, ev); aerr != nil {
		s.logger.Warn("audit log failed", "event_type", ev.EventType, "error", aerr)
	}
}
