// Package sqlite stores identities and recognition logs in a single SQLite
// file through gorm, for deployments without PostgreSQL.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/match"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// slogWriter routes gorm's logger to slog.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

// Open opens (creating if needed) the database at path and migrates the
// schema. Use ":memory:" for a throwaway database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	gormLogger := gormlog.New(slogWriter{logger: logger}, gormlog.Config{
		SlowThreshold:             2 * time.Second,
		LogLevel:                  gormlog.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		// timestamps are stored as text, so a fixed zone keeps them sortable
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sqlite handle: %w", err)
	}
	// one connection: SQLite has a single writer and ":memory:" is per connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&identityModel{}, &recognitionLogModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	logger.Info("sqlite database ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Add(ctx context.Context, identity *domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	identity.Active = true
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	identity.CreatedAt = identity.CreatedAt.UTC()
	identity.UpdatedAt = identity.CreatedAt

	m := toModel(identity)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrInvalidIdentity.WithError(fmt.Errorf("identity %s already exists", identity.ID))
		}
		return fmt.Errorf("add identity: %w", err)
	}

	identity.CreatedAt = m.CreatedAt
	identity.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	var m identityModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by id: %w", err)
	}

	identity, err := m.toDomain()
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", id, err)
	}
	return &identity, nil
}

// GetAllActive returns active identities in enrollment order.
func (s *Store) GetAllActive(ctx context.Context) ([]domain.Identity, error) {
	return s.list(ctx, s.db.WithContext(ctx).Where("active = ?", true))
}

// List returns every identity, inactive ones included.
func (s *Store) List(ctx context.Context) ([]domain.Identity, error) {
	return s.list(ctx, s.db.WithContext(ctx))
}

func (s *Store) list(ctx context.Context, q *gorm.DB) ([]domain.Identity, error) {
	var models []identityModel
	if err := q.Order("created_at, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	out := make([]domain.Identity, 0, len(models))
	for _, m := range models {
		identity, err := m.toDomain()
		if err != nil {
			return nil, fmt.Errorf("identity %s: %w", m.ID, err)
		}
		out = append(out, identity)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, update domain.IdentityUpdate) (bool, error) {
	found := true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m identityModel
		err := tx.First(&m, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}

		current, err := m.toDomain()
		if err != nil {
			return err
		}
		next := update.Apply(current)
		if err := next.Validate(); err != nil {
			return err
		}

		updated := toModel(&next)
		return tx.Save(&updated).Error
	})
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return false, err
		}
		return false, fmt.Errorf("update identity: %w", err)
	}
	return found, nil
}

func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).Model(&identityModel{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return false, fmt.Errorf("deactivate identity: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// SearchNearest ranks active identities by exact Euclidean distance.
func (s *Store) SearchNearest(ctx context.Context, query domain.Embedding, limit int) ([]domain.NearestMatch, error) {
	identities, err := s.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]match.Candidate, len(identities))
	for i, id := range identities {
		candidates[i] = match.Candidate{IdentityID: id.ID, DisplayName: id.DisplayName, Embedding: id.Embedding}
	}
	return match.Nearest(query, candidates, limit), nil
}

// AddLog appends a recognition event and stamps the identity's last_seen.
func (s *Store) AddLog(ctx context.Context, identityID uuid.UUID, score float64, timestamp time.Time) (uuid.UUID, error) {
	entry := recognitionLogModel{
		ID:              uuid.New(),
		IdentityID:      identityID,
		ConfidenceScore: score,
		RecognizedAt:    timestamp.UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&identityModel{}).
			Where("id = ? AND (last_seen IS NULL OR last_seen < ?)", identityID, entry.RecognizedAt).
			Update("last_seen", entry.RecognizedAt).Error
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("add recognition log: %w", err)
	}
	return entry.ID, nil
}

type logRow struct {
	ID              uuid.UUID
	IdentityID      uuid.UUID
	DisplayName     string
	ConfidenceScore float64
	RecognizedAt    time.Time
}

// GetLogs returns the events recorded in [start, end], oldest first.
func (s *Store) GetLogs(ctx context.Context, start, end time.Time) ([]domain.RecognitionEvent, error) {
	var rows []logRow
	err := s.db.WithContext(ctx).
		Table("recognition_logs AS l").
		Select("l.id, l.identity_id, i.display_name, l.confidence_score, l.recognized_at").
		Joins("JOIN identities i ON i.id = l.identity_id").
		Where("l.recognized_at BETWEEN ? AND ?", start.UTC(), end.UTC()).
		Order("l.recognized_at, l.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get recognition logs: %w", err)
	}

	events := make([]domain.RecognitionEvent, len(rows))
	for i, r := range rows {
		events[i] = domain.RecognitionEvent{
			ID:              r.ID,
			IdentityID:      r.IdentityID,
			DisplayName:     r.DisplayName,
			ConfidenceScore: r.ConfidenceScore,
			Timestamp:       r.RecognizedAt,
		}
	}
	return events, nil
}
