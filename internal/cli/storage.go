package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/database"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/registry"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/repository"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/repository/sqlite"
)

type identityStore interface {
	registry.Store
	List(ctx context.Context) ([]domain.Identity, error)
	SearchNearest(ctx context.Context, query domain.Embedding, limit int) ([]domain.NearestMatch, error)
}

type logStore interface {
	AddLog(ctx context.Context, identityID uuid.UUID, score float64, timestamp time.Time) (uuid.UUID, error)
	GetLogs(ctx context.Context, start, end time.Time) ([]domain.RecognitionEvent, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// storage is one backend seen through the interfaces the commands need.
type storage struct {
	identities identityStore
	logs       logStore
	db         pinger
	close      func() error
}

func (s *storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

type poolPinger struct{ pool *pgxpool.Pool }

func (p poolPinger) Ping(ctx context.Context) error {
	return database.HealthCheck(ctx, p.pool)
}

// openStorage picks PostgreSQL or SQLite from DATABASE_URL. The PostgreSQL
// schema is owned by cmd/migrate; SQLite migrates itself on open.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.DatabaseDriver() {
	case config.DriverPostgres:
		poolCfg := database.DefaultPoolConfig(cfg.DatabaseURL)
		if cfg.DBMaxConns > 0 {
			poolCfg.MaxConns = cfg.DBMaxConns
		}
		pool, err := database.NewPgxPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		logger.Debug("storage opened", "driver", config.DriverPostgres)
		return &storage{
			identities: repository.NewIdentityRepository(pool),
			logs:       repository.NewRecognitionLogRepository(pool),
			db:         poolPinger{pool},
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	default:
		store, err := sqlite.Open(cfg.SQLitePath(), logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		logger.Debug("storage opened", "driver", config.DriverSQLite, "path", cfg.SQLitePath())
		return &storage{
			identities: store,
			logs:       store,
			db:         store,
			close:      store.Close,
		}, nil
	}
}
