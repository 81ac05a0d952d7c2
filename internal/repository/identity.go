package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

const identityColumns = `id, display_name, embedding, active, email, phone, department,
		access_level, photo_path, extra, created_at, updated_at, last_seen`

type IdentityRepository struct {
	pool PgxPool
}

func NewIdentityRepository(pool PgxPool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Add inserts a new active identity. ID is generated when empty; CreatedAt
// and UpdatedAt are set from the database clock.
func (r *IdentityRepository) Add(ctx context.Context, identity *domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO identities (
			id, display_name, embedding, embedding_vec, active, email, phone,
			department, access_level, photo_path, extra, created_at, updated_at
		) VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}

	d := identity.Details
	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.DisplayName,
		identity.Embedding.Bytes(),
		toVector(identity.Embedding),
		d.Email,
		d.Phone,
		d.Department,
		d.AccessLevel,
		d.PhotoPath,
		extraOrEmpty(d.Extra),
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvalidIdentity.WithError(fmt.Errorf("identity %s already exists", identity.ID))
		}
		return fmt.Errorf("add identity: %w", err)
	}

	identity.Active = true
	return nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by id: %w", err)
	}
	return identity, nil
}

// GetAllActive returns active identities in enrollment order. This order is
// the match engine's iteration order.
func (r *IdentityRepository) GetAllActive(ctx context.Context) ([]domain.Identity, error) {
	return r.list(ctx, `SELECT `+identityColumns+` FROM identities WHERE active ORDER BY created_at, id`)
}

// List returns every identity, inactive ones included.
func (r *IdentityRepository) List(ctx context.Context) ([]domain.Identity, error) {
	return r.list(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY created_at, id`)
}

func (r *IdentityRepository) list(ctx context.Context, query string) ([]domain.Identity, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return identities, nil
}

// Update applies a partial change under a row lock. It returns false when the
// identity does not exist.
func (r *IdentityRepository) Update(ctx context.Context, id uuid.UUID, update domain.IdentityUpdate) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin update identity: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanIdentity(tx.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock identity: %w", err)
	}

	next := update.Apply(*current)
	if err := next.Validate(); err != nil {
		return false, err
	}

	query := `
		UPDATE identities
		SET display_name = $2, embedding = $3, embedding_vec = $4, email = $5, phone = $6,
		    department = $7, access_level = $8, photo_path = $9, extra = $10, updated_at = NOW()
		WHERE id = $1
	`

	d := next.Details
	if _, err := tx.Exec(ctx, query,
		id,
		next.DisplayName,
		next.Embedding.Bytes(),
		toVector(next.Embedding),
		d.Email,
		d.Phone,
		d.Department,
		d.AccessLevel,
		d.PhotoPath,
		extraOrEmpty(d.Extra),
	); err != nil {
		return false, fmt.Errorf("update identity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit update identity: %w", err)
	}
	return true, nil
}

// Deactivate flips active off. The row and its recognition logs are kept.
func (r *IdentityRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE identities SET active = FALSE, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("deactivate identity: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// SearchNearest ranks active identities by L2 distance to query with
// pgvector's <-> operator. Distances are computed on float32 vectors, so they can
// differ from the exact in-memory distance in the last digits.
func (r *IdentityRepository) SearchNearest(ctx context.Context, query domain.Embedding, limit int) ([]domain.NearestMatch, error) {
	stmt := `
		SELECT id, display_name, embedding_vec <-> $1 AS distance
		FROM identities
		WHERE active AND vector_dims(embedding_vec) = $2
		ORDER BY distance
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, stmt, toVector(query), len(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search nearest identities: %w", err)
	}
	defer rows.Close()

	var matches []domain.NearestMatch
	for rows.Next() {
		var m domain.NearestMatch
		if err := rows.Scan(&m.IdentityID, &m.DisplayName, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan nearest identity: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search nearest identities: %w", err)
	}
	return matches, nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity  domain.Identity
		embedding []byte
		extra     map[string]string
		lastSeen  *time.Time
	)

	err := row.Scan(
		&identity.ID,
		&identity.DisplayName,
		&embedding,
		&identity.Active,
		&identity.Details.Email,
		&identity.Details.Phone,
		&identity.Details.Department,
		&identity.Details.AccessLevel,
		&identity.Details.PhotoPath,
		&extra,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&lastSeen,
	)
	if err != nil {
		return nil, err
	}

	identity.Embedding, err = domain.EmbeddingFromBytes(embedding)
	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", identity.ID, err)
	}
	if len(extra) > 0 {
		identity.Details.Extra = extra
	}
	identity.LastSeen = lastSeen

	return &identity, nil
}

func extraOrEmpty(extra map[string]string) map[string]string {
	if extra == nil {
		return map[string]string{}
	}
	return extra
}
