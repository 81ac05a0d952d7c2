package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// isUniqueViolation checks if the error is a unique constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "23505") ||
		strings.Contains(errMsg, "duplicate key")
}

// toVector builds the pgvector search column. The exact embedding lives in
// the BYTEA column; the vector is float32 and only feeds nearest-neighbour
// diagnostics.
func toVector(e domain.Embedding) *pgvector.Vector {
	if len(e) == 0 {
		return nil
	}
	vec := pgvector.NewVector(e.Float32())
	return &vec
}
