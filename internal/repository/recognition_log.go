package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

type RecognitionLogRepository struct {
	pool PgxPool
}

func NewRecognitionLogRepository(pool PgxPool) *RecognitionLogRepository {
	return &RecognitionLogRepository{pool: pool}
}

// AddLog appends a recognition event and stamps the identity's last_seen in
// the same transaction.
func (r *RecognitionLogRepository) AddLog(ctx context.Context, identityID uuid.UUID, score float64, timestamp time.Time) (uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin add log: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO recognition_logs (id, identity_id, confidence_score, recognized_at)
		VALUES ($1, $2, $3, $4)
	`, id, identityID, score, timestamp); err != nil {
		return uuid.Nil, fmt.Errorf("add recognition log: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE identities
		SET last_seen = GREATEST(COALESCE(last_seen, $2), $2)
		WHERE id = $1
	`, identityID, timestamp); err != nil {
		return uuid.Nil, fmt.Errorf("stamp last seen: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit add log: %w", err)
	}
	return id, nil
}

// GetLogs returns the events recorded in [start, end], oldest first.
func (r *RecognitionLogRepository) GetLogs(ctx context.Context, start, end time.Time) ([]domain.RecognitionEvent, error) {
	query := `
		SELECT l.id, l.identity_id, i.display_name, l.confidence_score, l.recognized_at
		FROM recognition_logs l
		JOIN identities i ON i.id = l.identity_id
		WHERE l.recognized_at BETWEEN $1 AND $2
		ORDER BY l.recognized_at, l.id
	`

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get recognition logs: %w", err)
	}
	defer rows.Close()

	var events []domain.RecognitionEvent
	for rows.Next() {
		var ev domain.RecognitionEvent
		if err := rows.Scan(&ev.ID, &ev.IdentityID, &ev.DisplayName, &ev.ConfidenceScore, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan recognition log: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get recognition logs: %w", err)
	}
	return events, nil
}
