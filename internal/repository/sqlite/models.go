package sqlite

import (
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

type identityModel struct {
	ID          uuid.UUID         `gorm:"type:text;primaryKey"`
	DisplayName string            `gorm:"not null"`
	Embedding   []byte            `gorm:"not null"` // little-endian float64
	Active      bool              `gorm:"index;not null;default:true"`
	Email       *string
	Phone       *string
	Department  *string
	AccessLevel *int
	PhotoPath   *string
	Extra       map[string]string `gorm:"serializer:json"`
	CreatedAt   time.Time         `gorm:"index"`
	UpdatedAt   time.Time
	LastSeen    *time.Time
}

func (identityModel) TableName() string { return "identities" }

type recognitionLogModel struct {
	ID              uuid.UUID `gorm:"type:text;primaryKey"`
	IdentityID      uuid.UUID `gorm:"type:text;index;not null"`
	ConfidenceScore float64   `gorm:"not null"`
	RecognizedAt    time.Time `gorm:"index;not null"`
}

func (recognitionLogModel) TableName() string { return "recognition_logs" }

func toModel(i *domain.Identity) identityModel {
	return identityModel{
		ID:          i.ID,
		DisplayName: i.DisplayName,
		Embedding:   i.Embedding.Bytes(),
		Active:      i.Active,
		Email:       i.Details.Email,
		Phone:       i.Details.Phone,
		Department:  i.Details.Department,
		AccessLevel: i.Details.AccessLevel,
		PhotoPath:   i.Details.PhotoPath,
		Extra:       i.Details.Extra,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
		LastSeen:    i.LastSeen,
	}
}

func (m identityModel) toDomain() (domain.Identity, error) {
	emb, err := domain.EmbeddingFromBytes(m.Embedding)
	if err != nil {
		return domain.Identity{}, err
	}

	identity := domain.Identity{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Embedding:   emb,
		Active:      m.Active,
		Details: domain.IdentityDetails{
			Email:       m.Email,
			Phone:       m.Phone,
			Department:  m.Department,
			AccessLevel: m.AccessLevel,
			PhotoPath:   m.PhotoPath,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		LastSeen:  m.LastSeen,
	}
	if len(m.Extra) > 0 {
		identity.Details.Extra = m.Extra
	}
	return identity, nil
}
