package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultAccessLevel = 1

// Identity is an enrolled person.
type Identity struct {
	ID          uuid.UUID       `json:"id"`
	DisplayName string          `json:"display_name"`
	Embedding   Embedding       `json:"-"`
	Active      bool            `json:"active"`
	Details     IdentityDetails `json:"details"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	LastSeen    *time.Time      `json:"last_seen,omitempty"`
}

// IdentityDetails holds the optional descriptive fields of an identity. A nil
// pointer means the field was never set.
type IdentityDetails struct {
	Email       *string           `json:"email,omitempty"`
	Phone       *string           `json:"phone,omitempty"`
	Department  *string           `json:"department,omitempty"`
	AccessLevel *int              `json:"access_level,omitempty"`
	PhotoPath   *string           `json:"photo_path,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

func (d IdentityDetails) Validate() error {
	if d.Email != nil && !strings.Contains(*d.Email, "@") {
		return ErrInvalidIdentity.WithError(fmt.Errorf("email %q is not an address", *d.Email))
	}
	if d.AccessLevel != nil && *d.AccessLevel < 0 {
		return ErrInvalidIdentity.WithError(fmt.Errorf("access level %d is negative", *d.AccessLevel))
	}
	return nil
}

func (d IdentityDetails) Level() int {
	if d.AccessLevel == nil {
		return DefaultAccessLevel
	}
	return *d.AccessLevel
}

// Merge overlays the fields set in patch onto d.
func (d IdentityDetails) Merge(patch IdentityDetails) IdentityDetails {
	out := d
	if patch.Email != nil {
		out.Email = patch.Email
	}
	if patch.Phone != nil {
		out.Phone = patch.Phone
	}
	if patch.Department != nil {
		out.Department = patch.Department
	}
	if patch.AccessLevel != nil {
		out.AccessLevel = patch.AccessLevel
	}
	if patch.PhotoPath != nil {
		out.PhotoPath = patch.PhotoPath
	}
	if len(patch.Extra) > 0 {
		merged := make(map[string]string, len(d.Extra)+len(patch.Extra))
		for k, v := range d.Extra {
			merged[k] = v
		}
		for k, v := range patch.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// Validate checks an identity before it crosses into storage.
func (i *Identity) Validate() error {
	if strings.TrimSpace(i.DisplayName) == "" {
		return ErrInvalidIdentity.WithError(fmt.Errorf("display name is empty"))
	}
	if len(i.Embedding) == 0 {
		return ErrInvalidEmbedding.WithError(fmt.Errorf("identity %q has no embedding", i.DisplayName))
	}
	return i.Details.Validate()
}

// IdentityUpdate describes a partial change. Nil fields are left untouched.
type IdentityUpdate struct {
	DisplayName *string
	Embedding   Embedding
	Details     *IdentityDetails
}

func (u IdentityUpdate) Empty() bool {
	return u.DisplayName == nil && u.Embedding == nil && u.Details == nil
}

// Apply returns a copy of identity with the update applied.
func (u IdentityUpdate) Apply(identity Identity) Identity {
	out := identity
	if u.DisplayName != nil {
		out.DisplayName = *u.DisplayName
	}
	if u.Embedding != nil {
		out.Embedding = u.Embedding.Clone()
	}
	if u.Details != nil {
		out.Details = identity.Details.Merge(*u.Details)
	}
	return out
}

// Ptr is a helper for building optional fields.
func Ptr[T any](v T) *T {
	return &v
}
