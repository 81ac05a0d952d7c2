package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityDetails_Validate(t *testing.T) {
	tests := []struct {
		name    string
		details IdentityDetails
		wantErr bool
	}{
		{"empty", IdentityDetails{}, false},
		{"valid email", IdentityDetails{Email: Ptr("alice@example.com")}, false},
		{"invalid email", IdentityDetails{Email: Ptr("alice")}, true},
		{"zero access level", IdentityDetails{AccessLevel: Ptr(0)}, false},
		{"negative access level", IdentityDetails{AccessLevel: Ptr(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.details.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentity)
				assert.True(t, IsUserCorrectable(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIdentityDetails_Level(t *testing.T) {
	assert.Equal(t, DefaultAccessLevel, IdentityDetails{}.Level())
	assert.Equal(t, 3, IdentityDetails{AccessLevel: Ptr(3)}.Level())
}

func TestIdentityDetails_Merge(t *testing.T) {
	base := IdentityDetails{
		Email:      Ptr("a@b.c"),
		Department: Ptr("R&D"),
		Extra:      map[string]string{"badge": "1"},
	}
	patch := IdentityDetails{
		Department: Ptr("Ops"),
		Extra:      map[string]string{"shift": "night"},
	}

	got := base.Merge(patch)

	assert.Equal(t, "a@b.c", *got.Email)
	assert.Equal(t, "Ops", *got.Department)
	assert.Equal(t, map[string]string{"badge": "1", "shift": "night"}, got.Extra)
	assert.Equal(t, map[string]string{"badge": "1"}, base.Extra, "base must not be mutated")
}

func TestIdentity_Validate(t *testing.T) {
	tests := []struct {
		name     string
		identity Identity
		wantErr  error
	}{
		{"valid", Identity{DisplayName: "Alice", Embedding: Embedding{1}}, nil},
		{"blank name", Identity{DisplayName: "  ", Embedding: Embedding{1}}, ErrInvalidIdentity},
		{"no embedding", Identity{DisplayName: "Alice"}, ErrInvalidEmbedding},
		{
			"bad details",
			Identity{DisplayName: "Alice", Embedding: Embedding{1}, Details: IdentityDetails{Email: Ptr("x")}},
			ErrInvalidIdentity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.identity.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestIdentityUpdate_Apply(t *testing.T) {
	orig := Identity{DisplayName: "Alice", Embedding: Embedding{1, 2}, Active: true}

	t.Run("empty update keeps identity", func(t *testing.T) {
		u := IdentityUpdate{}
		assert.True(t, u.Empty())
		assert.Equal(t, orig, u.Apply(orig))
	})

	t.Run("replaces name and embedding", func(t *testing.T) {
		newEmb := Embedding{3, 4}
		u := IdentityUpdate{DisplayName: Ptr("Alicia"), Embedding: newEmb}
		got := u.Apply(orig)

		assert.Equal(t, "Alicia", got.DisplayName)
		assert.Equal(t, Embedding{3, 4}, got.Embedding)
		newEmb[0] = 42
		assert.Equal(t, 3.0, got.Embedding[0])
		assert.Equal(t, "Alice", orig.DisplayName)
	})
}

func TestFaceRegion(t *testing.T) {
	r := FaceRegion{Top: 10, Right: 60, Bottom: 80, Left: 20}

	assert.Equal(t, 40, r.Width())
	assert.Equal(t, 70, r.Height())
	assert.False(t, r.Empty())
	assert.Equal(t, r, RegionFromRect(r.Rect()))
	assert.True(t, FaceRegion{}.Empty())
}

func TestCloneFaces(t *testing.T) {
	faces := []DetectedFace{{Region: FaceRegion{Right: 1, Bottom: 1}, Embedding: Embedding{1}}}
	clone := CloneFaces(faces)
	clone[0].Embedding[0] = 7

	assert.Equal(t, 1.0, faces[0].Embedding[0])
	assert.Nil(t, CloneFaces(nil))
}
