// Package registry keeps the in-memory working set of active identities that
// recognition sessions match against.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

// Store is the persistence the registry reads from and writes through.
type Store interface {
	GetAllActive(ctx context.Context) ([]domain.Identity, error)
	Add(ctx context.Context, identity *domain.Identity) error
	Update(ctx context.Context, id uuid.UUID, update domain.IdentityUpdate) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
}

// UpdateRequest changes an identity. A non-nil Image is re-encoded and
// replaces the stored embedding.
type UpdateRequest struct {
	DisplayName *string
	Image       *imaging.Image
	Details     *domain.IdentityDetails
}

// Registry serializes writers (enroll, update, deactivate, refresh) behind
// writeMu and publishes each result as a new Snapshot. Readers never lock.
type Registry struct {
	store    Store
	provider provider.EmbeddingProvider
	logger   *slog.Logger
	now      func() time.Time

	writeMu sync.Mutex
	version uint64
	current atomic.Pointer[Snapshot]
}

func New(store Store, p provider.EmbeddingProvider, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:    store,
		provider: p,
		logger:   logger,
		now:      time.Now,
	}
	r.current.Store(newSnapshot(nil, 0, time.Time{}))
	return r
}

// Snapshot returns the current working set.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Registry) Get(id uuid.UUID) (Entry, bool) {
	return r.Snapshot().Get(id)
}

// LoadActive replaces the working set with the active identities in storage.
func (r *Registry) LoadActive(ctx context.Context) (*Snapshot, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	identities, err := r.store.GetAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active identities: %w", err)
	}

	entries := make([]Entry, 0, len(identities))
	for _, identity := range identities {
		if !identity.Active {
			continue
		}
		if err := identity.Embedding.CheckDimension(r.provider.Dimension()); err != nil {
			return nil, fmt.Errorf("identity %s: %w", identity.ID, err)
		}
		entries = append(entries, entryOf(identity))
	}

	snap := newSnapshot(entries, r.nextVersion(), r.now())
	r.current.Store(snap)

	r.logger.Info("registry loaded", "identities", snap.Len(), "version", snap.Version())
	return snap, nil
}

// Enroll detects the first face in img, persists a new identity with its
// embedding and adds it to the working set.
func (r *Registry) Enroll(ctx context.Context, img imaging.Image, displayName string, details domain.IdentityDetails) (uuid.UUID, error) {
	if strings.TrimSpace(displayName) == "" {
		return uuid.Nil, domain.ErrInvalidIdentity.WithError(errors.New("display name is empty"))
	}
	if err := details.Validate(); err != nil {
		return uuid.Nil, err
	}

	face, err := provider.EncodeFirst(ctx, r.provider, img)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enroll %q: %w", displayName, err)
	}

	identity := &domain.Identity{
		DisplayName: displayName,
		Embedding:   face.Embedding,
		Active:      true,
		Details:     details,
	}
	if err := identity.Validate(); err != nil {
		return uuid.Nil, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.Add(ctx, identity); err != nil {
		return uuid.Nil, fmt.Errorf("enroll %q: %w", displayName, err)
	}

	r.publish(r.Snapshot().with(entryOf(*identity), r.nextVersion(), r.now()))

	r.logger.Info("identity enrolled", "identity_id", identity.ID, "display_name", displayName)
	return identity.ID, nil
}

// Update applies req and refreshes the working-set entry. It returns false
// when id does not exist.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (bool, error) {
	update := domain.IdentityUpdate{
		DisplayName: req.DisplayName,
		Details:     req.Details,
	}
	if req.DisplayName != nil && strings.TrimSpace(*req.DisplayName) == "" {
		return false, domain.ErrInvalidIdentity.WithError(errors.New("display name is empty"))
	}
	if req.Details != nil {
		if err := req.Details.Validate(); err != nil {
			return false, err
		}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	existing, err := r.store.GetByID(ctx, id)
	if errors.Is(err, domain.ErrUnknownIdentity) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update %s: %w", id, err)
	}

	if req.Image != nil {
		face, err := provider.EncodeFirst(ctx, r.provider, *req.Image)
		if err != nil {
			return false, fmt.Errorf("update %s: %w", id, err)
		}
		update.Embedding = face.Embedding
	}

	if update.Empty() {
		return true, nil
	}

	ok, err := r.store.Update(ctx, id, update)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}

	updated := update.Apply(*existing)
	if updated.Active {
		r.publish(r.Snapshot().with(entryOf(updated), r.nextVersion(), r.now()))
	}

	r.logger.Info("identity updated", "identity_id", id, "embedding_replaced", update.Embedding != nil)
	return true, nil
}

// Deactivate marks id inactive in storage and drops it from the working set.
// Recognition events already recorded for it are kept.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	ok, err := r.store.Deactivate(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deactivate %s: %w", id, err)
	}
	if !ok {
		return false, nil
	}

	r.publish(r.Snapshot().without(id, r.nextVersion(), r.now()))

	r.logger.Info("identity deactivated", "identity_id", id)
	return true, nil
}

// Watch reloads the working set every interval until ctx is done, picking
// up changes written by other processes. Failed reloads keep the previous
// working set.
func (r *Registry) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("registry refresh started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("registry refresh stopped")
			return
		case <-ticker.C:
			if _, err := r.LoadActive(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("registry refresh failed", "error", err)
			}
		}
	}
}

// publish must be called with writeMu held.
func (r *Registry) publish(s *Snapshot) {
	r.current.Store(s)
}

// nextVersion must be called with writeMu held.
func (r *Registry) nextVersion() uint64 {
	r.version++
	return r.version
}

func entryOf(identity domain.Identity) Entry {
	return Entry{
		ID:          identity.ID,
		DisplayName: identity.DisplayName,
		Embedding:   identity.Embedding.Clone(),
	}
}
