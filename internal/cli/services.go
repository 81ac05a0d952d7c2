package cli

import (
	"context"
	"errors"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/audit"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/face"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/registry"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
)

type services struct {
	storage    *storage
	provider   provider.EmbeddingProvider
	registry   *registry.Registry
	identities *service.IdentityService
}

// open wires storage, the embedding provider and a loaded registry.
func (a *app) open(ctx context.Context) (*services, error) {
	st, err := openStorage(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	p, err := face.NewEmbeddingProvider(ctx, a.cfg, a.logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := registry.New(st.identities, p, a.logger)
	if _, err := reg.LoadActive(ctx); err != nil {
		_ = face.Close(p)
		_ = st.Close()
		return nil, err
	}

	return &services{
		storage:    st,
		provider:   p,
		registry:   reg,
		identities: service.NewIdentityService(reg, p, st.identities, a.cfg.MatchTolerance, a.logger,
			service.WithAudit(audit.NewSlogLogger(a.logger))),
	}, nil
}

func (s *services) Close() error {
	return errors.Join(face.Close(s.provider), s.storage.Close())
}
