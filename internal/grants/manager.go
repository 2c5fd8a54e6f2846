// Package grants owns the encrypted authorization artifacts linking users
// to third-party platforms. Token material is sealed at rest and decrypted
// only transiently for outbound provider calls.
package grants

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/crypto"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/repository"
	"go.uber.org/zap"
)

// Revoker revokes a token at the platform's provider. Implemented by the
// protocol registry.
type Revoker interface {
	Invalidate(ctx context.Context, platform, origin, identifier, token string) error
}

type Manager struct {
	repo    repository.GrantRepository
	codec   *crypto.Codec
	revoker Revoker
	logger  *zap.Logger
}

func NewManager(repo repository.GrantRepository, codec *crypto.Codec, revoker Revoker, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, codec: codec, revoker: revoker, logger: logger}
}

// Store encrypts payload and upserts it for (userID, platformID), replacing
// any grant already held for the pair.
func (m *Manager) Store(ctx context.Context, userID, platformID, protocol string, payload *models.GrantPayload) error {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "serializing grant", err)
	}
	sealed, err := m.codec.Encrypt(plaintext)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "encrypting grant", err)
	}

	g := &models.Grant{
		UserID:     userID,
		PlatformID: strings.ToLower(platformID),
		Token:      sealed,
		Protocol:   protocol,
		Identifier: payload.Identifier,
	}
	if err := m.repo.Upsert(ctx, g); err != nil {
		return apperr.Wrap(apperr.Internal, "storing grant", err)
	}

	m.logger.Info("grant stored",
		zap.String("user_id", userID),
		zap.String("platform", g.PlatformID),
	)
	return nil
}

func (m *Manager) Find(ctx context.Context, userID, platformID string) (*models.Grant, error) {
	g, err := m.repo.Find(ctx, userID, strings.ToLower(platformID))
	if err != nil {
		if err == repository.ErrGrantNotFound {
			return nil, apperr.New(apperr.Conflict, "no grant for platform")
		}
		return nil, apperr.Wrap(apperr.Internal, "looking up grant", err)
	}
	return g, nil
}

func (m *Manager) FindAll(ctx context.Context, userID string) ([]models.Grant, error) {
	grants, err := m.repo.FindAll(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "listing grants", err)
	}
	return grants, nil
}

// Decrypt opens the grant's token material for transient use. The result
// must never be persisted.
func (m *Manager) Decrypt(g *models.Grant) (*models.GrantPayload, error) {
	plaintext, err := m.codec.Decrypt(g.Token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "decrypting grant", err)
	}
	var payload models.GrantPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "parsing grant payload", err)
	}
	return &payload, nil
}

// Purge makes a best-effort attempt to revoke the grant at the provider
// before local deletion. Failures are logged, never raised: a revoke can
// complete locally while the provider-side grant stays live, and callers
// accept that documented gap.
func (m *Manager) Purge(ctx context.Context, origin, identifier, platformName, token string) {
	if err := m.revoker.Invalidate(ctx, platformName, origin, identifier, token); err != nil {
		m.logger.Error("provider-side revocation failed",
			zap.String("platform", platformName),
			zap.Error(err),
		)
	}
}

// Delete removes the stored record. In the revoking write paths this always
// follows a Purge or Invalidation call.
func (m *Manager) Delete(ctx context.Context, g *models.Grant) error {
	if err := m.repo.Delete(ctx, g.UserID, g.PlatformID); err != nil {
		if err == repository.ErrGrantNotFound {
			return apperr.New(apperr.Conflict, "no grant for platform")
		}
		return apperr.Wrap(apperr.Internal, "deleting grant", err)
	}
	m.logger.Info("grant deleted",
		zap.String("user_id", g.UserID),
		zap.String("platform", g.PlatformID),
	)
	return nil
}
