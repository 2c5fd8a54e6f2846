// Package sessions owns the Session record and is the sole authorization
// gate for every protected operation: a session is usable only when its sid,
// unique identifier, user agent, and rotating cookie token all match the
// incoming request.
package sessions

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/repository"
	"go.uber.org/zap"
)

type Manager struct {
	repo   repository.SessionRepository
	cookie config.CookieCfg
	logger *zap.Logger
}

func NewManager(repo repository.SessionRepository, cookie config.CookieCfg, logger *zap.Logger) *Manager {
	return &Manager{repo: repo, cookie: cookie, logger: logger}
}

// FindParams identify the session a request claims to hold. Type and Status
// are checked only when non-empty; flows that do not advance a status (the
// generic authenticated operations) leave them blank.
type FindParams struct {
	SID              string
	UniqueIdentifier string
	UserAgent        string
	Token            string
	Type             string
	Status           string
}

// Create allocates a fresh session bound to the identifier and user agent.
// Signup and recovery sessions start pending; login-style sessions are
// created directly authenticated.
func (m *Manager) Create(ctx context.Context, uniqueIdentifier, userAgent, sessType string) (*models.Session, error) {
	if sessType == "" {
		sessType = models.SessionTypeLogin
	}

	token, err := newToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "generating session token", err)
	}

	s := &models.Session{
		SID:              uuid.NewString(),
		UniqueIdentifier: uniqueIdentifier,
		UserAgent:        userAgent,
		Type:             sessType,
		Status:           initialStatus(sessType),
		Data: models.SessionData{
			Token:    token,
			MaxAge:   m.cookie.MaxAge,
			Secure:   m.cookie.Secure,
			HTTPOnly: true,
			SameSite: m.cookie.SameSite,
		},
	}

	if err := m.repo.Create(ctx, s); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "persisting session", err)
	}

	m.logger.Debug("session created",
		zap.String("sid", s.SID),
		zap.String("type", s.Type),
		zap.String("status", s.Status),
	)
	return s, nil
}

// Find validates every binding of the presented session. Any mismatch is a
// hard authentication failure; nothing is reported about which field failed.
func (m *Manager) Find(ctx context.Context, p FindParams) (*models.Session, error) {
	s, err := m.repo.FindBySID(ctx, p.SID)
	if err != nil {
		if err == repository.ErrSessionNotFound {
			m.logger.Warn("session not found", zap.String("sid", p.SID))
			return nil, apperr.New(apperr.Unauthorized, "invalid session")
		}
		return nil, apperr.Wrap(apperr.Internal, "looking up session", err)
	}

	ok := s.UniqueIdentifier == p.UniqueIdentifier &&
		s.UserAgent == p.UserAgent &&
		subtle.ConstantTimeCompare([]byte(s.Data.Token), []byte(p.Token)) == 1
	if p.Type != "" {
		ok = ok && s.Type == p.Type
	}
	if p.Status != "" {
		ok = ok && s.Status == p.Status
	}
	if !ok {
		m.logger.Warn("session mismatch", zap.String("sid", p.SID))
		return nil, apperr.New(apperr.Unauthorized, "invalid session")
	}
	return s, nil
}

// Update rotates the session's cookie token and optionally advances status
// and type, returning the updated session for re-encoding into the response
// cookie. After Update the previous token is no longer accepted by Find.
func (m *Manager) Update(ctx context.Context, sid, uniqueIdentifier string, status, sessType *string) (*models.Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "generating session token", err)
	}

	s, err := m.repo.Rotate(ctx, sid, uniqueIdentifier, repository.SessionUpdate{
		Token:  token,
		Status: status,
		Type:   sessType,
	})
	if err != nil {
		if err == repository.ErrSessionNotFound {
			return nil, apperr.New(apperr.Unauthorized, "invalid session")
		}
		return nil, apperr.Wrap(apperr.Internal, "rotating session", err)
	}

	m.logger.Debug("session updated",
		zap.String("sid", s.SID),
		zap.String("status", s.Status),
	)
	return s, nil
}

func initialStatus(sessType string) string {
	switch sessType {
	case models.SessionTypeSignup, models.SessionTypeRecovery:
		return models.SessionStatusPending
	default:
		return models.SessionStatusActive
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
