package services

import (
	"context"
	"strings"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/grants"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/protocols"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/repository"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/sessions"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/utils"
	"go.uber.org/zap"
)

type grantService struct {
	userRepo   repository.UserRepository
	sessionMgr *sessions.Manager
	grantMgr   *grants.Manager
	registry   *protocols.Registry
	passwords  *utils.PasswordHasher
	logger     *zap.Logger
}

func NewGrantService(
	userRepo repository.UserRepository,
	sessionMgr *sessions.Manager,
	grantMgr *grants.Manager,
	registry *protocols.Registry,
	passwords *utils.PasswordHasher,
	logger *zap.Logger,
) GrantService {
	return &grantService{
		userRepo:   userRepo,
		sessionMgr: sessionMgr,
		grantMgr:   grantMgr,
		registry:   registry,
		passwords:  passwords,
		logger:     logger,
	}
}

func (s *grantService) BeginHandshake(ctx context.Context, userID, platform, protocol, origin string, req models.GrantRequest, t models.SessionTicket, userAgent string) (*HandshakeResult, error) {
	if err := s.gate(ctx, userID, t, userAgent); err != nil {
		return nil, err
	}

	h, err := s.registry.Handler(platform, protocol, protocols.Params{
		Origin:     origin,
		Identifier: req.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	res, err := h.Authorization(ctx)
	if err != nil {
		return nil, err
	}

	env, err := s.rotate(ctx, userID, t)
	if err != nil {
		return nil, err
	}

	s.logger.Info("handshake started",
		zap.String("user_id", userID),
		zap.String("platform", strings.ToLower(platform)),
	)
	return &HandshakeResult{
		URL:          res.URL,
		CodeVerifier: res.CodeVerifier,
		Body:         res.Body,
		Platform:     strings.ToLower(platform),
		Envelope:     env,
	}, nil
}

func (s *grantService) CompleteHandshake(ctx context.Context, userID, platform, protocol, action, origin string, req models.GrantRequest, t models.SessionTicket, userAgent string) (*CompletionResult, error) {
	if err := s.gate(ctx, userID, t, userAgent); err != nil {
		return nil, err
	}

	h, err := s.registry.Handler(platform, protocol, protocols.Params{
		Origin:     origin,
		Identifier: req.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	var res *protocols.ExchangeResult
	switch action {
	case "":
		res, err = h.Validation(ctx, req.Code, req.Scope, req.CodeVerifier)
	case "register":
		res, err = h.Registration(ctx, req.FirstName, req.LastName)
	default:
		return nil, apperr.New(apperr.BadRequest, "unknown action")
	}
	if err != nil {
		return nil, err
	}

	if res.Grant != nil {
		if err := s.grantMgr.Store(ctx, userID, platform, protocol, res.Grant); err != nil {
			return nil, err
		}
	}

	env, err := s.rotate(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{
		Body:              res.Body,
		InitializationURL: res.InitializationURL,
		Envelope:          env,
	}, nil
}

func (s *grantService) RevokeGrant(ctx context.Context, userID, platform, protocol, password, origin string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error) {
	if err := s.gate(ctx, userID, t, userAgent); err != nil {
		return nil, err
	}

	if err := s.checkPassword(ctx, userID, password); err != nil {
		return nil, err
	}

	grant, err := s.grantMgr.Find(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	payload, err := s.grantMgr.Decrypt(grant)
	if err != nil {
		return nil, err
	}

	// Explicit revocation propagates provider errors, unlike the purge in
	// the password-reset paths.
	h, err := s.registry.Handler(platform, protocol, protocols.Params{
		Origin:     origin,
		Identifier: payload.Identifier,
	})
	if err != nil {
		return nil, err
	}
	if err := h.Invalidation(ctx, payload.Token); err != nil {
		return nil, err
	}

	if err := s.grantMgr.Delete(ctx, grant); err != nil {
		return nil, err
	}

	s.logger.Info("grant revoked",
		zap.String("user_id", userID),
		zap.String("platform", grant.PlatformID),
	)
	return s.rotate(ctx, userID, t)
}

func (s *grantService) ListPlatforms(ctx context.Context, userID string, t models.SessionTicket, userAgent string) (*PlatformsResult, error) {
	if err := s.gate(ctx, userID, t, userAgent); err != nil {
		return nil, err
	}

	all, err := s.grantMgr.FindAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	env, err := s.rotate(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	return &PlatformsResult{Platforms: all, Envelope: env}, nil
}

func (s *grantService) gate(ctx context.Context, userID string, t models.SessionTicket, userAgent string) error {
	_, err := s.sessionMgr.Find(ctx, sessions.FindParams{
		SID:              t.SID,
		UniqueIdentifier: userID,
		UserAgent:        userAgent,
		Token:            t.Token,
	})
	return err
}

func (s *grantService) rotate(ctx context.Context, userID string, t models.SessionTicket) (*SessionEnvelope, error) {
	sess, err := s.sessionMgr.Update(ctx, t.SID, userID, nil, nil)
	if err != nil {
		return nil, err
	}
	return &SessionEnvelope{
		Session: sess,
		Payload: &models.AuthCookie{CookieHeader: header(models.CookieKindAuth, sess)},
	}, nil
}

func (s *grantService) checkPassword(ctx context.Context, userID, password string) error {
	user, err := s.userRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return apperr.New(apperr.Unauthorized, "invalid session")
		}
		return apperr.Wrap(apperr.Internal, "looking up account", err)
	}
	if !s.passwords.Verify(password, user.PasswordHash) {
		return apperr.New(apperr.Forbidden, "wrong password")
	}
	return nil
}
