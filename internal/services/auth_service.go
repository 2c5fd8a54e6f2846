package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/captcha"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/crypto"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/grants"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/otp"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/ratelimit"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/repository"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/sessions"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/twilio"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type authService struct {
	userRepo       repository.UserRepository
	sessionMgr     *sessions.Manager
	grantMgr       *grants.Manager
	counters       *otp.CounterStore
	throttle       *ratelimit.LoginThrottle
	verifier       twilio.Verifier
	captcha        captcha.Verifier
	hasher         *crypto.Hasher
	passwords      *utils.PasswordHasher
	enableCounters bool
	enableCaptcha  bool
	logger         *zap.Logger
}

// NewAuthService wires the account, session, and OTP flows. counters,
// throttle, and captchaVerifier may be nil when the corresponding gate is
// disabled.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionMgr *sessions.Manager,
	grantMgr *grants.Manager,
	counters *otp.CounterStore,
	throttle *ratelimit.LoginThrottle,
	verifier twilio.Verifier,
	captchaVerifier captcha.Verifier,
	hasher *crypto.Hasher,
	passwords *utils.PasswordHasher,
	enableCounters, enableCaptcha bool,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo:       userRepo,
		sessionMgr:     sessionMgr,
		grantMgr:       grantMgr,
		counters:       counters,
		throttle:       throttle,
		verifier:       verifier,
		captcha:        captchaVerifier,
		hasher:         hasher,
		passwords:      passwords,
		enableCounters: enableCounters,
		enableCaptcha:  enableCaptcha,
		logger:         logger,
	}
}

func (s *authService) Signup(ctx context.Context, req models.SignupRequest, userAgent string) (*IdentityResult, error) {
	if err := utils.CheckPasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	compositeHash := s.hasher.Hash(req.CountryCode + req.PhoneNumber)
	if _, err := s.userRepo.FindByCompositeHash(ctx, compositeHash); err == nil {
		return nil, apperr.New(apperr.Conflict, "account already exists")
	} else if err != repository.ErrUserNotFound {
		return nil, apperr.Wrap(apperr.Internal, "checking existing account", err)
	}

	digest, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserID:        uuid.NewString(),
		Name:          req.Name,
		PhoneHash:     s.hasher.Hash(req.PhoneNumber),
		CompositeHash: compositeHash,
		CountryCode:   req.CountryCode,
		PasswordHash:  digest,
		Status:        models.UserStatusUnverified,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicateKey {
			return nil, apperr.New(apperr.Conflict, "account already exists")
		}
		return nil, apperr.Wrap(apperr.Internal, "creating account", err)
	}

	sess, err := s.sessionMgr.Create(ctx, user.CompositeHash, userAgent, models.SessionTypeSignup)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created", zap.String("user_id", user.UserID))
	return &IdentityResult{
		UID: user.UserID,
		Envelope: &SessionEnvelope{
			Session: sess,
			Payload: &models.SignupCookie{
				CookieHeader: header(models.CookieKindSignup, sess),
				Type:         sess.Type,
			},
		},
	}, nil
}

func (s *authService) ConfirmSignup(ctx context.Context, t models.SessionTicket, userAgent string) (*SessionEnvelope, error) {
	// The identifier and uid come from the ticket, which only the post-OTP
	// cookie carries, and the stored status must have advanced to success.
	// A session parked at pending cannot pass this gate.
	if _, err := s.sessionMgr.Find(ctx, sessions.FindParams{
		SID:              t.SID,
		UniqueIdentifier: t.UniqueIdentifier,
		UserAgent:        userAgent,
		Token:            t.Token,
		Type:             t.Type,
		Status:           models.SessionStatusSuccess,
	}); err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateFields(ctx, t.UID, bson.M{"status": models.UserStatusVerified}); err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperr.New(apperr.Unauthorized, "invalid session")
		}
		return nil, apperr.Wrap(apperr.Internal, "verifying account", err)
	}

	verified := models.SessionStatusVerified
	sess, err := s.sessionMgr.Update(ctx, t.SID, t.UniqueIdentifier, &verified, &t.Type)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account verified", zap.String("user_id", t.UID))
	return &SessionEnvelope{
		Session: sess,
		Payload: &models.SignupCookie{
			CookieHeader: header(models.CookieKindSignup, sess),
			Type:         sess.Type,
		},
	}, nil
}

func (s *authService) Recover(ctx context.Context, phoneNumber, userAgent string) (*IdentityResult, error) {
	user, err := s.findUserByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessionMgr.Create(ctx, s.hasher.Hash(phoneNumber), userAgent, models.SessionTypeRecovery)
	if err != nil {
		return nil, err
	}

	return &IdentityResult{
		UID: user.UserID,
		Envelope: &SessionEnvelope{
			Session: sess,
			Payload: &models.SignupCookie{
				CookieHeader: header(models.CookieKindRecovery, sess),
				Type:         sess.Type,
			},
		},
	}, nil
}

func (s *authService) ConfirmRecovery(ctx context.Context, userID, newPassword, origin string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error) {
	if err := utils.CheckPasswordPolicy(newPassword); err != nil {
		return nil, err
	}

	// Same gate as signup confirmation: only the OTP-verified cookie can
	// satisfy the success status, so a reset never happens on the cookie
	// handed out at recovery creation.
	if _, err := s.sessionMgr.Find(ctx, sessions.FindParams{
		SID:              t.SID,
		UniqueIdentifier: t.UniqueIdentifier,
		UserAgent:        userAgent,
		Token:            t.Token,
		Type:             t.Type,
		Status:           models.SessionStatusSuccess,
	}); err != nil {
		return nil, err
	}

	if err := s.revokeAllGrants(ctx, userID, origin); err != nil {
		return nil, err
	}

	digest, err := s.passwords.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateFields(ctx, userID, bson.M{"password_hash": digest}); err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperr.New(apperr.Unauthorized, "invalid session")
		}
		return nil, apperr.Wrap(apperr.Internal, "updating password", err)
	}

	updated := models.SessionStatusUpdated
	sess, err := s.sessionMgr.Update(ctx, t.SID, t.UniqueIdentifier, &updated, &t.Type)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account recovered", zap.String("user_id", userID))
	return &SessionEnvelope{
		Session: sess,
		Payload: &models.SignupCookie{
			CookieHeader: header(models.CookieKindRecovery, sess),
			Type:         sess.Type,
		},
	}, nil
}

func (s *authService) Login(ctx context.Context, req models.LoginRequest, remoteIP, userAgent string) (*IdentityResult, error) {
	if s.enableCaptcha {
		if req.CaptchaToken == "" {
			return nil, apperr.New(apperr.BadRequest, "captcha_token is required")
		}
		if err := s.captcha.Verify(ctx, req.CaptchaToken, remoteIP); err != nil {
			return nil, err
		}
	}

	phoneHash := s.hasher.Hash(req.PhoneNumber)
	if s.throttle != nil {
		if err := s.throttle.Check(ctx, phoneHash); err != nil {
			return nil, err
		}
	}

	user, err := s.findUserByPhone(ctx, req.PhoneNumber)
	if err != nil {
		if apperr.KindOf(err) == apperr.Unauthorized {
			s.noteLoginFailure(ctx, phoneHash)
		}
		return nil, err
	}
	if !s.passwords.Verify(req.Password, user.PasswordHash) {
		s.noteLoginFailure(ctx, phoneHash)
		return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
	}

	if s.throttle != nil {
		if err := s.throttle.Clear(ctx, phoneHash); err != nil {
			s.logger.Warn("failed to clear login throttle",
				zap.String("user_id", user.UserID), zap.Error(err))
		}
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateFields(ctx, user.UserID, bson.M{"last_login": now}); err != nil {
		// Auth already succeeded; a failed timestamp write is not fatal.
		s.logger.Warn("failed to record last login",
			zap.String("user_id", user.UserID), zap.Error(err))
	}

	sess, err := s.sessionMgr.Create(ctx, user.UserID, userAgent, models.SessionTypeLogin)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login", zap.String("user_id", user.UserID))
	return &IdentityResult{
		UID: user.UserID,
		Envelope: &SessionEnvelope{
			Session: sess,
			Payload: &models.AuthCookie{CookieHeader: header(models.CookieKindAuth, sess)},
		},
	}, nil
}

func (s *authService) RequestOTP(ctx context.Context, userID, phoneNumber string, t models.SessionTicket, userAgent string) (*OTPChallengeResult, error) {
	phoneHash := s.hasher.Hash(phoneNumber)

	if _, err := s.sessionMgr.Find(ctx, sessions.FindParams{
		SID:              t.SID,
		UniqueIdentifier: phoneHash,
		UserAgent:        userAgent,
		Token:            t.Token,
		Type:             t.Type,
	}); err != nil {
		return nil, err
	}

	var counter *otp.Counter
	if s.enableCounters {
		var err error
		counter, err = s.counters.CheckCount(ctx, phoneHash, userID)
		if err != nil {
			return nil, err
		}
	}

	status, err := s.verifier.Verification(ctx, phoneNumber)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "requesting OTP", err)
	}
	if status != twilio.StatusPending {
		return nil, apperr.New(apperr.Internal, fmt.Sprintf("OTP delivery failed with status %q", status))
	}

	var expiresMs int64
	var cid string
	if s.enableCounters {
		expires, err := s.counters.AddCount(ctx, counter)
		if err != nil {
			return nil, err
		}
		expiresMs = expires.UnixMilli()
		cid = counter.ID
	}

	sess, err := s.sessionMgr.Update(ctx, t.SID, phoneHash, nil, &t.Type)
	if err != nil {
		return nil, err
	}

	return &OTPChallengeResult{
		ExpiresMs: expiresMs,
		Envelope: &SessionEnvelope{
			Session: sess,
			Payload: &models.OTPChallengeCookie{
				CookieHeader: header(models.CookieKindOTPChallenge, sess),
				UID:          userID,
				Type:         sess.Type,
				PhoneNumber:  phoneNumber,
				CID:          cid,
			},
		},
	}, nil
}

func (s *authService) ConfirmOTP(ctx context.Context, code string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error) {
	phoneHash := s.hasher.Hash(t.PhoneNumber)

	if _, err := s.sessionMgr.Find(ctx, sessions.FindParams{
		SID:              t.SID,
		UniqueIdentifier: phoneHash,
		UserAgent:        userAgent,
		Token:            t.Token,
		Type:             t.Type,
	}); err != nil {
		return nil, err
	}

	status, err := s.verifier.VerificationCheck(ctx, t.PhoneNumber, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "checking OTP", err)
	}

	switch status {
	case twilio.StatusApproved:
		if s.enableCounters && t.CID != "" {
			if err := s.counters.DeleteCount(ctx, t.CID); err != nil {
				return nil, err
			}
		}
	case twilio.StatusPending:
		s.logger.Warn("invalid OTP code", zap.String("user_id", t.UID))
		return nil, apperr.New(apperr.Forbidden, "invalid code")
	default:
		return nil, apperr.New(apperr.Internal, fmt.Sprintf("OTP check failed with status %q", status))
	}

	success := models.SessionStatusSuccess
	sess, err := s.sessionMgr.Update(ctx, t.SID, phoneHash, &success, &t.Type)
	if err != nil {
		return nil, err
	}

	return &SessionEnvelope{
		Session: sess,
		Payload: &models.OTPVerifiedCookie{
			CookieHeader:     header(models.CookieKindOTPVerified, sess),
			UID:              t.UID,
			UniqueIdentifier: sess.UniqueIdentifier,
			Type:             sess.Type,
			Status:           sess.Status,
		},
	}, nil
}

func (s *authService) Dashboard(ctx context.Context, userID string, t models.SessionTicket, userAgent string) (*DashboardResult, error) {
	if _, err := s.authorize(ctx, userID, t, userAgent); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperr.New(apperr.Unauthorized, "invalid session")
		}
		return nil, apperr.Wrap(apperr.Internal, "loading account", err)
	}

	updatedAt := time.Now().UTC()
	if user.LastLogin != nil {
		updatedAt = *user.LastLogin
	}

	env, err := s.refresh(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	return &DashboardResult{CreatedAt: user.CreatedAt, UpdatedAt: updatedAt, Envelope: env}, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID string, req models.PasswordUpdateRequest, origin string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error) {
	if err := utils.CheckPasswordPolicy(req.NewPassword); err != nil {
		return nil, err
	}

	if _, err := s.authorize(ctx, userID, t, userAgent); err != nil {
		return nil, err
	}

	user, err := s.verifyUser(ctx, userID, req.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.Unauthorized {
			// Authenticated session but wrong password on a destructive action.
			return nil, apperr.New(apperr.Forbidden, "wrong password")
		}
		return nil, err
	}

	if err := s.revokeAllGrants(ctx, user.UserID, origin); err != nil {
		return nil, err
	}

	digest, err := s.passwords.Hash(req.NewPassword)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateFields(ctx, user.UserID, bson.M{"password_hash": digest}); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "updating password", err)
	}

	s.logger.Info("password changed", zap.String("user_id", userID))
	return s.refresh(ctx, userID, t)
}

func (s *authService) VerifyIdentity(ctx context.Context, userID, password, userAgent string) (*SessionEnvelope, error) {
	user, err := s.verifyUser(ctx, userID, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessionMgr.Create(ctx, user.UserID, userAgent, models.SessionTypeLogin)
	if err != nil {
		return nil, err
	}
	return &SessionEnvelope{
		Session: sess,
		Payload: &models.AuthCookie{CookieHeader: header(models.CookieKindAuth, sess)},
	}, nil
}

func (s *authService) Logout(ctx context.Context, userID string, t models.SessionTicket, userAgent string) error {
	if _, err := s.authorize(ctx, userID, t, userAgent); err != nil {
		return err
	}
	s.logger.Info("logout", zap.String("user_id", userID))
	return nil
}

func (s *authService) DeleteAccount(ctx context.Context, userID, password, origin string, t models.SessionTicket, userAgent string) error {
	if _, err := s.authorize(ctx, userID, t, userAgent); err != nil {
		return err
	}

	user, err := s.verifyUser(ctx, userID, password)
	if err != nil {
		if apperr.KindOf(err) == apperr.Unauthorized {
			return apperr.New(apperr.Forbidden, "wrong password")
		}
		return err
	}

	if err := s.revokeAllGrants(ctx, user.UserID, origin); err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, user.UserID); err != nil {
		return apperr.Wrap(apperr.Internal, "deleting account", err)
	}

	// Tombstone recording the deletion context; never usable for auth.
	if _, err := s.sessionMgr.Create(ctx, user.UserID, userAgent, models.SessionTypeDeleted); err != nil {
		return err
	}

	s.logger.Info("account deleted", zap.String("user_id", userID))
	return nil
}

// authorize is the session gate for the generic protected operations: the
// path's user id must be the session's unique identifier.
func (s *authService) authorize(ctx context.Context, userID string, t models.SessionTicket, userAgent string) (*models.Session, error) {
	return s.sessionMgr.Find(ctx, sessions.FindParams{
		SID:              t.SID,
		UniqueIdentifier: userID,
		UserAgent:        userAgent,
		Token:            t.Token,
	})
}

// noteLoginFailure records a rejected credential attempt. The answer to the
// client does not change if the write fails.
func (s *authService) noteLoginFailure(ctx context.Context, phoneHash string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Fail(ctx, phoneHash); err != nil {
		s.logger.Warn("failed to record login failure", zap.Error(err))
	}
}

// refresh rotates the anti-replay token without advancing status, returning
// the envelope for the response cookie. Called after every successful
// protected operation that keeps the session alive.
func (s *authService) refresh(ctx context.Context, userID string, t models.SessionTicket) (*SessionEnvelope, error) {
	sess, err := s.sessionMgr.Update(ctx, t.SID, userID, nil, nil)
	if err != nil {
		return nil, err
	}
	return &SessionEnvelope{
		Session: sess,
		Payload: &models.AuthCookie{CookieHeader: header(models.CookieKindAuth, sess)},
	}, nil
}

// findUserByPhone resolves the complete number clients present at login and
// recovery against the composite hash recorded at signup.
func (s *authService) findUserByPhone(ctx context.Context, phoneNumber string) (*models.User, error) {
	user, err := s.userRepo.FindByCompositeHash(ctx, s.hasher.Hash(phoneNumber))
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
		}
		return nil, apperr.Wrap(apperr.Internal, "looking up account", err)
	}
	return user, nil
}

// verifyUser checks the password for userID, reporting Unauthorized on any
// mismatch. Callers on destructive paths convert that to Forbidden.
func (s *authService) verifyUser(ctx context.Context, userID, password string) (*models.User, error) {
	user, err := s.userRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
		}
		return nil, apperr.Wrap(apperr.Internal, "looking up account", err)
	}
	if !s.passwords.Verify(password, user.PasswordHash) {
		return nil, apperr.New(apperr.Unauthorized, "invalid credentials")
	}
	return user, nil
}

// revokeAllGrants purges and deletes every grant the user holds. Purge
// failures are non-fatal; local deletion always proceeds.
func (s *authService) revokeAllGrants(ctx context.Context, userID, origin string) error {
	all, err := s.grantMgr.FindAll(ctx, userID)
	if err != nil {
		return err
	}
	for i := range all {
		grant := &all[i]
		payload, err := s.grantMgr.Decrypt(grant)
		if err != nil {
			return err
		}
		s.grantMgr.Purge(ctx, origin, payload.Identifier, grant.PlatformID, payload.Token)
		if err := s.grantMgr.Delete(ctx, grant); err != nil {
			return err
		}
	}
	return nil
}

func header(kind models.CookieKind, sess *models.Session) models.CookieHeader {
	return models.CookieHeader{Kind: kind, SID: sess.SID, Token: sess.Data.Token}
}
