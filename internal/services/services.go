// Package services orchestrates the authentication and grant flows. Every
// protected operation validates the presented session before touching any
// other state, and rotates the session's cookie token as its last step.
package services

import (
	"context"
	"time"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
)

// SessionEnvelope pairs the session record (whose data blob drives the
// cookie attributes) with the payload to encrypt into the response cookie.
type SessionEnvelope struct {
	Session *models.Session
	Payload any
}

// IdentityResult is returned by the operations that establish a session for
// a known user.
type IdentityResult struct {
	UID      string
	Envelope *SessionEnvelope `json:"-"`
}

// OTPChallengeResult reports when the lockout window for the next challenge
// expires, as milliseconds since the epoch.
type OTPChallengeResult struct {
	ExpiresMs int64
	Envelope  *SessionEnvelope `json:"-"`
}

type DashboardResult struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Envelope  *SessionEnvelope `json:"-"`
}

// HandshakeResult is the POST leg of grant management.
type HandshakeResult struct {
	URL          string `json:"url"`
	CodeVerifier string `json:"code_verifier"`
	Body         string `json:"body"`
	Platform     string `json:"platform"`
	Envelope     *SessionEnvelope `json:"-"`
}

// CompletionResult is the PUT leg (validation or registration).
type CompletionResult struct {
	Body              string `json:"body"`
	InitializationURL string `json:"initialization_url"`
	Envelope          *SessionEnvelope `json:"-"`
}

type PlatformsResult struct {
	Platforms []models.Grant
	Envelope  *SessionEnvelope `json:"-"`
}

// AuthService is the account/session/OTP operation surface.
type AuthService interface {
	Signup(ctx context.Context, req models.SignupRequest, userAgent string) (*IdentityResult, error)
	ConfirmSignup(ctx context.Context, t models.SessionTicket, userAgent string) (*SessionEnvelope, error)
	Recover(ctx context.Context, phoneNumber, userAgent string) (*IdentityResult, error)
	ConfirmRecovery(ctx context.Context, userID, newPassword, origin string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error)
	Login(ctx context.Context, req models.LoginRequest, remoteIP, userAgent string) (*IdentityResult, error)
	RequestOTP(ctx context.Context, userID, phoneNumber string, t models.SessionTicket, userAgent string) (*OTPChallengeResult, error)
	ConfirmOTP(ctx context.Context, code string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error)
	Dashboard(ctx context.Context, userID string, t models.SessionTicket, userAgent string) (*DashboardResult, error)
	ChangePassword(ctx context.Context, userID string, req models.PasswordUpdateRequest, origin string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error)
	VerifyIdentity(ctx context.Context, userID, password, userAgent string) (*SessionEnvelope, error)
	Logout(ctx context.Context, userID string, t models.SessionTicket, userAgent string) error
	DeleteAccount(ctx context.Context, userID, password, origin string, t models.SessionTicket, userAgent string) error
}

// GrantService drives the third-party handshake and grant bookkeeping.
type GrantService interface {
	BeginHandshake(ctx context.Context, userID, platform, protocol, origin string, req models.GrantRequest, t models.SessionTicket, userAgent string) (*HandshakeResult, error)
	CompleteHandshake(ctx context.Context, userID, platform, protocol, action, origin string, req models.GrantRequest, t models.SessionTicket, userAgent string) (*CompletionResult, error)
	RevokeGrant(ctx context.Context, userID, platform, protocol, password, origin string, t models.SessionTicket, userAgent string) (*SessionEnvelope, error)
	ListPlatforms(ctx context.Context, userID string, t models.SessionTicket, userAgent string) (*PlatformsResult, error)
}
