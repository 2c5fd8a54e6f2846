package models

import (
	"encoding/json"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
)

// Cookie payload kinds. Each flow writes its own tagged variant; decoding
// matches on the explicit discriminant instead of optimistic key access, so
// a cookie presented at the wrong step fails as Unauthorized rather than as
// a missing-field internal error.
type CookieKind string

const (
	CookieKindSignup       CookieKind = "signup"
	CookieKindRecovery     CookieKind = "recovery"
	CookieKindAuth         CookieKind = "auth"
	CookieKindOTPChallenge CookieKind = "otp_challenge"
	CookieKindOTPVerified  CookieKind = "otp_verified"
)

// CookieHeader is the part every payload variant shares: the session id and
// the rotating anti-replay token.
type CookieHeader struct {
	Kind  CookieKind `json:"kind"`
	SID   string     `json:"sid"`
	Token string     `json:"cookie"`
}

// SignupCookie is issued when a signup or recovery session is opened. It
// deliberately carries nothing beyond the session handle and flow type: the
// account fields the confirm steps require appear only in the cookie written
// after a successful OTP check.
type SignupCookie struct {
	CookieHeader
	Type string `json:"type"`
}

// AuthCookie is the generic authenticated-session payload used by login,
// verify-identity, and every protected resource operation.
type AuthCookie struct {
	CookieHeader
}

// OTPChallengeCookie is written after an OTP challenge is issued; it pins
// the phone number the challenge went to and the counter record gating it.
type OTPChallengeCookie struct {
	CookieHeader
	UID         string `json:"uid"`
	Type        string `json:"type"`
	PhoneNumber string `json:"phone_number"`
	CID         string `json:"cid"`
}

// OTPVerifiedCookie is written after a code is approved.
type OTPVerifiedCookie struct {
	CookieHeader
	UID              string `json:"uid"`
	UniqueIdentifier string `json:"unique_identifier"`
	Type             string `json:"type"`
	Status           string `json:"status"`
}

// SessionTicket is the flattened view of whichever payload variant a
// request presented. Services read only the fields their flow defined;
// absent fields stay empty and fail the session gate if checked.
type SessionTicket struct {
	SID              string
	Token            string
	UID              string
	UniqueIdentifier string
	Type             string
	Status           string
	PhoneNumber      string
	CID              string
}

func (c *SignupCookie) Ticket() SessionTicket {
	return SessionTicket{SID: c.SID, Token: c.Token, Type: c.Type}
}

func (c *AuthCookie) Ticket() SessionTicket {
	return SessionTicket{SID: c.SID, Token: c.Token}
}

func (c *OTPChallengeCookie) Ticket() SessionTicket {
	return SessionTicket{
		SID: c.SID, Token: c.Token, UID: c.UID, Type: c.Type,
		PhoneNumber: c.PhoneNumber, CID: c.CID,
	}
}

func (c *OTPVerifiedCookie) Ticket() SessionTicket {
	return SessionTicket{
		SID: c.SID, Token: c.Token, UID: c.UID,
		UniqueIdentifier: c.UniqueIdentifier, Type: c.Type, Status: c.Status,
	}
}

// TicketFrom flattens a decoded payload variant.
func TicketFrom(payload any) (SessionTicket, error) {
	switch p := payload.(type) {
	case *SignupCookie:
		return p.Ticket(), nil
	case *AuthCookie:
		return p.Ticket(), nil
	case *OTPChallengeCookie:
		return p.Ticket(), nil
	case *OTPVerifiedCookie:
		return p.Ticket(), nil
	}
	return SessionTicket{}, apperr.New(apperr.Unauthorized, "invalid cookie")
}

// EncodeCookie serializes any payload variant for encryption.
func EncodeCookie(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// DecodeCookie parses a decrypted cookie blob into its tagged variant.
// Unknown or missing discriminants are an authentication failure.
func DecodeCookie(data []byte) (any, error) {
	var header CookieHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "invalid cookie", err)
	}

	var payload any
	switch header.Kind {
	case CookieKindSignup, CookieKindRecovery:
		payload = &SignupCookie{}
	case CookieKindAuth:
		payload = &AuthCookie{}
	case CookieKindOTPChallenge:
		payload = &OTPChallengeCookie{}
	case CookieKindOTPVerified:
		payload = &OTPVerifiedCookie{}
	default:
		return nil, apperr.New(apperr.Unauthorized, "invalid cookie")
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "invalid cookie", err)
	}
	return payload, nil
}
