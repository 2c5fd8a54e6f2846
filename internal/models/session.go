package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session types. A session of type "deleted" is a tombstone written when an
// account is removed; it is never usable for authentication.
const (
	SessionTypeSignup   = "signup"
	SessionTypeRecovery = "recovery"
	SessionTypeLogin    = "login"
	SessionTypeDeleted  = "deleted"
)

// Session statuses, advanced per flow by the session manager.
const (
	SessionStatusPending  = "pending"
	SessionStatusVerified = "verified"
	SessionStatusUpdated  = "updated"
	SessionStatusSuccess  = "success"
	SessionStatusActive   = "active"
)

// SessionData is the serialized blob embedded in the response cookie. The
// Token value rotates on every update and is the anti-replay check: a cookie
// presenting a stale token after rotation is rejected.
type SessionData struct {
	Token    string `bson:"token" json:"token"`
	MaxAge   int64  `bson:"maxAge" json:"maxAge"` // milliseconds
	Secure   bool   `bson:"secure" json:"secure"`
	HTTPOnly bool   `bson:"httpOnly" json:"httpOnly"`
	SameSite string `bson:"sameSite" json:"sameSite"`
}

// Session is one authentication context, referenced by the client only
// through the encrypted cookie. Usable only when sid, unique identifier,
// user agent, and the embedded token all match the incoming request.
type Session struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SID              string             `bson:"sid" json:"sid"`
	UniqueIdentifier string             `bson:"unique_identifier" json:"-"`
	UserAgent        string             `bson:"user_agent" json:"-"`
	Type             string             `bson:"type" json:"type"`
	Status           string             `bson:"status" json:"status"`
	Data             SessionData        `bson:"data" json:"-"`
	CreatedAt        time.Time          `bson:"created_at" json:"-"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"-"`
}
