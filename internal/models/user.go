package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User lifecycle statuses.
const (
	UserStatusUnverified = "unverified"
	UserStatusVerified   = "verified"
)

// User is an identity record. The raw phone number is never stored; only
// deterministic hashes. The composite hash of country_code+phone_number is
// the unique lookup key: it equals the hash of the complete number clients
// present at login, recovery, and the OTP steps.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID        string             `bson:"user_id" json:"user_id"`
	Name          string             `bson:"name,omitempty" json:"name,omitempty"`
	PhoneHash     string             `bson:"phone_hash" json:"-"`
	CompositeHash string             `bson:"composite_hash,omitempty" json:"-"`
	CountryCode   string             `bson:"country_code,omitempty" json:"-"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	Status        string             `bson:"status" json:"status"`
	LastLogin     *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
