package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Grant is an encrypted authorization artifact for a (user, platform) pair.
// Token holds AES-GCM sealed token material; it is decrypted only
// transiently for outbound provider calls and the decrypted form is never
// persisted. At most one live grant exists per (user_id, platform_id).
type Grant struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID     string             `bson:"user_id" json:"user_id"`
	PlatformID string             `bson:"platform_id" json:"platform_id"`
	Token      string             `bson:"token" json:"-"`
	Protocol   string             `bson:"protocol,omitempty" json:"protocol,omitempty"`
	Identifier string             `bson:"identifier,omitempty" json:"-"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// GrantPayload is the transient decrypted form of a grant's token material.
type GrantPayload struct {
	Token      string `json:"token"`
	Identifier string `json:"identifier,omitempty"`
	Extra      string `json:"extra,omitempty"`
}
