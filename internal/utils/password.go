package utils

import (
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher wraps the opaque hash/verify capability.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (p *PasswordHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "hashing password", err)
	}
	return string(digest), nil
}

func (p *PasswordHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// CheckPasswordPolicy rejects passwords outside the accepted bounds before
// any persistence is touched. bcrypt truncates past 72 bytes, hence the
// upper bound.
func CheckPasswordPolicy(password string) error {
	if len(password) < 8 {
		return apperr.New(apperr.BadRequest, "password must be at least 8 characters")
	}
	if len(password) > 72 {
		return apperr.New(apperr.BadRequest, "password is too long")
	}
	return nil
}
