package services

import (
	"context"
	"sync"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
)

type memUserRepo struct {
	mu      sync.Mutex
	users   map[string]*models.User // keyed by user_id
	findErr error                   // injected lookup failure
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}}
}

func (r *memUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if u.CompositeHash != "" && existing.CompositeHash == u.CompositeHash {
			return repository.ErrDuplicateKey
		}
	}
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *memUserRepo) FindByUserID(_ context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByCompositeHash(_ context.Context, compositeHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.CompositeHash == compositeHash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *memUserRepo) UpdateFields(_ context.Context, userID string, fields bson.M) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			u.Status = v.(string)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "last_login":
			// ignored in tests
		}
	}
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, userID)
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*models.Session{}}
}

func (r *memSessionRepo) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.SID] = &cp
	return nil
}

func (r *memSessionRepo) FindBySID(_ context.Context, sid string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Rotate(_ context.Context, sid, uniqueIdentifier string, upd repository.SessionUpdate) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok || s.UniqueIdentifier != uniqueIdentifier {
		return nil, repository.ErrSessionNotFound
	}
	s.Data.Token = upd.Token
	if upd.Status != nil {
		s.Status = *upd.Status
	}
	if upd.Type != nil {
		s.Type = *upd.Type
	}
	cp := *s
	return &cp, nil
}

type memGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*models.Grant // keyed by user_id + "/" + platform_id
}

func newMemGrantRepo() *memGrantRepo {
	return &memGrantRepo{grants: map[string]*models.Grant{}}
}

func (r *memGrantRepo) Upsert(_ context.Context, g *models.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.grants[g.UserID+"/"+g.PlatformID] = &cp
	return nil
}

func (r *memGrantRepo) Find(_ context.Context, userID, platformID string) (*models.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[userID+"/"+platformID]
	if !ok {
		return nil, repository.ErrGrantNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memGrantRepo) FindAll(_ context.Context, userID string) ([]models.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Grant
	for _, g := range r.grants {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *memGrantRepo) Delete(_ context.Context, userID, platformID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "/" + platformID
	if _, ok := r.grants[key]; !ok {
		return repository.ErrGrantNotFound
	}
	delete(r.grants, key)
	return nil
}

// fakeVerifier scripts the delivery provider's answers.
type fakeVerifier struct {
	mu            sync.Mutex
	sendStatus    string
	checkStatus   string
	sentTo        []string
	checkedCodes  []string
	sendErr       error
	checkErr      error
	acceptedCodes map[string]bool
}

func (f *fakeVerifier) Verification(_ context.Context, phoneNumber string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentTo = append(f.sentTo, phoneNumber)
	return f.sendStatus, nil
}

func (f *fakeVerifier) VerificationCheck(_ context.Context, _, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return "", f.checkErr
	}
	f.checkedCodes = append(f.checkedCodes, code)
	if f.acceptedCodes != nil {
		if f.acceptedCodes[code] {
			return "approved", nil
		}
		return "pending", nil
	}
	return f.checkStatus, nil
}

type fakeCaptcha struct {
	err   error
	calls int
}

func (f *fakeCaptcha) Verify(context.Context, string, string) error {
	f.calls++
	return f.err
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string // platform:token
	err     error
}

func (f *fakeRevoker) Invalidate(_ context.Context, platform, _, _, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revoked = append(f.revoked, platform+":"+token)
	return nil
}
