package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/crypto"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/grants"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/protocols"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/sessions"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeGateway stands in for a platform provider across every protocol
// endpoint, recording what was posted to each path.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string][]map[string]string
	srv   *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{calls: map[string][]map[string]string{}}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		g.mu.Lock()
		g.calls[r.URL.Path] = append(g.calls[r.URL.Path], req)
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			json.NewEncoder(w).Encode(map[string]string{
				"token":      "provider-token",
				"profile":    "profile-blob",
				"identifier": "ada@example.com",
			})
		case "/init":
			json.NewEncoder(w).Encode(map[string]string{"body": "201"})
		case "/validate":
			// Enrollment parked behind registration: no token yet.
			json.NewEncoder(w).Encode(map[string]string{"body": "202"})
		case "/register":
			json.NewEncoder(w).Encode(map[string]string{
				"token":              "tf-token",
				"initialization_url": "tg://init",
			})
		default: // /revoke, /deactivate
			json.NewEncoder(w).Encode(map[string]string{})
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) posted(path string) []map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

type grantFixture struct {
	svc       GrantService
	users     *memUserRepo
	grantMgr  *grants.Manager
	sessMgr   *sessions.Manager
	gateway   *fakeGateway
	pw        *utils.PasswordHasher
	uid       string
	userAgent string
}

func newGrantFixture(t *testing.T) *grantFixture {
	t.Helper()
	logger := zap.NewNop()

	codec, err := crypto.NewCodec(bytes.Repeat([]byte{9}, crypto.KeySize))
	require.NoError(t, err)

	gateway := newFakeGateway(t)
	registry, err := protocols.NewRegistry([]config.PlatformCfg{
		{Name: "Gmail", Protocol: protocols.ProtocolOAuth2, GatewayURL: gateway.srv.URL, ClientID: "client-1", RedirectURI: "https://app.example/callback"},
		{Name: "telegram", Protocol: protocols.ProtocolTwoFactor, GatewayURL: gateway.srv.URL},
	})
	require.NoError(t, err)

	f := &grantFixture{
		users:     newMemUserRepo(),
		gateway:   gateway,
		pw:        utils.NewPasswordHasher(bcrypt.MinCost),
		uid:       "user-1",
		userAgent: testUserAgent,
	}
	f.sessMgr = sessions.NewManager(newMemSessionRepo(), config.CookieCfg{
		Name: "SWOB", MaxAge: 7200000, Secure: true, SameSite: "Lax",
	}, logger)
	f.grantMgr = grants.NewManager(newMemGrantRepo(), codec, registry, logger)

	digest, err := f.pw.Hash("correct horse")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), &models.User{
		UserID:       f.uid,
		PhoneHash:    "ph",
		PasswordHash: digest,
		Status:       models.UserStatusVerified,
	}))

	f.svc = NewGrantService(f.users, f.sessMgr, f.grantMgr, registry, f.pw, logger)
	return f
}

func (f *grantFixture) ticket(t *testing.T) models.SessionTicket {
	t.Helper()
	sess, err := f.sessMgr.Create(context.Background(), f.uid, f.userAgent, models.SessionTypeLogin)
	require.NoError(t, err)
	return models.SessionTicket{SID: sess.SID, Token: sess.Data.Token}
}

func TestBeginHandshakeOAuth2(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	res, err := f.svc.BeginHandshake(context.Background(), f.uid, "GMAIL", protocols.ProtocolOAuth2, "https://origin", models.GrantRequest{}, ticket, f.userAgent)
	require.NoError(t, err)
	assert.Equal(t, "gmail", res.Platform)
	assert.Contains(t, res.URL, "/authorize?")
	assert.NotEmpty(t, res.CodeVerifier)
	assert.NotEqual(t, ticket.Token, res.Envelope.Session.Data.Token, "token must rotate")
}

func TestBeginHandshakeTwoFactor(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	res, err := f.svc.BeginHandshake(context.Background(), f.uid, "telegram", protocols.ProtocolTwoFactor, "https://origin", models.GrantRequest{
		PhoneNumber: "+237612345678",
	}, ticket, f.userAgent)
	require.NoError(t, err)
	assert.Equal(t, "201", res.Body)

	inits := f.gateway.posted("/init")
	require.Len(t, inits, 1)
	assert.Equal(t, "+237612345678", inits[0]["identifier"])
}

func TestBeginHandshakeUnknownPlatform(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	_, err := f.svc.BeginHandshake(context.Background(), f.uid, "myspace", protocols.ProtocolOAuth2, "https://origin", models.GrantRequest{}, ticket, f.userAgent)
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
}

func TestCompleteHandshakeStoresEncryptedGrant(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	res, err := f.svc.CompleteHandshake(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, "", "https://origin", models.GrantRequest{
		Code:         "the-code",
		CodeVerifier: "the-verifier",
	}, ticket, f.userAgent)
	require.NoError(t, err)
	require.NotNil(t, res.Envelope)

	grant, err := f.grantMgr.Find(context.Background(), f.uid, "gmail")
	require.NoError(t, err)
	assert.NotContains(t, grant.Token, "provider-token", "token material is sealed at rest")

	payload, err := f.grantMgr.Decrypt(grant)
	require.NoError(t, err)
	assert.Equal(t, "provider-token", payload.Token)
	assert.Equal(t, "ada@example.com", payload.Identifier)
}

func TestCompleteHandshakeReplacesExistingGrant(t *testing.T) {
	f := newGrantFixture(t)
	require.NoError(t, f.grantMgr.Store(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, &models.GrantPayload{Token: "old-token"}))

	ticket := f.ticket(t)
	_, err := f.svc.CompleteHandshake(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, "", "https://origin", models.GrantRequest{
		Code: "the-code",
	}, ticket, f.userAgent)
	require.NoError(t, err)

	all, err := f.grantMgr.FindAll(context.Background(), f.uid)
	require.NoError(t, err)
	require.Len(t, all, 1, "at most one grant per platform")

	payload, err := f.grantMgr.Decrypt(&all[0])
	require.NoError(t, err)
	assert.Equal(t, "provider-token", payload.Token)
}

func TestCompleteHandshakeRegistration(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	res, err := f.svc.CompleteHandshake(context.Background(), f.uid, "telegram", protocols.ProtocolTwoFactor, "register", "https://origin", models.GrantRequest{
		PhoneNumber: "+237612345678",
		FirstName:   "Ada",
		LastName:    "L",
	}, ticket, f.userAgent)
	require.NoError(t, err)
	assert.Equal(t, "tg://init", res.InitializationURL)

	grant, err := f.grantMgr.Find(context.Background(), f.uid, "telegram")
	require.NoError(t, err)
	payload, err := f.grantMgr.Decrypt(grant)
	require.NoError(t, err)
	assert.Equal(t, "tf-token", payload.Token)
	assert.Equal(t, "+237612345678", payload.Identifier)
}

func TestCompleteHandshakePendingEnrollmentStoresNothing(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	res, err := f.svc.CompleteHandshake(context.Background(), f.uid, "telegram", protocols.ProtocolTwoFactor, "", "https://origin", models.GrantRequest{
		PhoneNumber: "+237612345678",
		Code:        "12345",
	}, ticket, f.userAgent)
	require.NoError(t, err)
	assert.Equal(t, "202", res.Body)

	_, err = f.grantMgr.Find(context.Background(), f.uid, "telegram")
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestCompleteHandshakeUnknownAction(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	_, err := f.svc.CompleteHandshake(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, "refresh", "https://origin", models.GrantRequest{}, ticket, f.userAgent)
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
}

func TestRevokeGrant(t *testing.T) {
	f := newGrantFixture(t)
	require.NoError(t, f.grantMgr.Store(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, &models.GrantPayload{
		Token: "provider-token", Identifier: "ada@example.com",
	}))

	ticket := f.ticket(t)
	_, err := f.svc.RevokeGrant(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, "correct horse", "https://origin", ticket, f.userAgent)
	require.NoError(t, err)

	revokes := f.gateway.posted("/revoke")
	require.Len(t, revokes, 1)
	assert.Equal(t, "provider-token", revokes[0]["token"])

	_, err = f.grantMgr.Find(context.Background(), f.uid, "gmail")
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRevokeGrantWrongPassword(t *testing.T) {
	f := newGrantFixture(t)
	require.NoError(t, f.grantMgr.Store(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, &models.GrantPayload{Token: "provider-token"}))

	ticket := f.ticket(t)
	_, err := f.svc.RevokeGrant(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, "wrong", "https://origin", ticket, f.userAgent)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = f.grantMgr.Find(context.Background(), f.uid, "gmail")
	assert.NoError(t, err, "grant must survive a failed revoke")
	assert.Empty(t, f.gateway.posted("/revoke"))
}

func TestRevokeGrantMissing(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	_, err := f.svc.RevokeGrant(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, "correct horse", "https://origin", ticket, f.userAgent)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestListPlatforms(t *testing.T) {
	f := newGrantFixture(t)
	require.NoError(t, f.grantMgr.Store(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, &models.GrantPayload{Token: "a"}))
	require.NoError(t, f.grantMgr.Store(context.Background(), f.uid, "telegram", protocols.ProtocolTwoFactor, &models.GrantPayload{Token: "b"}))

	ticket := f.ticket(t)
	res, err := f.svc.ListPlatforms(context.Background(), f.uid, ticket, f.userAgent)
	require.NoError(t, err)
	require.Len(t, res.Platforms, 2)

	var names []string
	for _, g := range res.Platforms {
		names = append(names, g.PlatformID)
	}
	assert.ElementsMatch(t, []string{"gmail", "telegram"}, names)
	assert.NotEqual(t, ticket.Token, res.Envelope.Session.Data.Token)
}

func TestGrantOperationsRequireLiveSession(t *testing.T) {
	f := newGrantFixture(t)
	ticket := f.ticket(t)

	// First use rotates the token; replaying the old one fails everywhere.
	_, err := f.svc.ListPlatforms(context.Background(), f.uid, ticket, f.userAgent)
	require.NoError(t, err)

	_, err = f.svc.ListPlatforms(context.Background(), f.uid, ticket, f.userAgent)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = f.svc.BeginHandshake(context.Background(), f.uid, "gmail", protocols.ProtocolOAuth2, "https://origin", models.GrantRequest{}, ticket, f.userAgent)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
}
