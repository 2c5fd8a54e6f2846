package protocols

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
)

// OAuth2 drives an authorization-code handshake with PKCE against a
// platform gateway.
type OAuth2 struct {
	cfg        config.PlatformCfg
	origin     string
	httpClient *http.Client
}

// Authorization builds the provider redirect URL and the PKCE verifier the
// client must present back during validation.
func (o *OAuth2) Authorization(ctx context.Context) (*AuthorizationResult, error) {
	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "generating code verifier", err)
	}

	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	q := url.Values{}
	q.Set("client_id", o.cfg.ClientID)
	q.Set("redirect_uri", o.redirectURI())
	q.Set("response_type", "code")
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")

	return &AuthorizationResult{
		URL:          fmt.Sprintf("%s/authorize?%s", o.cfg.GatewayURL, q.Encode()),
		CodeVerifier: verifier,
	}, nil
}

// Validation exchanges the authorization code for token material.
func (o *OAuth2) Validation(ctx context.Context, code, scope, codeVerifier string) (*ExchangeResult, error) {
	if code == "" {
		return nil, apperr.New(apperr.BadRequest, "missing authorization code")
	}

	reqBody := map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"scope":         scope,
		"code_verifier": codeVerifier,
		"client_id":     o.cfg.ClientID,
		"redirect_uri":  o.redirectURI(),
	}

	var resp struct {
		Token      string `json:"token"`
		Profile    string `json:"profile"`
		InitURL    string `json:"initialization_url"`
		Body       string `json:"body"`
		Identifier string `json:"identifier"`
	}
	if err := postJSON(ctx, o.httpClient, o.cfg.GatewayURL+"/token", reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, apperr.New(apperr.UnprocessableEntity, "provider returned no token")
	}

	return &ExchangeResult{
		Body:              resp.Body,
		InitializationURL: resp.InitURL,
		Grant: &models.GrantPayload{
			Token:      resp.Token,
			Identifier: resp.Identifier,
			Extra:      resp.Profile,
		},
	}, nil
}

// Registration is not part of the authorization-code protocol.
func (o *OAuth2) Registration(ctx context.Context, firstName, lastName string) (*ExchangeResult, error) {
	return nil, apperr.New(apperr.UnprocessableEntity, "registration not supported for this protocol")
}

// Invalidation revokes the token at the provider.
func (o *OAuth2) Invalidation(ctx context.Context, token string) error {
	reqBody := map[string]string{
		"token":     token,
		"client_id": o.cfg.ClientID,
	}
	return postJSON(ctx, o.httpClient, o.cfg.GatewayURL+"/revoke", reqBody, nil)
}

func (o *OAuth2) redirectURI() string {
	if o.cfg.RedirectURI != "" {
		return o.cfg.RedirectURI
	}
	return o.origin
}

func newCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
