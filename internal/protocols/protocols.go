// Package protocols drives third-party authorization handshakes. Concrete
// handlers (OAuth2, TwoFactor) are selected through a registry built once at
// configuration time; call sites never compare protocol names themselves.
package protocols

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
)

// Protocol names accepted in configuration.
const (
	ProtocolOAuth2    = "oauth2"
	ProtocolTwoFactor = "twofactor"
)

// AuthorizationResult is the provider-specific continuation data returned
// when a handshake begins: a redirect URL for OAuth2, a body bootstrap for
// TwoFactor.
type AuthorizationResult struct {
	URL          string
	CodeVerifier string
	Body         string
}

// ExchangeResult completes a handshake. A non-nil Grant is encrypted and
// stored by the caller.
type ExchangeResult struct {
	Body              string
	InitializationURL string
	Grant             *models.GrantPayload
}

// Handler is the capability set every protocol variant exposes.
type Handler interface {
	Authorization(ctx context.Context) (*AuthorizationResult, error)
	Validation(ctx context.Context, code, scope, codeVerifier string) (*ExchangeResult, error)
	Registration(ctx context.Context, firstName, lastName string) (*ExchangeResult, error)
	Invalidation(ctx context.Context, token string) error
}

// Params carry the per-request context a handler needs.
type Params struct {
	Origin     string
	Identifier string
}

// Registry resolves platform names to configured protocol handlers.
type Registry struct {
	entries    map[string]config.PlatformCfg
	httpClient *http.Client
}

func NewRegistry(platforms []config.PlatformCfg) (*Registry, error) {
	entries := make(map[string]config.PlatformCfg, len(platforms))
	for _, p := range platforms {
		name := strings.ToLower(p.Name)
		switch p.Protocol {
		case ProtocolOAuth2, ProtocolTwoFactor:
		default:
			return nil, fmt.Errorf("platform %q: unknown protocol %q", p.Name, p.Protocol)
		}
		if p.GatewayURL == "" {
			return nil, fmt.Errorf("platform %q: gatewayURL is required", p.Name)
		}
		entries[name] = p
	}
	return &Registry{
		entries:    entries,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Handler returns the handler for platform under the named protocol. The
// platform must be registered for exactly that protocol.
func (r *Registry) Handler(platform, protocol string, p Params) (Handler, error) {
	cfg, ok := r.entries[strings.ToLower(platform)]
	if !ok {
		return nil, apperr.New(apperr.BadRequest, "unknown platform")
	}
	if cfg.Protocol != protocol {
		return nil, apperr.New(apperr.BadRequest, "unknown protocol for platform")
	}

	switch cfg.Protocol {
	case ProtocolOAuth2:
		return &OAuth2{cfg: cfg, origin: p.Origin, httpClient: r.httpClient}, nil
	case ProtocolTwoFactor:
		return &TwoFactor{cfg: cfg, identifier: p.Identifier, httpClient: r.httpClient}, nil
	}
	return nil, apperr.New(apperr.BadRequest, "unknown protocol")
}

// Invalidate revokes token at platform's provider, resolving the handler
// from configuration alone. Used by the revoke-on-reset paths where no
// request body is in play.
func (r *Registry) Invalidate(ctx context.Context, platform, origin, identifier, token string) error {
	cfg, ok := r.entries[strings.ToLower(platform)]
	if !ok {
		return apperr.New(apperr.BadRequest, "unknown platform")
	}
	h, err := r.Handler(platform, cfg.Protocol, Params{Origin: origin, Identifier: identifier})
	if err != nil {
		return err
	}
	return h.Invalidation(ctx, token)
}

// postJSON sends a JSON body to the platform gateway and decodes the JSON
// reply into out. Non-2xx replies surface as UnprocessableEntity so a
// provider-side rejection is distinguishable from our own failures.
func postJSON(ctx context.Context, client *http.Client, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "gateway request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "reading gateway response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.New(apperr.UnprocessableEntity,
			fmt.Sprintf("provider rejected request with status %d", resp.StatusCode))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperr.Wrap(apperr.Internal, "parsing gateway response", err)
		}
	}
	return nil
}
