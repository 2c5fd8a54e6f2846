// Package handlers is the HTTP edge: it decodes the encrypted session
// cookie, maps classified service errors to status codes, and re-encodes the
// rotated session into the response cookie. No business rules live here.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/config"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/crypto"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/services"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/utils"
	"go.uber.org/zap"
)

type Handler struct {
	auth   services.AuthService
	grants services.GrantService
	codec  *crypto.Codec
	cookie config.CookieCfg
	logger *zap.Logger
}

func NewHandler(auth services.AuthService, grants services.GrantService, codec *crypto.Codec, cookie config.CookieCfg, logger *zap.Logger) *Handler {
	return &Handler{auth: auth, grants: grants, codec: codec, cookie: cookie, logger: logger}
}

// fail maps a classified error onto its status code. Internal failures are
// logged with their cause and surfaced with an opaque body.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		h.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(apperr.StatusCode(kind)).SendString(apperr.ClientMessage(err))
}

// ticket authenticates the request envelope: the cookie must be present and
// decryptable before anything else, then the user agent must be present.
// The decoded payload is flattened for the service layer.
func (h *Handler) ticket(c *fiber.Ctx) (models.SessionTicket, string, error) {
	raw := c.Cookies(h.cookie.Name)
	if raw == "" {
		return models.SessionTicket{}, "", apperr.New(apperr.Unauthorized, "unauthorized")
	}

	userAgent := c.Get(fiber.HeaderUserAgent)
	if userAgent == "" {
		return models.SessionTicket{}, "", apperr.New(apperr.BadRequest, "missing User-Agent")
	}

	plaintext, err := h.codec.Decrypt(raw)
	if err != nil {
		return models.SessionTicket{}, "", apperr.Wrap(apperr.Unauthorized, "unauthorized", err)
	}
	payload, err := models.DecodeCookie(plaintext)
	if err != nil {
		return models.SessionTicket{}, "", err
	}
	t, err := models.TicketFrom(payload)
	if err != nil {
		return models.SessionTicket{}, "", err
	}
	return t, userAgent, nil
}

// userAgent is the envelope check for the operations that take no cookie.
func userAgent(c *fiber.Ctx) (string, error) {
	ua := c.Get(fiber.HeaderUserAgent)
	if ua == "" {
		return "", apperr.New(apperr.BadRequest, "missing User-Agent")
	}
	return ua, nil
}

// setSessionCookie encrypts the envelope's payload into the response
// cookie, with attributes taken from the session record itself.
func (h *Handler) setSessionCookie(c *fiber.Ctx, env *services.SessionEnvelope) error {
	blob, err := models.EncodeCookie(env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "encoding cookie", err)
	}
	sealed, err := h.codec.Encrypt(blob)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "encrypting cookie", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    sealed,
		MaxAge:   int(env.Session.Data.MaxAge / 1000),
		Secure:   env.Session.Data.Secure,
		HTTPOnly: env.Session.Data.HTTPOnly,
		SameSite: env.Session.Data.SameSite,
	})
	return nil
}

func (h *Handler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		MaxAge:   -1,
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cookie.SameSite,
	})
}

// parseBody decodes and validates a request DTO.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Wrap(apperr.BadRequest, "invalid body", err)
	}
	return utils.ValidateStruct(dst)
}
