package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
)

func (h *Handler) BeginHandshake(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.GrantRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	res, err := h.grants.BeginHandshake(c.Context(),
		c.Params("user_id"), c.Params("platform"), c.Params("protocol"),
		c.Get(fiber.HeaderOrigin), req, t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) CompleteHandshake(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.GrantRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	res, err := h.grants.CompleteHandshake(c.Context(),
		c.Params("user_id"), c.Params("platform"), c.Params("protocol"), c.Params("action"),
		c.Get(fiber.HeaderOrigin), req, t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) RevokeGrant(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.GrantRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.Password == "" {
		return h.fail(c, apperr.New(apperr.BadRequest, "password is required"))
	}

	env, err := h.grants.RevokeGrant(c.Context(),
		c.Params("user_id"), c.Params("platform"), c.Params("protocol"),
		req.Password, c.Get(fiber.HeaderOrigin), t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, env); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) ListPlatforms(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	res, err := h.grants.ListPlatforms(c.Context(), c.Params("user_id"), t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res.Platforms)
}
