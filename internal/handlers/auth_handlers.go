package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/models"
)

func (h *Handler) Signup(c *fiber.Ctx) error {
	var req models.SignupRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	res, err := h.auth.Signup(c.Context(), req, c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"uid": res.UID})
}

func (h *Handler) ConfirmSignup(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	env, err := h.auth.ConfirmSignup(c.Context(), t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, env); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) Recover(c *fiber.Ctx) error {
	var req models.RecoveryRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	res, err := h.auth.Recover(c.Context(), req.PhoneNumber, c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"uid": res.UID})
}

func (h *Handler) ConfirmRecovery(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.RecoveryCheckRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	env, err := h.auth.ConfirmRecovery(c.Context(), c.Params("user_id"), req.NewPassword, c.Get(fiber.HeaderOrigin), t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, env); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	ua, err := userAgent(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	res, err := h.auth.Login(c.Context(), req, c.IP(), ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"uid": res.UID})
}

func (h *Handler) RequestOTP(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.OTPRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	res, err := h.auth.RequestOTP(c.Context(), c.Params("user_id"), req.PhoneNumber, t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"expires": res.ExpiresMs})
}

func (h *Handler) ConfirmOTP(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.OTPCheckRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	env, err := h.auth.ConfirmOTP(c.Context(), req.Code, t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, env); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) Dashboard(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	res, err := h.auth.Dashboard(c.Context(), c.Params("user_id"), t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, res.Envelope); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.PasswordUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	env, err := h.auth.ChangePassword(c.Context(), c.Params("user_id"), req, c.Get(fiber.HeaderOrigin), t, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, env); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// VerifyIdentity re-authenticates by password alone and issues a fresh
// session; no cookie is required on the way in.
func (h *Handler) VerifyIdentity(c *fiber.Ctx) error {
	var req models.VerifyRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	ua, err := userAgent(c)
	if err != nil {
		return h.fail(c, err)
	}

	env, err := h.auth.VerifyIdentity(c.Context(), c.Params("user_id"), req.Password, ua)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.setSessionCookie(c, env); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.auth.Logout(c.Context(), c.Params("user_id"), t, ua); err != nil {
		return h.fail(c, err)
	}
	h.clearSessionCookie(c)
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	t, ua, err := h.ticket(c)
	if err != nil {
		return h.fail(c, err)
	}

	var req models.DeleteAccountRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	if err := h.auth.DeleteAccount(c.Context(), c.Params("user_id"), req.Password, c.Get(fiber.HeaderOrigin), t, ua); err != nil {
		return h.fail(c, err)
	}
	h.clearSessionCookie(c)
	return c.SendStatus(fiber.StatusOK)
}
