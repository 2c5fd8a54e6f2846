package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/handlers"
)

// Setup mounts the v2 API.
func Setup(app *fiber.App, h *handlers.Handler) {
	v2 := app.Group("/v2")

	v2.Post("/signup", h.Signup)
	v2.Put("/signup", h.ConfirmSignup)
	v2.Post("/recovery", h.Recover)
	v2.Post("/login", h.Login)
	v2.Put("/otp", h.ConfirmOTP)

	users := v2.Group("/users/:user_id")
	users.Put("/recovery", h.ConfirmRecovery)
	users.Post("/otp", h.RequestOTP)
	users.Get("/dashboard", h.Dashboard)
	users.Post("/password", h.ChangePassword)
	users.Post("/verify", h.VerifyIdentity)
	users.Post("/logout", h.Logout)
	users.Get("/platforms", h.ListPlatforms)

	users.Post("/platforms/:platform/protocols/:protocol", h.BeginHandshake)
	users.Put("/platforms/:platform/protocols/:protocol", h.CompleteHandshake)
	users.Put("/platforms/:platform/protocols/:protocol/:action", h.CompleteHandshake)
	users.Delete("/platforms/:platform/protocols/:protocol", h.RevokeGrant)

	v2.Delete("/users/:user_id", h.DeleteAccount)
}
