package models

// Request DTOs. Validation tags are enforced by the shared validator before
// any service call.

type SignupRequest struct {
	PhoneNumber  string `json:"phone_number" validate:"required"`
	Name         string `json:"name"`
	CountryCode  string `json:"country_code" validate:"required"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captcha_token"`
}

type RecoveryRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

type RecoveryCheckRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type LoginRequest struct {
	PhoneNumber  string `json:"phone_number" validate:"required"`
	Password     string `json:"password" validate:"required"`
	CaptchaToken string `json:"captcha_token"`
}

type OTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type OTPCheckRequest struct {
	Code string `json:"code" validate:"required"`
}

type GrantRequest struct {
	Code         string `json:"code"`
	Scope        string `json:"scope"`
	PhoneNumber  string `json:"phone_number"`
	CodeVerifier string `json:"code_verifier"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Password     string `json:"password"`
}

type PasswordUpdateRequest struct {
	Password    string `json:"password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type VerifyRequest struct {
	Password string `json:"password" validate:"required"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}
