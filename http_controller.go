package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// HTTPController exposes the identity operations as a JSON API.
type HTTPController struct {
	Auth     Authenticator
	Accounts *Accounts
	Logger   Logger
}

func NewHTTPController(auth Authenticator, accounts *Accounts, logger Logger) *HTTPController {
	if logger == nil {
		logger = defLogger{}
	}
	return &HTTPController{
		Auth:     auth,
		Accounts: accounts,
		Logger:   logger,
	}
}

// RegisterRoutes mounts the identity endpoints under the given router.
func (a *HTTPController) RegisterRoutes(app fiber.Router) {
	auth := app.Group("/auth")
	auth.Post("/login", a.LoginPost)
	auth.Post("/two-factor", a.TwoFactorPost)
	auth.Post("/two-factor/resend", a.TwoFactorResendPost)
	auth.Post("/refresh", a.RefreshPost)
	auth.Post("/logout", a.LogoutPost)

	accounts := app.Group("/accounts")
	accounts.Post("/register", a.RegisterPost)
	accounts.Post("/forgot-password", a.ForgotPasswordPost)
	accounts.Post("/reset-password", a.ResetPasswordPost)
	accounts.Post("/change-password", a.ChangePasswordPost)
	accounts.Post("/confirm-email", a.ConfirmEmailPost)
	accounts.Post("/confirm-email/resend", a.SendConfirmEmailPost)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *HTTPController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	pair, err := a.Auth.Login(ctx.UserContext(), payload.Identifier, payload.Password)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Data: pair})
}

type TwoFactorRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

// Validate will run validation rules
func (r TwoFactorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Code, validation.Required, validation.Length(6, 6), is.Digit),
	)
}

func (a *HTTPController) TwoFactorPost(ctx *fiber.Ctx) error {
	payload := new(TwoFactorRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	pair, err := a.Auth.VerifyTwoFactor(ctx.UserContext(), payload.Identifier, payload.Code)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Data: pair})
}

func (a *HTTPController) TwoFactorResendPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if payload.Identifier == "" {
		return a.badRequest(ctx, "identifier is required")
	}

	if err := a.Auth.SendTwoFactorCode(ctx.UserContext(), payload.Identifier); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Message: "verification code sent"})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *HTTPController) RefreshPost(ctx *fiber.Ctx) error {
	payload := new(RefreshRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	pair, err := a.Auth.Refresh(ctx.UserContext(), payload.RefreshToken)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Data: pair})
}

type LogoutRequest struct {
	Username string `json:"username"`
}

func (a *HTTPController) LogoutPost(ctx *fiber.Ctx) error {
	payload := new(LogoutRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := a.Auth.Logout(ctx.UserContext(), payload.Username); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Message: "logged out"})
}

func (a *HTTPController) RegisterPost(ctx *fiber.Ctx) error {
	payload := new(RegisterPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	user, err := a.Accounts.Register(ctx.UserContext(), *payload)
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(apiResponse{Success: true, Data: user})
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *HTTPController) ForgotPasswordPost(ctx *fiber.Ctx) error {
	payload := new(ForgotPasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Accounts.ForgotPassword(ctx.UserContext(), payload.Email); err != nil {
		return a.renderError(ctx, err)
	}

	// Uniform response regardless of whether the account exists.
	return ctx.JSON(apiResponse{Success: true, Message: "if the account exists, a reset link has been sent"})
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

func (a *HTTPController) ResetPasswordPost(ctx *fiber.Ctx) error {
	payload := new(ResetPasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Accounts.ResetPassword(ctx.UserContext(), payload.Email, payload.Token, payload.NewPassword); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Message: "password has been reset"})
}

type ChangePasswordRequest struct {
	Username        string `json:"username"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

func (a *HTTPController) ChangePasswordPost(ctx *fiber.Ctx) error {
	payload := new(ChangePasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Accounts.ChangePassword(ctx.UserContext(), payload.Username, payload.CurrentPassword, payload.NewPassword); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Message: "password has been changed"})
}

type ConfirmEmailRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Validate will run validation rules
func (r ConfirmEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *HTTPController) ConfirmEmailPost(ctx *fiber.Ctx) error {
	payload := new(ConfirmEmailRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Accounts.ConfirmEmail(ctx.UserContext(), payload.Email, payload.Token); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Message: "email confirmed"})
}

func (a *HTTPController) SendConfirmEmailPost(ctx *fiber.Ctx) error {
	payload := new(ForgotPasswordRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badRequest(ctx, "invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Accounts.SendEmailConfirmation(ctx.UserContext(), payload.Email); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(apiResponse{Success: true, Message: "confirmation email sent"})
}

func (a *HTTPController) badRequest(ctx *fiber.Ctx, message string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(apiResponse{
		Success: false,
		Message: message,
	})
}

func (a *HTTPController) validationError(ctx *fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(apiResponse{
		Success: false,
		Message: err.Error(),
	})
}

// renderError maps rich errors onto HTTP statuses. Unknown errors become
// an opaque 500 so internals never leak to the client.
func (a *HTTPController) renderError(ctx *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status := int(richErr.Code)
		if status < fiber.StatusBadRequest || status > 599 {
			status = fiber.StatusInternalServerError
		}
		return ctx.Status(status).JSON(apiResponse{
			Success: false,
			Message: richErr.Message,
		})
	}

	a.Logger.Error("unhandled error: %v", err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(apiResponse{
		Success: false,
		Message: "internal server error",
	})
}
