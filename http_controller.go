package defects

import (
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

type AuthControllerRoutes struct {
	Register string
	Login    string
	Verify   string
	Health   string
	Main     string
}

type AuthController struct {
	Logger     Logger
	Routes     *AuthControllerRoutes
	LandingURL string
	Register   *RegisterUserHandler
	Verify     *AccountVerificationHandler
	Auther     Authenticator
	Guard      *Guard
}

type AuthControllerOption func(*AuthController)

func WithAuthControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(a *AuthController) {
		if routes != nil {
			a.Routes = routes
		}
	}
}

func WithAuthControllerLogger(logger Logger) AuthControllerOption {
	return func(a *AuthController) {
		a.Logger = normalizeLogger(logger)
	}
}

func WithLandingURL(landing string) AuthControllerOption {
	return func(a *AuthController) {
		if landing != "" {
			a.LandingURL = landing
		}
	}
}

func NewAuthController(register *RegisterUserHandler, verify *AccountVerificationHandler, auther Authenticator, guard *Guard, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register: "/auth/register",
			Login:    "/auth/login",
			Verify:   "/verify",
			Health:   "/health",
			Main:     "/main",
		},
		LandingURL: "/",
		Register:   register,
		Verify:     verify,
		Auther:     auther,
		Guard:      guard,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterAuthRoutes mounts the unauthenticated entry points plus /main
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	app.Get(controller.Routes.Health, controller.Health)
	app.Get(controller.Routes.Verify, controller.VerifyAccount)
	app.Post(controller.Routes.Register, controller.RegistrationCreate)
	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Get(controller.Routes.Main, controller.Profile, controller.Guard.Middleware())
}

// RegistrationCreatePayload accepts both login and username
type RegistrationCreatePayload struct {
	Email           string `form:"email" json:"email"`
	Login           string `form:"login" json:"login"`
	Username        string `form:"username" json:"username"`
	FullName        string `form:"full_name" json:"full_name"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

func (r RegistrationCreatePayload) GetLogin() string {
	if r.Login != "" {
		return r.Login
	}
	return r.Username
}

func (a *AuthController) RegistrationCreate(c router.Context) error {
	payload := new(RegistrationCreatePayload)
	if err := c.Bind(payload); err != nil {
		a.Logger.Debug("register user parse payload", "error", err)
		return NewValidationError("invalid request body")
	}

	err := a.Register.Execute(c.Context(), RegisterUserMessage{
		Email:           payload.Email,
		Login:           payload.GetLogin(),
		FullName:        payload.FullName,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"detail": "confirm your email"})
}

// LoginPayload takes the identifier under any of the names clients use
type LoginPayload struct {
	Identifier string `form:"identifier" json:"identifier"`
	Login      string `form:"login" json:"login"`
	Username   string `form:"username" json:"username"`
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
}

func (r LoginPayload) GetIdentifier() string {
	for _, v := range []string{r.Identifier, r.Login, r.Username, r.Email} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	identifier := r.GetIdentifier()
	return validation.Errors{
		"identifier": validation.Validate(identifier, validation.Required),
		"password":   validation.Validate(r.Password, validation.Required),
	}.Filter()
}

func (a *AuthController) LoginPost(c router.Context) error {
	payload := new(LoginPayload)
	if err := c.Bind(payload); err != nil {
		a.Logger.Debug("login parse payload", "error", err)
		return NewValidationError("invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return NewValidationError("not enough data")
	}

	token, err := a.Auther.Login(c.Context(), payload.GetIdentifier(), payload.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// VerifyAccount consumes the registration token and redirects to the landing page
func (a *AuthController) VerifyAccount(c router.Context) error {
	var confirmed *User
	err := a.Verify.Execute(c.Context(), AccountVerificationMessage{
		Token: c.Query("token", ""),
		OnResponse: func(u *User) {
			confirmed = u
		},
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && (richErr == ErrVerificationTokenMissing || richErr == ErrVerificationTokenInvalid) {
			return redirect(c, a.landing("error", richErr.Message))
		}
		return err
	}

	return redirect(c, a.landing("success", "account "+confirmed.Email+" confirmed"))
}

func (a *AuthController) Health(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"message": "Service is running",
	})
}

// Profile returns the current user
func (a *AuthController) Profile(c router.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthenticated
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

func (a *AuthController) landing(key, msg string) string {
	sep := "?"
	if strings.Contains(a.LandingURL, "?") {
		sep = "&"
	}
	return a.LandingURL + sep + url.Values{key: []string{msg}}.Encode()
}

func redirect(c router.Context, location string) error {
	c.SetHeader("Location", location)
	return c.NoContent(http.StatusTemporaryRedirect)
}
