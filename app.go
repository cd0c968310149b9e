package defects

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
)

// AppOptions collects the collaborators NewApp wires together
type AppOptions struct {
	Repo         RepositoryManager
	Config       Config
	Mailer       Mailer
	Storage      FileStorage
	Logger       Logger
	Metrics      *Metrics
	ActivitySink ActivitySink
	TokenService TokenService
}

// App is the assembled HTTP service
type App struct {
	Server router.Server[*fiber.App]
	Fiber  *fiber.App
	Auth   *AuthController
	API    *APIController
	Guard  *Guard
	Tokens TokenService
}

// NewApp builds the server with every route mounted. Process level
// middleware (recover, cors, logging, metrics) runs on the fiber app,
// routes go through the router.
func NewApp(opts AppOptions) *App {
	logger := normalizeLogger(opts.Logger)

	sink := opts.ActivitySink
	if sink == nil {
		sink = LoggerActivitySink{Logger: logger}
	}
	if opts.Metrics != nil {
		sink = opts.Metrics.ActivitySink(sink)
	}

	tokens := opts.TokenService
	if tokens == nil {
		tokens = NewTokenService(
			[]byte(opts.Config.GetSigningKey()),
			opts.Config.GetTokenExpiration(),
			opts.Config.GetIssuer(),
			logger,
		)
	}

	auther := NewAuthenticator(NewUserProvider(opts.Repo.Users()).WithLogger(logger), opts.Config).
		WithLogger(logger).
		WithTokenService(tokens).
		WithActivitySink(sink)

	guard := NewGuard(tokens, opts.Repo.Users()).WithLogger(logger)

	register := NewRegisterUserHandler(opts.Repo, opts.Mailer, opts.Config.GetPublicURL()).
		WithLogger(logger).
		WithActivitySink(sink)

	verify := NewAccountVerificationHandler(opts.Repo).
		WithLogger(logger).
		WithActivitySink(sink)

	authController := NewAuthController(register, verify, auther, guard,
		WithAuthControllerLogger(logger),
		WithLandingURL(opts.Config.GetLandingURL()),
	)

	apiController := NewAPIController(opts.Repo, opts.Storage, WithAPIControllerLogger(logger))
	apiController.UpdateDefect.WithLogger(logger).WithActivitySink(sink)

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "defects",
			ErrorHandler:          ErrorHandler(logger),
			BodyLimit:             MaxAttachmentSize + (1 << 20),
			UnescapePath:          true,
			DisableStartupMessage: true,
		})

		app.Use(recover.New())
		app.Use(cors.New())
		app.Use(RequestLogger(logger))

		if opts.Metrics != nil {
			app.Use(opts.Metrics.Middleware())
			app.Get("/metrics", opts.Metrics.Handler())
		}

		return app
	})

	RegisterAuthRoutes(srv.Router(), authController)
	RegisterAPIRoutes(srv.Router(), guard, apiController)

	return &App{
		Server: srv,
		Fiber:  srv.WrappedRouter(),
		Auth:   authController,
		API:    apiController,
		Guard:  guard,
		Tokens: tokens,
	}
}

// RequestLogger logs one line per request at debug level, server errors at error level
func RequestLogger(logger Logger) fiber.Handler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusForError(err)
		}

		args := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start).String(),
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request", args...)
		} else {
			logger.Debug("request", args...)
		}

		return err
	}
}
