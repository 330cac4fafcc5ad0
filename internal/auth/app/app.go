package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/lanternauth/lantern/internal/auth/http"
	"github.com/lanternauth/lantern/internal/auth/service"
	"github.com/lanternauth/lantern/internal/auth/store"
	redisdriver "github.com/lanternauth/lantern/internal/auth/store/drivers/redis"
	"github.com/lanternauth/lantern/internal/auth/store/drivers/sqlite"
	"github.com/lanternauth/lantern/pkg/bearer"
	"github.com/lanternauth/lantern/pkg/cryptox"
	"github.com/lanternauth/lantern/pkg/jwtx"
	"github.com/lanternauth/lantern/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	redis *goredis.Client
	codec *jwtx.Codec

	identityService *service.IdentityService
	signInService   *service.SignInService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "lantern",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(cfg.PepperFile)

	signingKey, encryptionKey, err := cfg.Keys()
	if err != nil {
		return nil, err
	}

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		SigningKey:    signingKey,
		EncryptionKey: encryptionKey,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.ClockSkew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initStores(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("lantern starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down lantern...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("lantern stopped")
	return nil
}

// initStores opens the SQLite store, applies migrations, and overlays the
// Redis refresh token repo when configured.
func (app *Application) initStores() error {
	db, err := sqlite.NewStore("file:" + app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully")

	switch app.cfg.RefreshStore {
	case "", "sqlite":
		app.db = db
	case "redis":
		if app.cfg.RedisAddr == "" {
			_ = db.Close()
			return fmt.Errorf("LANTERN_REDIS_ADDR is required when LANTERN_REFRESH_STORE is redis")
		}
		app.redis = goredis.NewClient(&goredis.Options{Addr: app.cfg.RedisAddr})
		app.db = store.WithRefreshTokens(db, redisdriver.NewRefreshTokens(app.redis))
		app.logger.Info("refresh tokens backed by redis", "addr", app.cfg.RedisAddr)
	default:
		_ = db.Close()
		return fmt.Errorf("unknown refresh store backend %q", app.cfg.RefreshStore)
	}

	return nil
}

// initServices initializes the business logic services.
func (app *Application) initServices() {
	app.identityService = &service.IdentityService{
		Store:      app.db,
		SMS:        &service.LogSmsSender{Logger: app.logger},
		TOTPIssuer: app.cfg.Issuer,
	}
	app.signInService = &service.SignInService{
		Codec:    app.codec,
		Store:    app.db,
		Identity: app.identityService,
		Lifetime: app.cfg.TokenLifetime,
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.Bearer = &bearer.Handler{
		Options: bearer.Options{
			Scheme:              app.cfg.ChallengeScheme,
			IncludeErrorDetails: app.cfg.IncludeErrorDetails,
			SaveToken:           app.cfg.SaveToken,
		},
		Codec:    app.codec,
		Identity: app.identityService,
	}
	router.Identity = app.identityService
	router.SignIn = app.signInService
	router.EchoCodes = app.cfg.Env == "dev"
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
