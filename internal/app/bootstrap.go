package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"

	"userbase/internal/auth"
	"userbase/internal/db"
	"userbase/internal/maintenance"
	"userbase/internal/observability"
	"userbase/internal/user"
)

type Options struct {
	LoadDotEnv bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole service: Mongo store, token manager, auth and user
// services, and the route table with the authentication gate and role checks
// composed explicitly per route.
func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	mongoURI, err := mustEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	adminCode, err := mustEnv("ADMIN_SIGNUP_CODE")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Warn("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	client, err := db.Connect(ctx, mongoURI)
	if err != nil {
		return nil, err
	}
	usersCol := db.Users(client, envOrDefault("MONGO_DB", "userbase"))
	if err := db.EnsureIndexes(ctx, usersCol); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	store := user.NewMongoStore(usersCol)
	tokens := auth.NewTokenManager(jwtSecret, envHoursOrDefault("ACCESS_TOKEN_TTL_HOURS", 24))

	authService := auth.NewService(store, tokens, adminCode)
	authService.WithLockoutConfig(
		envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		envMinutesOrDefault("LOGIN_LOCK_MINUTES", 120),
	)
	authHandler := auth.NewHandler(authService)

	if err := authService.BootstrapSuperAdmin(ctx, os.Getenv("SUPERADMIN_EMAIL"), os.Getenv("SUPERADMIN_PASSWORD")); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("bootstrap superadmin: %w", err)
	}

	userService := user.NewService(store)
	userHandler := user.NewHandler(userService)

	lockSweep := maintenance.NewLockSweepHandler(store, logger, os.Getenv("CRON_SECRET"))

	signinLimiter := auth.NewSignInRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	gate := func(h http.HandlerFunc) http.Handler {
		return auth.Gate(tokens, store, h)
	}
	adminTier := func(h http.HandlerFunc) http.Handler {
		return auth.Gate(tokens, store, auth.RequireRole(h, user.RoleAdmin, user.RoleSuperAdmin))
	}
	superadminOnly := func(h http.HandlerFunc) http.Handler {
		return auth.Gate(tokens, store, auth.RequireRole(h, user.RoleSuperAdmin))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/signup", authHandler.SignUp)
	mux.Handle("POST /auth/signin", signinLimiter.Middleware(http.HandlerFunc(authHandler.SignIn)))
	mux.Handle("POST /auth/logout", gate(authHandler.Logout))
	mux.Handle("GET /auth/me", gate(authHandler.Me))
	mux.Handle("POST /auth/refresh", gate(authHandler.Refresh))
	mux.Handle("POST /auth/change-password", gate(authHandler.ChangePassword))

	mux.Handle("GET /users/profile", gate(userHandler.GetProfile))
	mux.Handle("PUT /users/profile", gate(userHandler.UpdateProfile))
	mux.Handle("DELETE /users/profile", gate(userHandler.DeleteProfile))
	mux.Handle("GET /users/{id}", gate(userHandler.GetUser))

	mux.Handle("GET /admin/users", adminTier(userHandler.ListUsers))
	mux.Handle("GET /admin/users/{id}", adminTier(userHandler.GetUser))
	mux.Handle("PUT /admin/users/{id}", adminTier(userHandler.UpdateUser))
	mux.Handle("DELETE /admin/users/{id}", adminTier(userHandler.DeleteUser))
	mux.Handle("POST /admin/users/{id}/activate", adminTier(userHandler.ActivateUser))
	mux.Handle("POST /admin/users/{id}/deactivate", adminTier(userHandler.DeactivateUser))

	mux.Handle("GET /superadmin/users", superadminOnly(userHandler.ListUsers))
	mux.Handle("POST /superadmin/users", superadminOnly(authHandler.CreateUser))

	mux.HandleFunc("GET /internal/maintenance/cleanup", lockSweep.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", lockSweep.Handle)
	mux.HandleFunc("GET /health", healthHandler(client))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return client.Disconnect(context.Background())
		},
	}, nil
}

func healthHandler(client *mongo.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := client.Ping(ctx, nil); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
