package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/roblesdotdev/epic-notes/internal/config"
	"github.com/roblesdotdev/epic-notes/internal/cookies"
	"github.com/roblesdotdev/epic-notes/internal/crypto"
	"github.com/roblesdotdev/epic-notes/internal/handler"
	"github.com/roblesdotdev/epic-notes/internal/logging"
	"github.com/roblesdotdev/epic-notes/internal/mail"
	"github.com/roblesdotdev/epic-notes/internal/middleware"
	"github.com/roblesdotdev/epic-notes/internal/model"
	"github.com/roblesdotdev/epic-notes/internal/oauth"
	"github.com/roblesdotdev/epic-notes/internal/repository"
	"github.com/roblesdotdev/epic-notes/internal/repository/memory"
	"github.com/roblesdotdev/epic-notes/internal/service"
)

// mockProfile is the identity the mock GitHub provider signs in as.
var mockProfile = model.ProviderProfile{
	ID:       "mock-github-user",
	Email:    "kody@example.com",
	Username: "kody",
	Name:     "Kody the Koala",
}

type stores struct {
	users         service.UserStore
	sessions      service.SessionStore
	verifications service.VerificationStore
	connections   service.ConnectionStore
}

func openStores(ctx context.Context, cfg config.Config) (stores, func(), error) {
	if cfg.DatabaseDSN == "" {
		slog.Warn("DATABASE_DSN not set, using in-memory store")
		s := memory.New()
		return stores{s.Users(), s.Sessions(), s.Verifications(), s.Connections()}, func() {}, nil
	}

	db, err := repository.NewDB(cfg.DatabaseDSN)
	if err != nil {
		return stores{}, nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return stores{}, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Error("closing database", "error", err)
		}
	}
	return stores{
		users:         repository.NewUserRepository(db),
		sessions:      repository.NewSessionRepository(db),
		verifications: repository.NewVerificationRepository(db),
		connections:   repository.NewConnectionRepository(db),
	}, closeDB, nil
}

func newMailer(cfg config.Config) service.Mailer {
	if cfg.SMTPHost == "" {
		slog.Warn("SMTP_HOST not set, emails will be logged")
		return mail.LogMailer{Logger: slog.Default()}
	}
	return mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
}

func newProviders(cfg config.Config) *oauth.Registry {
	if oauth.IsMockClientID(cfg.GitHubClientID) {
		slog.Warn("using mock GitHub provider", "client_id", cfg.GitHubClientID)
		return oauth.NewRegistry(oauth.NewMock(cfg.GitHubRedirectURL, mockProfile))
	}
	return oauth.NewRegistry(oauth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL))
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Env))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	signer, err := crypto.NewCookieSigner(cfg.SessionSecret)
	if err != nil {
		slog.Error("cookie signer setup failed", "error", err)
		os.Exit(1)
	}
	jar := cookies.NewJar(signer, cfg.IsProduction())

	sessions := service.NewSessionService(st.sessions, cfg.SessionTTL)
	verifications := service.NewVerificationService(st.verifications, cfg.AppURL, cfg.TOTPIssuer)
	twoFactor := service.NewTwoFactorService(st.verifications, st.users, cfg.TOTPIssuer)
	auth := service.NewAuthService(st.users, sessions, verifications, twoFactor, newMailer(cfg))
	connections := service.NewConnectionService(st.connections, st.users, sessions)

	router := handler.NewRouter(handler.Deps{
		Auth:          auth,
		Sessions:      sessions,
		Verifications: verifications,
		TwoFactor:     twoFactor,
		Connections:   connections,
		Providers:     newProviders(cfg),
		Jar:           jar,
		RateLimiter:   middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "app_url", cfg.AppURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
