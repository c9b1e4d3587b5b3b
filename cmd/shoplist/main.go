package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shoplist/shoplist/internal/api"
	"github.com/shoplist/shoplist/internal/auth"
	"github.com/shoplist/shoplist/internal/classify"
	"github.com/shoplist/shoplist/internal/config"
	"github.com/shoplist/shoplist/internal/database"
	"github.com/shoplist/shoplist/internal/jobs"
	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/service"
	"github.com/shoplist/shoplist/internal/session"
)

const sessionSweepInterval = time.Hour

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shoplist",
		Short:         "Shopping list server with store-aware ordering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and organize workers",
		RunE:  runServe,
	}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE:  runMigrate,
	}
	createUserCmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user; the password is read from stdin",
		RunE:  runCreateUser,
	}
	createUserCmd.Flags().String("username", "", "username of the new user")
	_ = createUserCmd.MarkFlagRequired("username")

	root.AddCommand(serveCmd, migrateCmd, createUserCmd)
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return logged(err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return logged(fmt.Errorf("invalid config: %w", err))
	}
	tokenTTL, _ := cfg.TokenTTL()
	classifyTimeout, _ := cfg.ClassifierTimeout()
	retryDelay, _ := cfg.OrganizeRetryDelay()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceShutdown, err := initTracing(ctx)
	if err != nil {
		return logged(fmt.Errorf("init tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(shutdownCtx); err != nil {
			slog.Error("shutdown tracing", "error", err)
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		return logged(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	// Auto-migrate on startup
	if err := db.Migrate(ctx); err != nil {
		return logged(fmt.Errorf("migrate: %w", err))
	}

	sessions, closeSessions, err := openSessions(ctx, cfg, db)
	if err != nil {
		return logged(fmt.Errorf("open session store: %w", err))
	}
	defer closeSessions()

	classifier, err := classify.New(ctx, classify.Options{
		Provider: cfg.Classifier.Provider,
		Model:    cfg.Classifier.Model,
		APIKey:   cfg.Classifier.APIKey,
		BaseURL:  cfg.Classifier.BaseURL,
	})
	if err != nil {
		return logged(fmt.Errorf("create classifier: %w", err))
	}
	if classifier == nil {
		slog.Warn("no classifier configured; organize requests will fail")
	}

	organizer := service.NewOrganizeService(db, classifier, service.OrganizeOptions{
		Timeout:    classifyTimeout,
		Logger:     slog.Default(),
		Registerer: prometheus.DefaultRegisterer,
	})

	var queue *jobs.Queue
	var pool *jobs.WorkerPool
	if cfg.Organize.Workers > 0 {
		queue = jobs.NewQueue(db, jobs.QueueOptions{
			RetryDelay:  retryDelay,
			MaxAttempts: cfg.Organize.MaxAttempts,
		})
		pool = jobs.NewWorkerPool(queue, jobs.OrganizeProcessor(organizer, slog.Default()), jobs.WorkerPoolOptions{
			Workers:    cfg.Organize.Workers,
			JobTimeout: 2 * classifyTimeout,
			Logger:     slog.Default(),
		})
		if err := pool.Start(ctx); err != nil {
			return logged(fmt.Errorf("start organize workers: %w", err))
		}
	}

	authSvc := auth.NewService(cfg.Auth.JWTSecret, tokenTTL)
	server := api.NewServer(db, authSvc, api.ServerOptions{
		Sessions:           sessions,
		Organizer:          organizer,
		OrganizeQueue:      queue,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		Logger:             slog.Default(),
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2*classifyTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("shoplist listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return logged(fmt.Errorf("listen: %w", err))
		}
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown http server", "error", err)
	}
	if pool != nil {
		if err := pool.Stop(shutdownCtx); err != nil {
			slog.Error("stop organize workers", "error", err)
		}
	}
	return nil
}

// openSessions builds the configured session registry. The database
// registry also gets a background sweeper for expired rows.
func openSessions(ctx context.Context, cfg *config.Config, db database.DB) (session.Store, func(), error) {
	switch cfg.Auth.SessionBackend {
	case "redis":
		client, err := session.OpenRedis(ctx, cfg.Auth.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client, ""), func() { client.Close() }, nil
	default:
		store := session.NewDBStore(db)
		sweepCtx, cancel := context.WithCancel(ctx)
		go sweepSessions(sweepCtx, store, sessionSweepInterval)
		return store, cancel, nil
	}
}

func sweepSessions(ctx context.Context, store *session.DBStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Sweep(ctx)
			if err != nil {
				slog.Error("sweep expired sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("swept expired sessions", "count", n)
			}
		}
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return logged(err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return logged(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return logged(fmt.Errorf("migrate: %w", err))
	}
	slog.Info("migrations complete")
	return nil
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return logged(err)
	}
	username, _ := cmd.Flags().GetString("username")
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return logged(err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return logged(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()
	if err := db.Migrate(cmd.Context()); err != nil {
		return logged(fmt.Errorf("migrate: %w", err))
	}

	user, err := createUser(cmd.Context(), db, auth.NewService(cfg.Auth.JWTSecret, time.Hour), username, password)
	if err != nil {
		return logged(err)
	}
	slog.Info("user created", "user_id", user.ID, "username", user.Username)
	return nil
}

func createUser(ctx context.Context, db database.DB, authSvc *auth.Service, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if _, err := db.GetUserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("user %q already exists", username)
	}
	hash, err := authSvc.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{Username: username, PasswordHash: hash}
	if err := db.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// readPassword takes the first line of r with the line ending removed.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password is required on stdin")
	}
	return password, nil
}

func openDB(cfg *config.Config) (database.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return database.OpenSQLite(cfg.Database.DSN)
	case "postgres":
		return database.OpenPostgres(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func logged(err error) error {
	slog.Error("command failed", "error", err)
	return err
}
