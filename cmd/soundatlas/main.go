package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/soundatlas/soundatlas/internal/api"
	"github.com/soundatlas/soundatlas/internal/auth"
	"github.com/soundatlas/soundatlas/internal/config"
	"github.com/soundatlas/soundatlas/internal/database"
	"github.com/soundatlas/soundatlas/internal/encryption"
	"github.com/soundatlas/soundatlas/internal/logging"
	"github.com/soundatlas/soundatlas/internal/musicbrainz"
	"github.com/soundatlas/soundatlas/internal/origincache"
	"github.com/soundatlas/soundatlas/internal/resolve"
	"github.com/soundatlas/soundatlas/internal/spotify"
	"github.com/soundatlas/soundatlas/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; deployments normally use real environment variables.
	_ = godotenv.Load()

	configPath := os.Getenv("SA_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		return fmt.Errorf("spotify credentials are required (SA_SPOTIFY_CLIENT_ID / SA_SPOTIFY_CLIENT_SECRET)")
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	// Resolve encryption key: env var > file > generate new
	encKey, err := resolveEncryptionKey(filepath.Dir(cfg.Database.Path), logger)
	if err != nil {
		return fmt.Errorf("resolving encryption key: %w", err)
	}
	encryptor, _, err := encryption.NewEncryptor(encKey)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	// Initialize services
	authService := auth.NewService(db, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL, encryptor, logger)
	cacheService := origincache.NewService(db, time.Duration(cfg.Cache.ValidityDays)*24*time.Hour, logger)
	mbClient := musicbrainz.NewWithBaseURL(cfg.MusicBrainz.BaseURL, cfg.MusicBrainz.Contact, logger)
	resolver := resolve.New(cacheService, mbClient, logger)
	spotifyClient := spotify.New(logger)

	logger.Info("starting soundatlas",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	router := api.NewRouter(api.RouterDeps{
		AuthService:   authService,
		SpotifyClient: spotifyClient,
		Resolver:      resolver,
		OriginCache:   cacheService,
		Logger:        logger,
		BasePath:      cfg.Server.BasePath,
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	handler := router.Handler(ctx)

	// Re-apply logging settings when the config file changes on disk.
	go func() {
		watchErr := config.Watch(ctx, configPath, logger, func(newCfg *config.Config) {
			logManager.Reconfigure(logging.Config{
				Level:    newCfg.Logging.Level,
				Format:   newCfg.Logging.Format,
				FilePath: newCfg.Logging.FilePath,
			})
		})
		if watchErr != nil {
			logger.Warn("config watcher stopped", "error", watchErr)
		}
	}()

	// Session cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := authService.CleanExpiredSessions(ctx); err != nil {
					logger.Error("session cleanup failed", "error", err)
				}
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Resolution passes are rate-limited to ~1 upstream request per
		// second, so a large miss set legitimately takes minutes.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// resolveEncryptionKey determines the key protecting stored refresh tokens.
// Priority: SA_ENCRYPTION_KEY env var > key file next to the database >
// generate new and persist.
func resolveEncryptionKey(dataDir string, logger *slog.Logger) (string, error) {
	if key := os.Getenv("SA_ENCRYPTION_KEY"); key != "" {
		return key, nil
	}

	keyFile := filepath.Join(dataDir, "encryption.key")

	data, err := os.ReadFile(keyFile) //nolint:gosec // G304: path derived from trusted config
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key != "" {
			logger.Debug("loaded encryption key from file", slog.String("path", keyFile))
			return key, nil
		}
	}

	_, key, err := encryption.NewEncryptor("")
	if err != nil {
		return "", fmt.Errorf("generating encryption key: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		logger.Warn("could not create data directory for encryption key",
			slog.String("path", dataDir), slog.Any("error", err))
		return key, nil
	}

	if err := os.WriteFile(keyFile, []byte(key+"\n"), 0o600); err != nil {
		logger.Warn("could not save encryption key to file",
			slog.String("path", keyFile), slog.Any("error", err))
	} else {
		logger.Warn("generated new encryption key -- back up this file",
			slog.String("path", keyFile))
	}

	return key, nil
}
