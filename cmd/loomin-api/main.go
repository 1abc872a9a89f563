package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomin-app/backend/internal/auth"
	"github.com/loomin-app/backend/internal/config"
	"github.com/loomin-app/backend/internal/database"
	"github.com/loomin-app/backend/internal/identity"
	"github.com/loomin-app/backend/internal/logging"
	"github.com/loomin-app/backend/internal/messages"
	"github.com/loomin-app/backend/internal/notifications"
	"github.com/loomin-app/backend/internal/posts"
	"github.com/loomin-app/backend/internal/realtime"
	"github.com/loomin-app/backend/internal/server"
	"github.com/loomin-app/backend/internal/storage"
	"github.com/loomin-app/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loomin-api",
		Short: "Loomin social backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().StringSlice("allowed-origins", defaults.GetStringSlice("http.allowed_origins"), "Allowed CORS origins")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("uploads-dir", defaults.GetString("uploads.dir"), "Directory for uploaded images")
	cmd.PersistentFlags().Int("token-ttl-hours", defaults.GetInt("auth.token_ttl_hours"), "Session token TTL in hours")
	cmd.PersistentFlags().String("cookie-name", defaults.GetString("auth.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().String("realtime-auth-mode", defaults.GetString("realtime.auth_mode"), "Websocket auth mode (strict, permissive)")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "uploads.dir", "uploads-dir")
	bindFlag(cmd, "auth.token_ttl_hours", "token-ttl-hours")
	bindFlag(cmd, "auth.cookie_name", "cookie-name")
	bindFlag(cmd, "realtime.auth_mode", "realtime-auth-mode")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "loomin-auth",
		Audience:      "loomin-api",
		TokenTTL:      time.Duration(appConfig.TokenTTLHours) * time.Hour,
	})

	imageStore, err := storage.NewFilesystemImageStore(appConfig.UploadDir, "/uploads")
	if err != nil {
		return err
	}

	idProvider := identity.NewUUIDProvider()

	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	postsService, err := posts.NewService(posts.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	messagesService, err := messages.NewService(messages.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	notificationsService, err := notifications.NewService(notifications.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, logger)
	hub := realtime.NewHub(registry, logger)
	authenticator, err := realtime.NewAuthenticator(realtime.AuthenticatorConfig{
		Mode:       appConfig.RealtimeAuthMode,
		Tokens:     tokenManager,
		Users:      usersService,
		CookieName: appConfig.SessionCookie,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Users:          usersService,
		Posts:          postsService,
		Messages:       messagesService,
		Notifications:  notificationsService,
		TokenManager:   tokenManager,
		Images:         imageStore,
		Hub:            hub,
		Dispatcher:     dispatcher,
		Authenticator:  authenticator,
		Logger:         logger,
		SessionCookie:  appConfig.SessionCookie,
		AllowedOrigins: appConfig.AllowedOrigins,
		UploadDir:      appConfig.UploadDir,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
