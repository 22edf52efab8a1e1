// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/4ier/logodeth/internal/auth"
	"github.com/4ier/logodeth/internal/config"
	"github.com/4ier/logodeth/internal/middleware"
)

// version is set at build time.
var version = "dev"

// shutdownTimeout bounds how long in-flight requests may take to finish.
const shutdownTimeout = 10 * time.Second

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", os.Getenv("LOGODETH_CONFIG_FILE"), "path to a YAML config file")
	adminSubject := flag.String("admin-token", "", "print an admin bearer token for this subject and exit")
	adminTTL := flag.Duration("admin-token-ttl", auth.DefaultTokenExpiry, "lifetime of the token printed by -admin-token")
	flag.Parse()

	if *help {
		fmt.Println("LOGODETH API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	if *adminSubject != "" {
		token, err := issueAdminToken(cfg, *adminSubject, *adminTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		os.Exit(0)
	}

	logger := middleware.NewLogger(cfg.Environment, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Addr(), "error", err)
		a.close(context.Background())
		os.Exit(1)
	}

	err = serve(ctx, newServer(a.handler), ln, logger)
	a.close(context.Background())
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// issueAdminToken mints a token accepted by the admin routes of a server
// running with the same secret key.
func issueAdminToken(cfg *config.Config, subject string, ttl time.Duration) (string, error) {
	if cfg.SecretKey == "" || cfg.SecretKeyGenerated {
		return "", errors.New("secret_key is not configured, a token signed with a generated key would be rejected by the server")
	}
	return auth.NewJWTService(cfg.SecretKey, cfg.PreviousSecretKey).Issue(subject, auth.RoleAdmin, ttl)
}

func newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Model calls can take up to the client's 60s timeout.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// serve runs server on ln until ctx is cancelled, then shuts it down
// gracefully.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
