package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ppiankov/admingate/internal/alert"
	"github.com/ppiankov/admingate/internal/audit"
	"github.com/ppiankov/admingate/internal/authn"
	"github.com/ppiankov/admingate/internal/config"
	"github.com/ppiankov/admingate/internal/gateway"
	"github.com/ppiankov/admingate/internal/metrics"
	"github.com/ppiankov/admingate/internal/ratelimit"
	"github.com/ppiankov/admingate/internal/schema"
	"github.com/ppiankov/admingate/internal/server"
	"github.com/ppiankov/admingate/internal/store"
)

var serveConfig string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Path to config YAML (default ~/.admingate/config.yaml)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long:  "Runs the privileged-operation gateway.\nEvery request passes authentication, rate limiting, schema validation,\nand injection detection before dispatch, and leaves one audit record.\nSupports hot-reload of rate-limit classes from the config file.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfig)
	if err != nil {
		return err
	}
	if cfg.IdentityURL == "" {
		return fmt.Errorf("identity_url must be set in the config")
	}

	for _, p := range []string{cfg.AuditLogPath, cfg.StorePath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}

	st, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	auditLog, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		mem := ratelimit.NewMemory()
		defer mem.Close()
		limiter = mem
	}

	gw := gateway.New(gateway.Options{
		Verifier: authn.New(authn.NewHTTPProvider(cfg.IdentityURL), st),
		Limiter:  limiter,
		Schemas:  schema.MustRegistry(),
		Store:    st,
		AuditLog: auditLog,
		Alerts:   alert.NewDispatcher(cfg.Alerts),
		Metrics:  metrics.NewProm("admingate"),
		General:  ratelimit.Class{Name: "general", Limit: cfg.RateLimits.General.Limit, Window: cfg.RateLimits.General.Window},
		Admin:    ratelimit.Class{Name: "admin", Limit: cfg.RateLimits.Admin.Limit, Window: cfg.RateLimits.Admin.Window},
	})

	srv := server.New(cfg, gw, serveConfig)

	// Hot-reload of rate-limit classes from the config file
	reloader, err := server.NewReloader(srv, []string{serveConfig})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if reloader != nil {
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gateway...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "admingate listening on %s\n", cfg.ListenAddr)
	if cfg.RedisAddr != "" {
		fmt.Fprintf(os.Stderr, "Rate limiter: redis (%s)\n", cfg.RedisAddr)
	}
	if serveConfig != "" {
		fmt.Fprintf(os.Stderr, "Config: %s (hot-reload enabled)\n", serveConfig)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Serve()
}
