package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/devlog-hq/devlog/internal/bootstrap"
	"github.com/devlog-hq/devlog/internal/config"
	"github.com/devlog-hq/devlog/internal/modules/service"
	"github.com/devlog-hq/devlog/internal/router"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			inj, err := boot()
			if err != nil {
				return err
			}
			defer shutdown(inj)
			return serve(cmd.Context(), inj)
		},
	}
}

func serve(parent context.Context, inj *do.Injector) error {
	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)

	// open the database eagerly so a bad DSN fails before we listen
	if _, err := do.Invoke[*gorm.DB](inj); err != nil {
		return err
	}
	if _, err := bootstrap.EnsureDefaultForums(parent, do.MustInvoke[service.ForumService](inj), log); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.App.Addr(),
		Handler:           router.NewRouter(bootstrap.RouterDeps(inj)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
