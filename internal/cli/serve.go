package cli

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/google/subcommands"
	"github.com/nikolayk812/biashara-pos/internal/web"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the cashier front-end over HTTP" }
func (*serveCmd) Usage() string {
	return `serve [-addr <host:port>]

  Serves the cashier JSON front-end. Protected routes answer 202 while the
  persisted session is being verified and redirect to /login once it is not valid.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address, overrides BIASHARA_LISTEN_ADDR")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	engine, err := a.newEngine()
	if err != nil {
		return fail(err)
	}
	defer engine.Close()

	addr := c.addr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           web.NewRouter(web.NewHandler(a.guard, engine, a.client, a.logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.guard.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("cashier front-end listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("server failed", zap.Error(err))
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	case <-ctx.Done():
	}

	a.logger.Info("shutting down cashier front-end")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server forced to shutdown", zap.Error(err))
		return subcommands.ExitFailure
	}

	a.logger.Info("cashier front-end stopped")
	return subcommands.ExitSuccess
}
