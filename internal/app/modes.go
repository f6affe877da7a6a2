package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tempoledger/tempod/internal/server"
	"github.com/tempoledger/tempod/internal/server/handler"
	"github.com/tempoledger/tempod/internal/server/ws"
	"github.com/tempoledger/tempod/internal/service"
)

// shutdownGrace is how long in-flight HTTP requests get to finish after the
// run context is cancelled.
const shutdownGrace = 10 * time.Second

// ServerMode runs the HTTP + WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return waitGroup(g)
}

// ArchiveMode runs only the periodic change-record archival loop.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return errors.New("app: archive mode requires s3.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveLoop(ctx, g, deps)
	return waitGroup(g)
}

// FullMode runs every subsystem: the HTTP + WebSocket API and, when S3 is
// enabled, the archival loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	if deps.Archiver != nil {
		a.startArchiveLoop(ctx, g, deps)
	}

	return waitGroup(g)
}

// startHTTPServer builds the handlers, the WebSocket hub, and the server, and
// registers their goroutines on the group.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, service.EventChannel, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.PG,
			"redis":    deps.Redis,
		}, a.logger),
		Mints:        handler.NewMintHandler(deps.Ledger, a.logger),
		Accounts:     handler.NewAccountHandler(deps.Ledger, a.logger),
		Transactions: handler.NewTransactionHandler(deps.Ledger, a.logger),
		Events:       handler.NewEventHandler(deps.Ledger, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startArchiveLoop periodically uploads change records older than the
// retention window to object storage and, when configured, prunes them from
// the primary store afterwards.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				count, err := deps.Archiver.ArchiveEvents(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "archive: upload failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				if count == 0 || !a.cfg.Archive.Prune {
					continue
				}
				if _, err := deps.Archiver.Prune(ctx, cutoff); err != nil {
					a.logger.ErrorContext(ctx, "archive: prune failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})
}

// waitGroup blocks on the group and swallows context cancellation, which is
// the normal shutdown path.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
