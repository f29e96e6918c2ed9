package jobs

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/lockboxlabs/warden/internal/config"
	"github.com/lockboxlabs/warden/internal/repository"
)

// StartSessionSweeper runs the expired-session sweep on a ticker. The sweep
// is storage hygiene only: validity is checked at read time, so a missed
// tick never admits an expired session.
func StartSessionSweeper(lc fx.Lifecycle, cfg config.Config, sessions repository.SessionRepository, logger *zap.Logger) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		return
	}

	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-runCtx.Done():
						return
					case <-ticker.C:
						sweep(runCtx, sessions, logger)
					}
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func sweep(ctx context.Context, sessions repository.SessionRepository, logger *zap.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	count, err := sessions.DeleteExpired(sweepCtx, time.Now())
	if err != nil {
		logger.Warn("session sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		logger.Info("session sweep completed", zap.Int64("deleted", count))
	}
}
