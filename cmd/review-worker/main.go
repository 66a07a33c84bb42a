package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicstack/availability-engine/internal/booking"
	"github.com/clinicstack/availability-engine/internal/config"
	"github.com/clinicstack/availability-engine/internal/db"
	redisclient "github.com/clinicstack/availability-engine/internal/redis"
	"github.com/clinicstack/availability-engine/internal/session"
)

// review-worker periodically sweeps booked appointments against their
// doctor's current session grid and flags the ones a session edit has
// stranded. The inline flagging on session update covers the common case;
// this catches anything that slipped through (crashed requests, manual DB
// edits).
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "review-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PgMaxConns)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	sessions := session.NewPgRepository(pgPool)
	ledger := booking.NewLedger(booking.NewPgRepository(pgPool), redisclient.NewLocalLocker(), log)

	// Run once at startup
	runOnce(rootCtx, sessions, ledger, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping review worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, sessions, ledger, log)
		}
	}
}

func runOnce(ctx context.Context, sessions session.Repository, ledger *booking.Ledger, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	active, err := sessions.ListActive(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("list active sessions")
		return
	}

	total := 0
	for i := range active {
		n, err := ledger.FlagOutOfGrid(runCtx, &active[i])
		if err != nil {
			log.Error().Err(err).Stringer("session_id", active[i].ID).Msg("flag sweep failed")
			continue
		}
		total += n
	}

	log.Info().Int("sessions", len(active)).Int("flagged", total).Dur("took", time.Since(start)).Msg("review sweep complete")
}
