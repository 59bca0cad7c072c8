// serve.go
//
// The serve command: wires word lists, SQLite, NATS, the engine (unless
// remote) and the orchestrator behind the HTTP API.

package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/wordle/apps/gamesession/internal/bus"
	"github.com/robalobadob/wordle/apps/gamesession/internal/database"
	"github.com/robalobadob/wordle/apps/gamesession/internal/engine"
	"github.com/robalobadob/wordle/apps/gamesession/internal/history"
	"github.com/robalobadob/wordle/apps/gamesession/internal/httpserver"
	"github.com/robalobadob/wordle/apps/gamesession/internal/notify"
	"github.com/robalobadob/wordle/apps/gamesession/internal/scheduler"
	"github.com/robalobadob/wordle/apps/gamesession/internal/session"
	"github.com/robalobadob/wordle/apps/gamesession/internal/store"
	"github.com/robalobadob/wordle/apps/gamesession/internal/users"
)

var remoteEngine bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session orchestrator and HTTP API",
	Long: `Run the session orchestrator and its HTTP API.

Examples:
  # Single binary: embedded NATS, in-process engine
  gamesession serve

  # Shared broker, engine running as its own process
  gamesession serve --nats-url nats://localhost:4222 --remote-engine`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	wl, err := loadWords(cfg)
	if err != nil {
		return err
	}
	a, g := wl.Stats()
	log.Info().Int("answers", a).Int("allowed", g).Msg("word lists loaded")

	db, err := database.OpenAndMigrate(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	us, hs := users.NewStore(db), history.NewStore(db)

	nc, closeNATS, err := connectNATS(cfg)
	if err != nil {
		return err
	}
	defer closeNATS()

	if !remoteEngine {
		picker, err := newPicker(cfg, wl)
		if err != nil {
			return err
		}
		eng := engine.New(picker)
		go func() { _ = eng.Run(ctx) }()
		sub, err := bus.ServeEngine(ctx, nc, cfg.EngineSubject, eng)
		if err != nil {
			return err
		}
		defer func() { _ = sub.Unsubscribe() }()
	}

	feed := notify.NewFeed(0)
	events := bus.NewEventPublisher(nc, cfg.EventsSubject)
	orch := session.New(store.NewMemoryStore(), scheduler.Real(), notify.Multi{feed, events},
		session.WithTimeout(cfg.GameTimeout()),
		session.WithRecorder(hs),
	)

	client, err := bus.NewEngineClient(nc, cfg.EngineSubject, orch)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	if err := orch.Init(client); err != nil {
		return err
	}

	srv := httpserver.New(orch, feed, wl, us, hs, httpserver.Options{
		JWTSecret:     cfg.JWTSecret,
		JWTTTL:        cfg.JWTTTL(),
		CookieName:    cfg.CookieName,
		ClientOrigin:  cfg.ClientOrigin,
		SecureCookies: cfg.SecureCookies(),
		GameTimeout:   cfg.GameTimeout(),
		CheckWait:     cfg.CheckWaitTimeout,
		RatePerSec:    cfg.CheckRatePerSec,
		RateBurst:     cfg.CheckRateBurst,
		DebugToken:    cfg.DebugToken,
	})

	log.Info().Str("port", cfg.Port).Str("engine", cfg.EngineSubject).
		Bool("remote_engine", remoteEngine).Dur("timeout", cfg.GameTimeout()).
		Msg("starting gamesession")
	if err := srv.Run(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("gamesession stopped")
	return nil
}
