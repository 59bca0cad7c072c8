// engine_cmd.go
//
// The engine command: a standalone word-check engine serving checks on NATS.

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/wordle/apps/gamesession/internal/bus"
	"github.com/robalobadob/wordle/apps/gamesession/internal/engine"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Run a standalone word-check engine on NATS",
	Long: `Run a word-check engine subscribed to ENGINE_SUBJECT.

Several engines may share a subject; each request is handled by one of them.
A player's secret lives in whichever engine first scored a word for them, so
run a single engine per subject unless players are pinned some other way.

Examples:
  gamesession engine --nats-url nats://localhost:4222`,
	RunE: runEngine,
}

func runEngine(cmd *cobra.Command, args []string) error {
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
	picker, err := newPicker(cfg, wl)
	if err != nil {
		return err
	}

	nc, closeNATS, err := connectNATS(cfg)
	if err != nil {
		return err
	}
	defer closeNATS()

	eng := engine.New(picker)
	sub, err := bus.ServeEngine(ctx, nc, cfg.EngineSubject, eng)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	log.Info().Str("subject", cfg.EngineSubject).Str("picker", cfg.EnginePicker).Msg("engine running")
	_ = eng.Run(ctx)
	log.Info().Msg("engine stopped")
	return nil
}
