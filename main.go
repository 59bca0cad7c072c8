// main.go
//
// Entry point for the game session service.
// Commands:
//   - serve:   orchestrator + HTTP API, with the engine in-process or remote.
//   - engine:  standalone word-check engine on NATS.
//   - version: print the build version.
//
// Configuration comes from the environment (see internal/config), seeded
// from a .env file when present.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/wordle/apps/gamesession/assets"
	"github.com/robalobadob/wordle/apps/gamesession/internal/bus"
	"github.com/robalobadob/wordle/apps/gamesession/internal/config"
	"github.com/robalobadob/wordle/apps/gamesession/internal/engine"
	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
	"github.com/robalobadob/wordle/apps/gamesession/internal/words"
)

var version = "dev"

// Flag overrides applied on top of the environment.
var (
	flagPort    string
	flagNATSURL string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gamesession",
	Short: "Word-guessing game session service",
	Long: `gamesession runs per-player word-guessing games.

The serve command hosts the session orchestrator and its HTTP API. Word
checks go to an engine over NATS; by default serve starts an embedded NATS
server and an in-process engine so a single binary is a complete stack.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagNATSURL, "nats-url", "", "NATS server URL (overrides NATS_URL; empty runs an embedded server)")
	serveCmd.Flags().StringVar(&flagPort, "port", "", "HTTP port (overrides PORT)")
	serveCmd.Flags().BoolVar(&remoteEngine, "remote-engine", false, "do not start an in-process engine; use one running elsewhere on NATS")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(engineCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env, the environment and flag overrides, then sets up logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if flagNATSURL != "" {
		cfg.NATSURL = flagNATSURL
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connectNATS dials cfg.NATSURL, or starts an embedded server when it is
// empty. The returned cleanup closes everything it opened.
func connectNATS(cfg config.Config) (*nats.Conn, func(), error) {
	url := cfg.NATSURL
	var shutdown func()
	if url == "" {
		srv, err := bus.StartEmbedded(bus.EmbeddedOptions{})
		if err != nil {
			return nil, nil, err
		}
		url = srv.ClientURL()
		shutdown = func() {
			srv.Shutdown()
			srv.WaitForShutdown()
		}
	}

	nc, err := nats.Connect(url,
		nats.Name("gamesession"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		if shutdown != nil {
			shutdown()
		}
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	log.Info().Str("url", url).Msg("connected to nats")

	return nc, func() {
		_ = nc.Drain()
		if shutdown != nil {
			shutdown()
		}
	}, nil
}

// loadWords returns the configured word lists, falling back to the embedded ones.
func loadWords(cfg config.Config) (*words.Lists, error) {
	if cfg.AnswersFile != "" {
		return words.LoadFiles(cfg.AnswersFile, cfg.AllowedFile)
	}
	return assets.Load()
}

func newPicker(cfg config.Config, wl *words.Lists) (engine.Picker, error) {
	switch strings.ToLower(cfg.EnginePicker) {
	case config.PickerFixed:
		answer := strings.ToLower(strings.TrimSpace(cfg.EngineAnswer))
		if err := game.ValidateWord(answer); err != nil {
			return nil, fmt.Errorf("ENGINE_ANSWER: %w", err)
		}
		return engine.FixedPicker(answer), nil
	case config.PickerDaily:
		return engine.DailyPicker(wl, cfg.DailySalt, func() time.Time { return time.Now().UTC() }), nil
	default:
		return engine.RandomPicker(wl), nil
	}
}
