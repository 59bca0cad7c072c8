// internal/bus/embedded.go
//
// In-process NATS server for single-binary runs.

package bus

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog/log"
)

// EmbeddedOptions configures StartEmbedded.
type EmbeddedOptions struct {
	Host string // default 127.0.0.1
	Port int    // -1 picks a free port
}

// StartEmbedded runs an in-process NATS server and waits until it accepts
// connections. Callers Shutdown it.
func StartEmbedded(o EmbeddedOptions) (*natsserver.Server, error) {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Port == 0 {
		o.Port = -1
	}
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   o.Host,
		Port:   o.Port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("nats server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("nats server not ready")
	}
	log.Info().Str("url", srv.ClientURL()).Msg("embedded nats started")
	return srv, nil
}
