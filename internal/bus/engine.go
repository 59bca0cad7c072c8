// internal/bus/engine.go
//
// NATS transport for the word-check engine.
// ServeEngine puts an Engine behind a subject; EngineClient is the
// orchestrator's EngineRef on the other side.
//
// Wire format: JSON game.CheckRequest on the engine subject, JSON
// engine.CheckReply on the request's reply subject. Requests are
// fire-and-forget; the client never blocks on a reply.

package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/gamesession/internal/engine"
	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
)

// EngineQueue is the queue group engine subscribers join, so each request is
// scored by exactly one engine process.
const EngineQueue = "engine"

// ServeEngine subscribes eng to subject. Replies go to each message's reply
// subject; messages without one are dropped. The returned subscription is
// owned by the caller.
func ServeEngine(ctx context.Context, nc *nats.Conn, subject string, eng *engine.Engine) (*nats.Subscription, error) {
	sub, err := nc.QueueSubscribe(subject, EngineQueue, func(m *nats.Msg) {
		if m.Reply == "" {
			log.Warn().Str("subject", m.Subject).Msg("engine: request without reply subject")
			return
		}
		var req game.CheckRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			log.Warn().Err(err).Msg("engine: undecodable request")
			return
		}
		reply := m.Reply
		err := eng.Submit(ctx, req, func(rep engine.CheckReply) {
			data, err := json.Marshal(rep)
			if err != nil {
				log.Error().Err(err).Str("request", rep.RequestID).Msg("engine: encode reply")
				return
			}
			if err := nc.Publish(reply, data); err != nil {
				log.Warn().Err(err).Str("request", rep.RequestID).Msg("engine: publish reply")
			}
		})
		if err != nil {
			log.Warn().Err(err).Str("request", req.RequestID).Msg("engine: submit")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	log.Info().Str("subject", subject).Str("queue", EngineQueue).Msg("engine serving")
	return sub, nil
}

// EngineClient sends checks to a remote engine and feeds its replies to a
// ReplyHandler. It implements session.EngineRef.
type EngineClient struct {
	nc      *nats.Conn
	subject string
	inbox   string
	sub     *nats.Subscription
}

// NewEngineClient subscribes a private reply inbox on nc and returns a client
// for the engine at subject.
func NewEngineClient(nc *nats.Conn, subject string, h engine.ReplyHandler) (*EngineClient, error) {
	inbox := nc.NewInbox()
	sub, err := nc.Subscribe(inbox, func(m *nats.Msg) {
		var rep engine.CheckReply
		if err := json.Unmarshal(m.Data, &rep); err != nil {
			log.Warn().Err(err).Msg("engine client: undecodable reply")
			return
		}
		h.HandleReply(rep)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe reply inbox: %w", err)
	}
	return &EngineClient{nc: nc, subject: subject, inbox: inbox, sub: sub}, nil
}

// Ref returns the engine subject.
func (c *EngineClient) Ref() string { return c.subject }

// Dispatch publishes req with the client's inbox as reply subject.
func (c *EngineClient) Dispatch(ctx context.Context, req game.CheckRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := c.nc.PublishRequest(c.subject, c.inbox, data); err != nil {
		return fmt.Errorf("publish %s: %w", c.subject, err)
	}
	return nil
}

// Close drops the reply subscription.
func (c *EngineClient) Close() error {
	return c.sub.Unsubscribe()
}
