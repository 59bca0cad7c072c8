package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/wordle/apps/gamesession/internal/engine"
	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func connect(t *testing.T, srv *natsserver.Server) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

type replies chan engine.CheckReply

func (r replies) HandleReply(rep engine.CheckReply) { r <- rep }

func runEngine(t *testing.T, p engine.Picker) *engine.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(p)
	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-eng.Done()
	})
	return eng
}

func TestEngineRoundTrip(t *testing.T) {
	srv := startTestNATSServer(t)
	ctx := context.Background()

	eng := runEngine(t, engine.FixedPicker("horse"))
	sub, err := ServeEngine(ctx, connect(t, srv), "wordle.engine", eng)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	got := make(replies, 4)
	client, err := NewEngineClient(connect(t, srv), "wordle.engine", got)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "wordle.engine", client.Ref())

	require.NoError(t, client.Dispatch(ctx, game.CheckRequest{RequestID: "r1", UserID: "u1", Word: "house"}))

	select {
	case rep := <-got:
		assert.Equal(t, "r1", rep.RequestID)
		assert.Equal(t, "u1", rep.UserID)
		assert.Equal(t, []int{0, 1, 3, 4}, rep.CorrectPositions)
		assert.Empty(t, rep.ContainedInWord)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
}

func TestEngineDropsMalformedRequests(t *testing.T) {
	srv := startTestNATSServer(t)
	ctx := context.Background()

	eng := runEngine(t, engine.FixedPicker("horse"))
	sub, err := ServeEngine(ctx, connect(t, srv), "wordle.engine", eng)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	nc := connect(t, srv)
	got := make(replies, 4)
	client, err := NewEngineClient(nc, "wordle.engine", got)
	require.NoError(t, err)

	require.NoError(t, nc.PublishRequest("wordle.engine", client.inbox, []byte("not json")))
	require.NoError(t, client.Dispatch(ctx, game.CheckRequest{RequestID: "r1", UserID: "u1", Word: "HOUSE"}))
	require.NoError(t, client.Dispatch(ctx, game.CheckRequest{RequestID: "r2", UserID: "u1", Word: "horse"}))

	select {
	case rep := <-got:
		assert.Equal(t, "r2", rep.RequestID)
		assert.Len(t, rep.CorrectPositions, game.WordLength)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
	select {
	case rep := <-got:
		t.Fatalf("unexpected reply %+v", rep)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatchHonoursContext(t *testing.T) {
	srv := startTestNATSServer(t)
	client, err := NewEngineClient(connect(t, srv), "wordle.engine", make(replies, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.Dispatch(ctx, game.CheckRequest{RequestID: "r", UserID: "u", Word: "house"}), context.Canceled)
}

func TestEventPublisher(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	sub, err := nc.SubscribeSync("wordle.events.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	pub := NewEventPublisher(connect(t, srv), "wordle.events")
	pub.Notify(game.CheckWordResult("u.1", game.Feedback{CorrectPositions: []int{0}, ContainedInWord: []int{2}}))
	pub.Notify(game.GameOver("u.1", game.Win))

	m, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "wordle.events.u_1", m.Subject)
	assert.JSONEq(t, `{"type":"check_word_result","userId":"u.1","correct_positions":[0],"contained_in_word":[2]}`, string(m.Data))

	m, err = sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.Unmarshal(m.Data, &body))
	assert.Equal(t, "game_over", body["type"])
	assert.Equal(t, "win", body["outcome"])
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "_", subjectToken(""))
	assert.Equal(t, "a_b_c_", subjectToken("a.b*c>"))
	assert.Equal(t, "7c1f", subjectToken("7c1f"))
}

func TestStartEmbedded(t *testing.T) {
	srv, err := StartEmbedded(EmbeddedOptions{})
	require.NoError(t, err)
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	assert.True(t, nc.IsConnected())
}
