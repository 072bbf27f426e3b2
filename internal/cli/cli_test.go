package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/mcoot/regwhelp/internal/api"
	"github.com/mcoot/regwhelp/internal/command"
	"github.com/mcoot/regwhelp/internal/dependencies/clock"
	"github.com/mcoot/regwhelp/internal/dependencies/mocks"
	"github.com/mcoot/regwhelp/internal/events"
	"github.com/mcoot/regwhelp/internal/gateway"
	"github.com/mcoot/regwhelp/internal/host"
	"github.com/mcoot/regwhelp/internal/model"
	"github.com/mcoot/regwhelp/internal/services/session"
	"github.com/mcoot/regwhelp/internal/testutil"
	"github.com/mcoot/regwhelp/internal/world"
)

type testEnv struct {
	server   *httptest.Server
	store    *mocks.MockRecordStore
	sessions *session.Manager
}

func newTestEnv(t *testing.T, adminToken string) *testEnv {
	t.Helper()

	bus := events.NewBus(testutil.NopLogger())
	w := world.New(bus, clock.New(), testutil.NopLogger())
	dispatcher := command.NewDispatcher()
	dispatcher.Register(command.Command{Name: "echo", Handler: func(_ context.Context, p host.Player, args []string) error {
		p.SendMessage("echo: " + strings.Join(args, " "))
		return nil
	}})

	env := &testEnv{store: mocks.NewMockRecordStore(), sessions: session.NewManager()}
	env.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:     testutil.NopLogger(),
		Store:      env.store,
		Sessions:   env.sessions,
		Gateway:    gateway.NewHandler(w, dispatcher, gateway.Config{CommandRate: rate.Inf, CommandBurst: 1}, testutil.NopLogger()),
		AdminToken: adminToken,
	}))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--server", e.server.URL,
		"--token-file", filepath.Join(t.TempDir(), "token"),
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "health")
	require.NoError(t, err)
	assert.Equal(t, "Status: ok\n", out)
}

func TestRegistrationCommands(t *testing.T) {
	env := newTestEnv(t, "admin")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := model.NewRecord("anna", now)
	require.NoError(t, rec.BindExternalAccount("anna-web", "#0123456789", now))
	require.NoError(t, env.store.CreateRecord(context.Background(), rec))

	_, err := env.run(t, "registration", "list")
	require.Error(t, err, "admin routes need the token")

	out, err := env.run(t, "--token", "admin", "-o", "json", "registration", "get", "anna")
	require.NoError(t, err)
	var got Registration
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "anna-web", got.ExternalAccount)
	assert.True(t, got.HasToken)
	assert.False(t, got.Validated)

	out, err = env.run(t, "--token", "admin", "reg", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ACCOUNT")
	assert.Contains(t, out, "anna-web")

	_, err = env.run(t, "--token", "admin", "registration", "get", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECORD_NOT_FOUND")
}

func TestSessionsCommand(t *testing.T) {
	env := newTestEnv(t, "")
	env.sessions.Get(mocks.NewMockPlayer("p-1", "anna", "Anna"))

	out, err := env.run(t, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "Anna")

	out, err = env.run(t, "sessions", "p-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Player: Anna (p-1)")

	_, err = env.run(t, "sessions", "p-2")
	assert.Error(t, err)
}

func TestPlaySession(t *testing.T) {
	env := newTestEnv(t, "")
	c := NewClient(env.server.URL, "")
	conn, _, err := websocket.DefaultDialer.Dial(c.WebsocketURL("/ws?account=anna&name=Anna&region=elwynn"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	var out bytes.Buffer
	p := newPlaySession(conn, &out, false)
	err = p.run(context.Background(), strings.NewReader("/echo hello\n:yes\n:quit\n"))
	require.NoError(t, err)

	lines := out.String()
	assert.Contains(t, lines, "You are now in elwynn")
	assert.Contains(t, lines, "* echo: hello")
	assert.Contains(t, lines, "! no dialog to answer")
	assert.Contains(t, lines, "Disconnected")
}

func TestTranslate(t *testing.T) {
	p := newPlaySession(nil, &bytes.Buffer{}, false)

	msg, err := p.translate("  hello there ")
	require.NoError(t, err)
	assert.Equal(t, gateway.ClientMessage{Type: gateway.ClientChat, Text: "hello there"}, *msg)

	msg, err = p.translate("")
	require.NoError(t, err)
	assert.Nil(t, msg)

	_, err = p.translate(":interact")
	assert.Error(t, err)

	p.track(world.Message{Type: world.MessageEntitySpawned, EntityID: "e-1"})
	p.track(world.Message{Type: world.MessageDialog, DialogID: "d-1"})

	msg, err = p.translate(":interact")
	require.NoError(t, err)
	assert.Equal(t, "e-1", msg.EntityID)

	msg, err = p.translate(":no")
	require.NoError(t, err)
	assert.Equal(t, gateway.ClientMessage{Type: gateway.ClientAnswer, DialogID: "d-1", Accepted: false}, *msg)

	_, err = p.translate(":yes")
	assert.Error(t, err, "each dialog is answered once")

	msg, err = p.translate(":region westfall")
	require.NoError(t, err)
	assert.Equal(t, "westfall", msg.Region)

	_, err = p.translate(":region")
	assert.Error(t, err)

	p.track(world.Message{Type: world.MessageEntityRemoved, EntityID: "e-1"})
	_, err = p.translate(":interact")
	assert.Error(t, err)

	_, err = p.translate(":dance")
	assert.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		msg  world.Message
		want string
	}{
		{world.Message{Type: world.MessageSystem, Text: "hi"}, "* hi"},
		{world.Message{Type: world.MessageChat, From: "Bob", Text: "yo"}, "[Bob] yo"},
		{world.Message{Type: world.MessageSay, From: "Registration Whelp", Text: "Register!"}, "Registration Whelp says: Register!"},
		{world.Message{Type: world.MessageAttack, From: "Registration Whelp"}, "Registration Whelp attacks you!"},
		{world.Message{Type: world.MessageRegion, Region: "duskwood"}, "You are now in duskwood"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMessage(tt.msg))
	}
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", NewClient("http://localhost:8080/", "").WebsocketURL("/ws"))
	assert.Equal(t, "wss://example.com/ws", NewClient("https://example.com", "").WebsocketURL("/ws"))
}
