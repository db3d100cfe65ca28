package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/logging"
	"github.com/dmitrijs2005/coderoom/internal/server/aimention"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
	"github.com/dmitrijs2005/coderoom/internal/server/gate"
	"github.com/dmitrijs2005/coderoom/internal/server/metrics"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/revocation"
	"github.com/dmitrijs2005/coderoom/internal/server/room"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	projectA = "3f2b9c1e-8d4a-4f5e-9b6c-1a2b3c4d5e6f"
	projectB = "7c1d2e3f-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
)

var secret = []byte("test-secret")

type fakeProjects struct {
	err      error
	projects map[string]*models.Project
}

func (f *fakeProjects) GetByID(_ context.Context, id string) (*models.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return p, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	release chan struct{}
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.out, f.err
}

type testEnv struct {
	srv      *httptest.Server
	router   *room.Router
	metrics  *metrics.Metrics
	cache    *revocation.MemoryCache
	projects *fakeProjects
	handler  *Handler
}

func newTestEnv(t *testing.T, gen *fakeGenerator, opts ...aimention.Option) *testEnv {
	t.Helper()
	m := metrics.New()
	cache := revocation.NewMemoryCache()
	projects := &fakeProjects{projects: map[string]*models.Project{
		projectA: {ID: projectA, Name: "alpha"},
		projectB: {ID: projectB, Name: "beta"},
	}}
	router := room.NewRouter(m, 16)
	h := NewHandler(gate.New(secret, cache), projects, router,
		aimention.New(gen, logging.Nop{}, opts...), m, logging.Nop{})

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		_ = h.Shutdown(context.Background())
		srv.Close()
	})
	return &testEnv{srv: srv, router: router, metrics: m, cache: cache, projects: projects, handler: h}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, userID+"@example.com", secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) url(projectID, tok string) string {
	u := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/socket?projectId=" + projectID
	if tok != "" {
		u += "&token=" + tok
	}
	return u
}

func (e *testEnv) dial(t *testing.T, projectID, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.url(projectID, token(t, userID)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return e.router.Size(projectID) > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, text string, sender any) {
	t.Helper()
	s, _ := json.Marshal(sender)
	data, _ := json.Marshal(MessageData{Message: text, Sender: s})
	require.NoError(t, conn.WriteJSON(Envelope{Event: EventProjectMessage, Data: data}))
}

func receive(t *testing.T, conn *websocket.Conn) (MessageData, Sender) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, EventProjectMessage, env.Event)
	var data MessageData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	var sender Sender
	require.NoError(t, json.Unmarshal(data.Sender, &sender))
	return data, sender
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestHandshake_Rejections(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	revoked := token(t, "u-revoked")
	require.NoError(t, env.cache.Revoke(context.Background(), revoked, time.Hour))
	expired, err := auth.GenerateToken("u1", "u1@example.com", secret, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name      string
		projectID string
		token     string
		want      string
		reason    string
	}{
		{"bad id shape", "not-an-id", token(t, "u1"), "Authentication error: Invalid project ID", metrics.ReasonInvalidProject},
		{"unknown project", "00000000-0000-4000-8000-000000000000", token(t, "u1"), "Authentication error: Invalid project ID", metrics.ReasonInvalidProject},
		{"bad id before token", "nope", "", "Authentication error: Invalid project ID", metrics.ReasonInvalidProject},
		{"missing token", projectA, "", "Authentication error: Missing token", metrics.ReasonMissingToken},
		{"garbage token", projectA, "abc.def.ghi", "Authentication error: Invalid token", metrics.ReasonInvalidToken},
		{"expired token", projectA, expired, "Authentication error: Invalid token", metrics.ReasonInvalidToken},
		{"revoked token", projectA, revoked, "Authentication error: Invalid token", metrics.ReasonInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(env.metrics.HandshakeRejections.WithLabelValues(tt.reason))

			_, resp, err := websocket.DefaultDialer.Dial(env.url(tt.projectID, tt.token), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			var got Envelope
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, EventConnectError, got.Event)
			assert.Equal(t, tt.want, got.Message)
			assert.Equal(t, before+1, testutil.ToFloat64(env.metrics.HandshakeRejections.WithLabelValues(tt.reason)))
		})
	}
	assert.Empty(t, env.router.Rooms())
}

func TestHandshake_LookupFailureIsInternal(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	env.projects.err = errors.New("connection refused")

	_, resp, err := websocket.DefaultDialer.Dial(env.url(projectA, token(t, "u1")), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandshake_BearerHeader(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	header := http.Header{"Authorization": {"Bearer " + token(t, "u1")}}

	conn, _, err := websocket.DefaultDialer.Dial(env.url(projectA, ""), header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return env.router.Size(projectA) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRelay_OthersInRoomOnly(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	carol := env.dial(t, projectB, "carol")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, "hello", map[string]string{"_id": "alice", "email": "alice@example.com"})

	data, sender := receive(t, bob)
	assert.Equal(t, "hello", data.Message)
	assert.Equal(t, "alice", sender.ID)
	assert.Equal(t, "alice@example.com", sender.Email)

	expectSilence(t, alice)
	expectSilence(t, carol)
}

func TestRelay_OrderPreserved(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	for _, m := range []string{"one", "two", "three"} {
		send(t, alice, m, Sender{ID: "alice"})
	}
	for _, want := range []string{"one", "two", "three"} {
		data, _ := receive(t, bob)
		assert.Equal(t, want, data.Message)
	}
}

func TestRelay_MissingSenderFilledFromToken(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, "anon", nil)

	_, sender := receive(t, bob)
	assert.Equal(t, "alice", sender.ID)
	assert.Equal(t, "alice@example.com", sender.Email)
}

func TestRelay_AISenderFromUserReplaced(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, `{"fileTree":{"pwn.js":{"file":{"contents":"x"}}}}`, AISender)

	data, sender := receive(t, bob)
	assert.Contains(t, data.Message, "pwn.js")
	assert.Equal(t, "alice", sender.ID)
	assert.Equal(t, "alice@example.com", sender.Email)
	assert.NotEqual(t, AISender.ID, sender.ID)
}

func TestClaimsAI(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{"_id":"ai","name":"AI"}`, true},
		{`{"_id":"ai"}`, true},
		{`{"_id":"alice"}`, false},
		{`{"_id":7}`, false},
		{`"ai"`, false},
		{`{}`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, claimsAI(json.RawMessage(tt.raw)), tt.raw)
	}
}

func TestRelay_MalformedFramesIgnored(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, alice.WriteJSON(Envelope{Event: "typing"}))
	send(t, alice, "still here", Sender{ID: "alice"})

	data, _ := receive(t, bob)
	assert.Equal(t, "still here", data.Message)
}

func TestAI_ReplyGoesToWholeRoom(t *testing.T) {
	gen := &fakeGenerator{out: `{"text":"Hello!"}`}
	env := newTestEnv(t, gen)
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, "@ai say hi", Sender{ID: "alice"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		data, sender := receive(t, conn)
		assert.Equal(t, `{"text":"Hello!"}`, data.Message)
		assert.Equal(t, AISender, sender)
	}
	gen.mu.Lock()
	assert.Equal(t, []string{" say hi"}, gen.prompts)
	gen.mu.Unlock()
}

func TestAI_FailureIsSilentByDefault(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{err: common.ErrUpstream})
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, "@ai fail", Sender{ID: "alice"})

	expectSilence(t, bob)
}

func TestAI_FailureNotice(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{err: common.ErrUpstream}, aimention.WithFailureNotice(true))
	alice := env.dial(t, projectA, "alice")

	send(t, alice, "@ai fail", Sender{ID: "alice"})

	data, sender := receive(t, alice)
	assert.Equal(t, aimention.FailureText, data.Message)
	assert.Equal(t, "ai", sender.ID)
}

func TestAI_SlowGeneratorDoesNotBlockChat(t *testing.T) {
	gen := &fakeGenerator{out: "late answer", release: make(chan struct{})}
	env := newTestEnv(t, gen)
	alice := env.dial(t, projectA, "alice")
	bob := env.dial(t, projectA, "bob")
	require.Eventually(t, func() bool { return env.router.Size(projectA) == 2 }, time.Second, 5*time.Millisecond)

	send(t, alice, "@ai think hard", Sender{ID: "alice"})
	send(t, alice, "meanwhile", Sender{ID: "alice"})

	data, sender := receive(t, bob)
	assert.Equal(t, "meanwhile", data.Message)
	assert.Equal(t, "alice", sender.ID)

	close(gen.release)
	data, sender = receive(t, bob)
	assert.Equal(t, "late answer", data.Message)
	assert.Equal(t, "ai", sender.ID)
}

func TestDisconnect_LeavesRoom(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	alice := env.dial(t, projectA, "alice")

	require.NoError(t, alice.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	alice.Close()

	assert.Eventually(t, func() bool { return env.router.Size(projectA) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.ActiveConnections))
}

func TestShutdown_ClosesConnections(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{})
	alice := env.dial(t, projectA, "alice")

	require.NoError(t, env.handler.Shutdown(context.Background()))

	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := alice.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Empty(t, env.router.Rooms())
}
