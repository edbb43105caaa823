package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pocketgarden/pocketgarden-server/internal/auth"
	"github.com/pocketgarden/pocketgarden-server/internal/config"
	"github.com/pocketgarden/pocketgarden-server/internal/core"
	"github.com/pocketgarden/pocketgarden-server/internal/moderation"
	"github.com/pocketgarden/pocketgarden-server/internal/service/friends"
	"github.com/pocketgarden/pocketgarden-server/internal/service/garden"
	"github.com/pocketgarden/pocketgarden-server/internal/store"
	"github.com/pocketgarden/pocketgarden-server/internal/store/sqlite"
)

const testAdminSecret = "letmein-admin"

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// createTestAuthService creates an auth service with a known JWT secret and
// admin shared secret.
func createTestAuthService(t *testing.T) *auth.Service {
	t.Helper()

	hash, err := auth.HashAdminSecret(testAdminSecret)
	if err != nil {
		t.Fatalf("failed to hash admin secret: %v", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(jwtConfig, hash)
}

type testStack struct {
	store store.Store
	auth  *auth.Service
	gate  *moderation.Gate
	hub   *core.Hub
	ts    *httptest.Server
}

func startTestServer(t *testing.T) *testStack {
	t.Helper()

	st := createTestStore(t)
	authSvc := createTestAuthService(t)
	gate := moderation.NewGate(st)
	hub := core.NewHub(st, gate, friends.New(st), garden.New(st), nil, 0)

	disabledLogger := zerolog.New(nil)
	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		WSMessageRate:     100,
		WSMessageBurst:    100,
		EventBufferSize:   32,
	}

	server := NewServer(hub, authSvc, gate, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testStack{store: st, auth: authSvc, gate: gate, hub: hub, ts: ts}
}

// seedUser inserts a user row and mints a matching token.
func (s *testStack) seedUser(t *testing.T, username string, isAdmin bool) (*store.User, string) {
	t.Helper()

	user, err := s.store.CreateUser(context.Background(), username, isAdmin)
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	token, err := s.auth.IssueToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		t.Fatalf("failed to issue token for %s: %v", username, err)
	}
	return user, token
}
