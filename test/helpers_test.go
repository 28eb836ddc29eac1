//go:build integration
// +build integration

package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	sessionkit "github.com/kadvik/sessionkit"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-horse"
)

// identityServer is a minimal in-process identity service: HS256 tokens,
// single-use refresh credentials, one seeded user.
type identityServer struct {
	mu        sync.Mutex
	mux       *http.ServeMux
	key       []byte
	accessTTL time.Duration
	refresh   map[string]bool
	seat      int

	revokeAll bool
}

func newIdentityServer(accessTTL time.Duration) *identityServer {
	s := &identityServer{
		key:       []byte("integration-signing-key"),
		accessTTL: accessTTL,
		refresh:   map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /me", s.handleMe)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux = mux

	return s
}

func (s *identityServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RevokeAll makes every subsequent refresh attempt fail as revoked.
func (s *identityServer) RevokeAll() {
	s.mu.Lock()
	s.revokeAll = true
	s.refresh = map[string]bool{}
	s.mu.Unlock()
}

func (s *identityServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	if body.Email != testEmail || body.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}

	access, refresh := s.issuePair()
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         testUser(),
	})
}

func (s *identityServer) handleMe(w http.ResponseWriter, r *http.Request) {
	if !s.validBearer(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": testUser()})
}

func (s *identityServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}

	s.mu.Lock()
	live := !s.revokeAll && s.refresh[body.RefreshToken]
	if live {
		delete(s.refresh, body.RefreshToken)
	}
	s.mu.Unlock()
	if !live {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "refresh token revoked",
			"code":    "refresh_revoked",
		})
		return
	}

	access, refresh := s.issuePair()
	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (s *identityServer) handleLogout(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *identityServer) issuePair() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seat++
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(s.accessTTL).Unix(),
		"jti": fmt.Sprintf("seat-%d", s.seat),
	}).SignedString(s.key)
	if err != nil {
		panic(err)
	}

	refresh = fmt.Sprintf("refresh-%d", s.seat)
	s.refresh[refresh] = true
	return access, refresh
}

func (s *identityServer) validBearer(r *http.Request) bool {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return false
	}
	_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return s.key, nil })
	return err == nil
}

func testUser() map[string]string {
	return map[string]string{
		"id":       "user-1",
		"email":    testEmail,
		"name":     "Alice",
		"role":     "admin",
		"tenantId": "tenant-1",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// integrationEnv is one miniredis + one identity service, shared by however
// many orchestrators a test builds against it.
type integrationEnv struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	identity *identityServer
	server   *httptest.Server
}

func newIntegrationEnv(t *testing.T, accessTTL time.Duration) *integrationEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idSvc := newIdentityServer(accessTTL)
	server := httptest.NewServer(idSvc)

	t.Cleanup(func() {
		server.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &integrationEnv{mr: mr, rdb: rdb, identity: idSvc, server: server}
}

func (env *integrationEnv) newOrchestrator(t *testing.T) *sessionkit.Orchestrator {
	t.Helper()

	cfg := sessionkit.DefaultConfig()
	cfg.Identity.BaseURL = env.server.URL
	cfg.Monitor.PollInterval = 10 * time.Millisecond
	cfg.Monitor.WarningLeadTime = time.Minute

	o, err := sessionkit.New().
		WithConfig(cfg).
		WithRedis(env.rdb).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(o.Close)

	return o
}

func waitForPhase(t *testing.T, o *sessionkit.Orchestrator, want sessionkit.Phase) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if o.State().Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %v, at %v", want, o.State().Phase)
}
