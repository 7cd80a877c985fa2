package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/chorale-hq/chorale/internal/shared"
)

type commitWriter struct {
	http.ResponseWriter
	manager   *shared.SessionManager
	req       *http.Request
	sess      *shared.Session
	committed bool
}

func (w *commitWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	_ = w.manager.Commit(w.req.Context(), w.ResponseWriter, w.req, w.sess)
}

func (w *commitWriter) WriteHeader(status int) {
	w.commit()
	w.ResponseWriter.WriteHeader(status)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(data)
}

func sessionMiddleware(manager *shared.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := manager.Load(r.Context(), r)
			if err != nil {
				http.Error(w, "session load", http.StatusInternalServerError)
				return
			}
			r = r.WithContext(shared.ContextWithSession(r.Context(), sess))
			wrapped := &commitWriter{ResponseWriter: w, manager: manager, req: r, sess: sess}
			next.ServeHTTP(wrapped, r)
			wrapped.commit()
		})
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *redis.Client, *shared.SessionManager) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := shared.NewSessionManager(client, "chorale_session", "test-secret", time.Hour, false)
	svc, _ := newTestService(t)
	handler := NewHandler(nil, svc, manager, shared.NewCSRFManager("csrf-secret"))

	r := chi.NewRouter()
	r.Use(sessionMiddleware(manager))
	r.Route("/auth", handler.MountRoutes)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, client, manager
}

func TestLoginIssuesSession(t *testing.T) {
	server, client, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"greg@example.com","password":"correct horse"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Member    string `json:"member"`
		Token     string `json:"token"`
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "greg@example.com", body.Member)
	require.NotEmpty(t, body.Token)
	require.NotEmpty(t, body.CSRFToken)

	stored, err := client.Get(context.Background(), "session:"+body.Token).Result()
	require.NoError(t, err)
	require.Contains(t, stored, "greg@example.com")

	var foundCookie bool
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "chorale_session" {
			foundCookie = true
			require.Equal(t, body.Token, cookie.Value)
		}
	}
	require.True(t, foundCookie)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"greg@example.com","password":"nope"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutDestroysSession(t *testing.T) {
	server, client, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"greg@example.com","password":"correct horse"}`))
	require.NoError(t, err)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPost, server.URL+"/auth/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	err = client.Get(context.Background(), "session:"+body.Token).Err()
	require.ErrorIs(t, err, redis.Nil)
}
