package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)
	alice := domain.Identity{ID: "u1", DisplayName: "Alice"}

	sid, err := s.Create(ctx, alice)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, ok, err := s.Identity(ctx, sid)
	if err != nil || !ok || got != alice {
		t.Fatalf("Identity = %+v ok=%v err=%v", got, ok, err)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok, _ := s.Identity(ctx, sid); ok {
		t.Fatal("expected session to expire")
	}

	sid, _ = s.Create(ctx, alice)
	if err := s.Delete(ctx, sid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Identity(ctx, sid); ok {
		t.Fatal("expected deleted session to be gone")
	}
}

func TestRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, _ := newStore(t)
	sid, err := s.Create(context.Background(), domain.Identity{ID: "u1", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := gin.New()
	r.GET("/me", RequireSession(s), func(c *gin.Context) {
		id, _ := IdentityFromContext(c)
		c.String(http.StatusOK, id.DisplayName)
	})

	cases := []struct {
		name   string
		cookie string
		status int
		body   string
	}{
		{"no cookie", "", http.StatusUnauthorized, ""},
		{"unknown session", "nope", http.StatusUnauthorized, ""},
		{"valid session", sid, http.StatusOK, "Alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Errorf("expected body %q, got %q", tc.body, w.Body.String())
			}
		})
	}
}
