package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, "", nil), mr
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("ResolveSession valid token", func(t *testing.T) {
		store, _ := newTestStore(t)
		session := Session{ID: "s1", Service: "spotify", AccessToken: "tok", Expiry: time.Now().Add(time.Hour)}
		if err := store.Put(ctx, session, 0); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		creds, err := store.ResolveSession(ctx, "s1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if creds.Service != "spotify" || creds.Token.AccessToken != "tok" {
			t.Errorf("unexpected credentials %+v", creds)
		}
	})

	t.Run("ResolveSession zero expiry never expires", func(t *testing.T) {
		store, _ := newTestStore(t)
		store.Put(ctx, Session{ID: "s2", Service: "youtube", AccessToken: "tok"}, 0)

		if _, err := store.ResolveSession(ctx, "s2"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("ResolveSession missing", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.ResolveSession(ctx, "nope")
		if !errors.Is(err, shared.ErrCredentialsExpired) || !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected credentials expired + not found, got %v", err)
		}
	})

	t.Run("ResolveSession expired", func(t *testing.T) {
		store, _ := newTestStore(t)
		store.Put(ctx, Session{ID: "s3", Service: "spotify", AccessToken: "tok", Expiry: time.Now().Add(-time.Minute)}, 0)

		_, err := store.ResolveSession(ctx, "s3")
		if !errors.Is(err, shared.ErrCredentialsExpired) || !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected credentials expired + token expired, got %v", err)
		}
	})

	t.Run("ResolveSession auth file skips token expiry", func(t *testing.T) {
		store, _ := newTestStore(t)
		store.Put(ctx, Session{ID: "s4", Service: "youtube", AuthFile: "/auth/browser.json"}, 0)

		creds, err := store.ResolveSession(ctx, "s4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if creds.AuthFile != "/auth/browser.json" {
			t.Errorf("expected auth file, got %q", creds.AuthFile)
		}
	})

	t.Run("ResolveSession corrupt payload", func(t *testing.T) {
		store, mr := newTestStore(t)
		mr.Set("session:bad", "{not json")

		if _, err := store.ResolveSession(ctx, "bad"); !errors.Is(err, shared.ErrCredentialsExpired) {
			t.Errorf("expected ErrCredentialsExpired, got %v", err)
		}
	})

	t.Run("Put honours ttl", func(t *testing.T) {
		store, mr := newTestStore(t)
		store.Put(ctx, Session{ID: "s5", Service: "spotify", AccessToken: "tok"}, time.Minute)

		mr.FastForward(2 * time.Minute)
		if _, err := store.Get(ctx, "s5"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected session to expire, got %v", err)
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		store, mr := newTestStore(t)
		mr.Close()

		_, err := store.ResolveSession(ctx, "s1")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
