package loginsession_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-login-broker/loginsession"
	"github.com/jrsteele09/go-login-broker/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type repoFixture struct {
	repo    loginsession.Repo
	advance func(d time.Duration)
}

func inMemoryFixture(t *testing.T) repoFixture {
	t.Helper()
	now := baseTime
	repo := loginsession.NewInMemoryRepo(loginsession.WithNowTime(func() time.Time { return now }))
	return repoFixture{repo: repo, advance: func(d time.Duration) { now = now.Add(d) }}
}

func redisFixture(t *testing.T) repoFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := loginsession.NewRedisRepo(client, "test:", loginsession.WithRedisNowTime(func() time.Time { return baseTime }))
	return repoFixture{repo: repo, advance: mr.FastForward}
}

func testSession(id string) loginsession.Session {
	return loginsession.Session{
		ID: id,
		User: users.User{
			ID:          "google-123",
			Email:       "jane@example.com",
			Name:        "Jane",
			Picture:     "https://example.com/jane.png",
			Permissions: []string{"read"},
		},
		TokenDigest:      "digest",
		RefreshToken:     "refresh",
		CreatedAt:        baseTime,
		AccessExpiresAt:  baseTime.Add(24 * time.Hour),
		RefreshExpiresAt: baseTime.Add(7 * 24 * time.Hour),
	}
}

func TestRepos(t *testing.T) {
	fixtures := map[string]func(t *testing.T) repoFixture{
		"in-memory": inMemoryFixture,
		"redis":     redisFixture,
	}

	for name, newFixture := range fixtures {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("upsert and get", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.repo.Upsert(ctx, testSession("sid-1")))

				got, err := f.repo.Get(ctx, "sid-1")
				require.NoError(t, err)
				require.Equal(t, testSession("sid-1"), got)
			})

			t.Run("upsert replaces in place", func(t *testing.T) {
				f := newFixture(t)
				s := testSession("sid-1")
				require.NoError(t, f.repo.Upsert(ctx, s))

				s.TokenDigest = "rotated"
				require.NoError(t, f.repo.Upsert(ctx, s))

				got, err := f.repo.Get(ctx, "sid-1")
				require.NoError(t, err)
				require.Equal(t, "rotated", got.TokenDigest)
			})

			t.Run("missing session", func(t *testing.T) {
				f := newFixture(t)
				_, err := f.repo.Get(ctx, "nope")
				require.ErrorIs(t, err, loginsession.ErrNotFound)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.repo.Upsert(ctx, testSession("sid-1")))
				require.NoError(t, f.repo.Delete(ctx, "sid-1"))
				require.NoError(t, f.repo.Delete(ctx, "sid-1"))

				_, err := f.repo.Get(ctx, "sid-1")
				require.ErrorIs(t, err, loginsession.ErrNotFound)
			})

			t.Run("hard expiry at refresh expiry", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.repo.Upsert(ctx, testSession("sid-1")))

				f.advance(6 * 24 * time.Hour)
				_, err := f.repo.Get(ctx, "sid-1")
				require.NoError(t, err)

				f.advance(24*time.Hour + time.Second)
				_, err = f.repo.Get(ctx, "sid-1")
				require.ErrorIs(t, err, loginsession.ErrNotFound)
			})

			t.Run("empty id rejected", func(t *testing.T) {
				f := newFixture(t)
				require.Error(t, f.repo.Upsert(ctx, testSession("")))
			})
		})
	}
}

func TestSession_Expiry(t *testing.T) {
	s := testSession("sid-1")

	require.False(t, s.AccessExpired(baseTime.Add(time.Hour)))
	require.True(t, s.AccessExpired(baseTime.Add(25*time.Hour)))

	require.True(t, s.Refreshable(baseTime.Add(4*24*time.Hour)))
	require.False(t, s.Refreshable(baseTime.Add(8*24*time.Hour)))

	s.RefreshToken = ""
	require.False(t, s.Refreshable(baseTime.Add(25*time.Hour)))
}

func TestRedisRepo_RejectsExpiredSession(t *testing.T) {
	f := redisFixture(t)
	s := testSession("sid-1")
	s.RefreshExpiresAt = baseTime.Add(-time.Second)
	require.Error(t, f.repo.Upsert(context.Background(), s))
}
