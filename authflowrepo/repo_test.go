package authflowrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-login-broker/authflowrepo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type repoFixture struct {
	repo    authflowrepo.Repo
	advance func(d time.Duration)
}

func inMemoryFixture(t *testing.T) repoFixture {
	t.Helper()
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := authflowrepo.NewInMemoryRepo(authflowrepo.WithNowTime(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}))
	return repoFixture{
		repo: repo,
		advance: func(d time.Duration) {
			mu.Lock()
			defer mu.Unlock()
			now = now.Add(d)
		},
	}
}

func redisFixture(t *testing.T) repoFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repoFixture{
		repo:    authflowrepo.NewRedisRepo(client, "test:"),
		advance: mr.FastForward,
	}
}

func testState(state string) *authflowrepo.AuthFlowState {
	return &authflowrepo.AuthFlowState{
		State:               state,
		CodeVerifier:        "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk",
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: "S256",
		ClientSessionID:     "correlation-1",
		CreatedAt:           time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
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

			t.Run("consume returns the stored state once", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.repo.Upsert(ctx, testState("s1"), 5*time.Minute))

				got, err := f.repo.Consume(ctx, "s1")
				require.NoError(t, err)
				require.Equal(t, testState("s1"), got)

				_, err = f.repo.Consume(ctx, "s1")
				require.ErrorIs(t, err, authflowrepo.ErrNotFound)
			})

			t.Run("unknown state", func(t *testing.T) {
				f := newFixture(t)
				_, err := f.repo.Consume(ctx, "nope")
				require.ErrorIs(t, err, authflowrepo.ErrNotFound)

				_, err = f.repo.Consume(ctx, "")
				require.ErrorIs(t, err, authflowrepo.ErrNotFound)
			})

			t.Run("expired state", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.repo.Upsert(ctx, testState("s2"), 5*time.Minute))
				f.advance(5*time.Minute + time.Second)

				_, err := f.repo.Consume(ctx, "s2")
				require.ErrorIs(t, err, authflowrepo.ErrNotFound)
			})

			t.Run("states are independent", func(t *testing.T) {
				f := newFixture(t)
				require.NoError(t, f.repo.Upsert(ctx, testState("a"), time.Minute))
				require.NoError(t, f.repo.Upsert(ctx, testState("b"), time.Minute))

				_, err := f.repo.Consume(ctx, "a")
				require.NoError(t, err)
				got, err := f.repo.Consume(ctx, "b")
				require.NoError(t, err)
				require.Equal(t, "b", got.State)
			})

			t.Run("empty state rejected", func(t *testing.T) {
				f := newFixture(t)
				require.Error(t, f.repo.Upsert(ctx, testState(""), time.Minute))
				require.Error(t, f.repo.Upsert(ctx, nil, time.Minute))
			})
		})
	}
}

func TestInMemoryRepo_ConcurrentConsume(t *testing.T) {
	f := inMemoryFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Upsert(ctx, testState("race"), time.Minute))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.repo.Consume(ctx, "race"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestInMemoryRepo_PurgesExpiredOnUpsert(t *testing.T) {
	f := inMemoryFixture(t)
	repo := f.repo.(*authflowrepo.InMemoryRepo)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, testState("old"), time.Minute))
	f.advance(2 * time.Minute)
	require.NoError(t, repo.Upsert(ctx, testState("new"), time.Minute))
	require.Equal(t, 1, repo.Len())
}
