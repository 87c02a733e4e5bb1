package sprada

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/Khatrip009/adminsprada-sub000/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRejectsSecondBuild(t *testing.T) {
	b := New().WithBaseURL("http://api.sprada.test").WithLogger(slog.New(slog.DiscardHandler))
	c, err := b.Build()
	require.NoError(t, err)
	defer c.Close()

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrBuilderUsed)
}

func TestBuilderValidatesConfig(t *testing.T) {
	_, err := New().Build()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := testConfig("http://api.sprada.test")
	cfg.Session.Storage = StorageRedis
	_, err = New().WithConfig(cfg).Build()
	assert.ErrorIs(t, err, ErrInvalidConfig, "redis storage needs a url or a client")

	cfg.Session.RedisURL = "mysql://nope"
	_, err = New().WithConfig(cfg).Build()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBuilderMetricsToggles(t *testing.T) {
	c, err := New().
		WithConfig(testConfig("http://api.sprada.test")).
		WithLogger(slog.New(slog.DiscardHandler)).
		WithMetricsEnabled(false).
		Build()
	require.NoError(t, err)
	defer c.Close()

	c.LoginWithTokens(context.Background(), Credentials{AccessToken: "A"})
	assert.Empty(t, c.MetricsSnapshot().Counters)
}

func TestBuilderKeepsCallerHTTPClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	c := newTestClient(t, "http://api.sprada.test", func(b *Builder) { b.WithHTTPClient(hc) })

	assert.Nil(t, hc.Jar, "caller's client must not be mutated")
	assert.NotNil(t, c.http.Jar)
	assert.Equal(t, time.Second, c.http.Timeout)
}

func TestFileSessionSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "state.json")
	fileStorage := func(c *Config) {
		c.Session.Storage = StorageFile
		c.Session.FilePath = path
	}

	first := newTestClient(t, "http://api.sprada.test", withMutation(fileStorage))
	first.LoginWithTokens(context.Background(), Credentials{
		AccessToken:  "A",
		RefreshToken: "R",
		User:         &User{ID: "3", Email: "ops@sprada.test", FullName: "Ops"},
	})
	require.NoError(t, first.Close())

	second := newTestClient(t, "http://api.sprada.test", withMutation(fileStorage))
	require.True(t, second.IsAuthenticated())
	assert.Equal(t, "A", second.AccessToken())
	assert.Equal(t, "R", second.Session().State().RefreshToken)
	require.NotNil(t, second.User())
	assert.Equal(t, "Ops", second.User().FullName)

	second.Logout(context.Background())
	third := newTestClient(t, "http://api.sprada.test", withMutation(fileStorage))
	assert.False(t, third.IsAuthenticated())
}

func TestRedisSessionFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	redisStorage := func(c *Config) {
		c.Session.Storage = StorageRedis
		c.Session.RedisURL = "redis://" + mr.Addr() + "/0"
		c.Session.RedisPrefix = "admin:session"
	}

	first := newTestClient(t, "http://api.sprada.test", withMutation(redisStorage))
	first.LoginWithTokens(context.Background(), Credentials{AccessToken: "A", RefreshToken: "R"})

	got, err := mr.Get("admin:session:" + session.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "A", got)

	second := newTestClient(t, "http://api.sprada.test", withMutation(redisStorage))
	assert.Equal(t, "A", second.AccessToken())
}

func TestRedisSessionWithInjectedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := newTestClient(t, "http://api.sprada.test",
		withMutation(func(c *Config) { c.Session.Storage = StorageRedis }),
		func(b *Builder) { b.WithRedis(rdb) },
	)
	c.LoginWithTokens(context.Background(), Credentials{AccessToken: "A"})
	require.NoError(t, c.Close())

	// The injected client is not closed by the Client.
	require.NoError(t, rdb.Ping(context.Background()).Err())
	assert.True(t, mr.Exists("sprada:session:"+session.KeyAccessToken))
}

func TestUnavailableStorageDoesNotFailRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	c := newTestClient(t, "http://api.sprada.test", withMutation(func(c *Config) {
		c.Session.Storage = StorageRedis
		c.Session.RedisURL = "redis://" + mr.Addr()
	}))
	mr.Close()

	c.LoginWithTokens(context.Background(), Credentials{AccessToken: "A"})
	assert.Equal(t, "A", c.AccessToken(), "memory state stays authoritative")
	assert.EqualValues(t, 1, c.MetricsSnapshot().Counters[MetricStorageFailure])
}

func TestInjectedStorage(t *testing.T) {
	mem := session.NewMemoryStorage()
	c := newTestClient(t, "http://api.sprada.test", func(b *Builder) { b.WithStorage(mem) })
	c.LoginWithTokens(context.Background(), Credentials{AccessToken: "A", RefreshToken: "R"})
	assert.Equal(t, 2, mem.Len())
}
