package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStorageTest(t *testing.T) (*RedisStorage, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStorage(rdb, "test:session", 0), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestStorageBackends(t *testing.T) {
	redisStorage, _, done := newRedisStorageTest(t)
	defer done()
	fileStorage, err := NewFileStorage(filepath.Join(t.TempDir(), "nested", "session.json"))
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}

	backends := map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   fileStorage,
		"redis":  redisStorage,
	}

	for name, storage := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := storage.Load(ctx, allKeys...)
			if err != nil {
				t.Fatalf("load empty: %v", err)
			}
			if len(empty) != 0 {
				t.Fatalf("expected empty load, got %v", empty)
			}

			if err := storage.Save(ctx, map[string]string{
				KeyAccessToken:  "A",
				KeyRefreshToken: "R",
				KeyUser:         `{"id":1}`,
			}); err != nil {
				t.Fatalf("save: %v", err)
			}

			got, err := storage.Load(ctx, allKeys...)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got[KeyAccessToken] != "A" || got[KeyRefreshToken] != "R" || got[KeyUser] != `{"id":1}` {
				t.Fatalf("unexpected values %v", got)
			}

			if err := storage.Save(ctx, map[string]string{KeyAccessToken: "B"}, KeyRefreshToken); err != nil {
				t.Fatalf("partial save: %v", err)
			}
			got, _ = storage.Load(ctx, allKeys...)
			if got[KeyAccessToken] != "B" {
				t.Fatalf("expected B, got %v", got)
			}
			if _, ok := got[KeyRefreshToken]; ok {
				t.Fatalf("expected refresh token removed, got %v", got)
			}

			if err := storage.Save(ctx, nil, allKeys...); err != nil {
				t.Fatalf("delete all: %v", err)
			}
			if err := storage.Save(ctx, nil, allKeys...); err != nil {
				t.Fatalf("second delete must be a no-op: %v", err)
			}
			got, _ = storage.Load(ctx, allKeys...)
			if len(got) != 0 {
				t.Fatalf("expected empty after delete, got %v", got)
			}
		})
	}
}

func TestRedisStorageKeyLayoutAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	storage := NewRedisStorage(rdb, "admin", time.Hour)
	if err := storage.Save(context.Background(), map[string]string{KeyAccessToken: "A"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	v, err := mr.Get("admin:accessToken")
	if err != nil || v != "A" {
		t.Fatalf("expected admin:accessToken=A, got %q (%v)", v, err)
	}
	if ttl := mr.TTL("admin:accessToken"); ttl != time.Hour {
		t.Fatalf("expected 1h TTL, got %s", ttl)
	}
	if _, err := storage.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRedisStorageUnavailable(t *testing.T) {
	storage, mr, done := newRedisStorageTest(t)
	defer done()
	mr.Close()

	if _, err := storage.Load(context.Background(), KeyAccessToken); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if err := storage.Save(context.Background(), map[string]string{KeyAccessToken: "A"}); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestStoreWithRedisStoragePersistsAcrossInstances(t *testing.T) {
	storage, _, done := newRedisStorageTest(t)
	defer done()
	ctx := context.Background()

	first := NewStore(storage, nil)
	first.Login(ctx, Credentials{AccessToken: "A", RefreshToken: "R", User: &User{ID: "1", Email: "a@b.c"}})

	second := NewStore(storage, nil)
	second.Restore(ctx)
	if second.AccessToken() != "A" || second.User().Email != "a@b.c" {
		t.Fatalf("expected restored session, got %+v", second.State())
	}

	second.Logout(ctx)
	third := NewStore(storage, nil)
	third.Restore(ctx)
	if third.IsAuthenticated() {
		t.Fatalf("expected logout to clear shared storage")
	}
}

func TestFileStorageRemovesEmptyFileAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	storage, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, map[string]string{KeyAccessToken: "A"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	if err := storage.Save(ctx, nil, KeyAccessToken); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	storage, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}
	if _, err := storage.Load(context.Background(), KeyAccessToken); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := NewFileStorage(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestFileStorageHealsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	storage, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, map[string]string{KeyAccessToken: "A"}); err != nil {
		t.Fatalf("save over corrupt file: %v", err)
	}
	got, err := storage.Load(ctx, KeyAccessToken, KeyRefreshToken)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[KeyAccessToken] != "A" {
		t.Fatalf("unexpected contents %v", got)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := storage.Save(ctx, nil, KeyAccessToken, KeyRefreshToken); err != nil {
		t.Fatalf("clear corrupt file: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}
}
