package sprada

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Khatrip009/adminsprada-sub000/internal/fakeapi"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "admin@sprada.test"
	testPassword = "secret-pass"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.Timeout = 5 * time.Second
	cfg.API.RefreshTimeout = 5 * time.Second
	return cfg
}

type clientOption func(*Builder)

func withMutation(fn func(*Config)) clientOption {
	return func(b *Builder) {
		fn(&b.config)
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...clientOption) *Client {
	t.Helper()
	b := New().
		WithConfig(testConfig(baseURL)).
		WithLogger(slog.New(slog.DiscardHandler))
	for _, opt := range opts {
		opt(b)
	}
	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newFakeBackend(t *testing.T, opts ...fakeapi.Option) (*fakeapi.Server, *httptest.Server) {
	t.Helper()
	api := fakeapi.New(opts...)
	_, err := api.AddUser(testEmail, testPassword, "Admin", 1)
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeJSONBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// decodeJSON reads a request body into a map; failures give an empty map.
func decodeJSON(r *http.Request) map[string]string {
	out := map[string]string{}
	_ = json.NewDecoder(r.Body).Decode(&out)
	return out
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// logLines decodes every JSON log line whose msg equals msg.
func logLines(t *testing.T, b *syncBuffer, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewBufferString(b.String()))
	for sc.Scan() {
		var line map[string]any
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		if line["msg"] == msg {
			out = append(out, line)
		}
	}
	return out
}
