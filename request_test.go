package sprada

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/Khatrip009/adminsprada-sub000/internal/flows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer replies with what it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{
			"method":      r.Method,
			"contentType": r.Header.Get("Content-Type"),
			"accept":      r.Header.Get("Accept"),
			"userAgent":   r.Header.Get("User-Agent"),
			"requestID":   r.Header.Get("X-Request-ID"),
			"trace":       r.Header.Get("X-Trace"),
			"query":       r.URL.RawQuery,
		}
		mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mt == "multipart/form-data" {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				out["title"] = r.FormValue("title")
				if f, _, err := r.FormFile("image"); err == nil {
					data, _ := io.ReadAll(f)
					out["image"] = string(data)
				}
			}
		} else {
			data, _ := io.ReadAll(r.Body)
			out["body"] = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func echoed(t *testing.T, res *Result) map[string]any {
	t.Helper()
	m, ok := res.Data.(map[string]any)
	require.True(t, ok, "expected JSON object, got %T", res.Data)
	return m
}

func TestRequestBodyKinds(t *testing.T) {
	srv := echoServer(t)
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	t.Run("nil", func(t *testing.T) {
		res, err := client.Post(ctx, "/echo", nil)
		require.NoError(t, err)
		got := echoed(t, res)
		assert.Equal(t, "", got["contentType"])
		assert.Equal(t, "", got["body"])
	})

	t.Run("bytes", func(t *testing.T) {
		res, err := client.Put(ctx, "/echo", []byte{0x01, 'r', 'a', 'w'})
		require.NoError(t, err)
		got := echoed(t, res)
		assert.Equal(t, "", got["contentType"], "binary bodies get no content type")
		assert.Equal(t, "\x01raw", got["body"])
		assert.Equal(t, http.MethodPut, got["method"])
	})

	t.Run("reader", func(t *testing.T) {
		res, err := client.Post(ctx, "/echo", strings.NewReader("streamed"))
		require.NoError(t, err)
		got := echoed(t, res)
		assert.Equal(t, "", got["contentType"])
		assert.Equal(t, "streamed", got["body"])
	})

	t.Run("json", func(t *testing.T) {
		body := struct {
			Name  string `json:"name"`
			Price int    `json:"price"`
		}{Name: "Cumin", Price: 12}
		res, err := client.Post(ctx, "/echo", body)
		require.NoError(t, err)
		got := echoed(t, res)
		assert.Equal(t, "application/json", got["contentType"])
		assert.JSONEq(t, `{"name":"Cumin","price":12}`, got["body"].(string))
	})

	t.Run("multipart", func(t *testing.T) {
		res, err := client.Post(ctx, "/echo", &Multipart{
			Fields: map[string]string{"title": "Spice catalogue"},
			Files:  []MultipartFile{{Field: "image", Filename: "cover.png", Content: []byte("png-bytes")}},
		})
		require.NoError(t, err)
		got := echoed(t, res)
		assert.True(t, strings.HasPrefix(got["contentType"].(string), "multipart/form-data; boundary="))
		assert.Equal(t, "Spice catalogue", got["title"])
		assert.Equal(t, "png-bytes", got["image"])
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := client.Post(ctx, "/echo", make(chan int))
		assert.ErrorIs(t, err, ErrUnsupportedBody)
		assert.ErrorIs(t, err, ErrValidationError)
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, 0, reqErr.Status)
	})
}

func TestRequestHeaders(t *testing.T) {
	srv := echoServer(t)
	client := newTestClient(t, srv.URL)
	ctx := WithRequestID(context.Background(), "req-42")

	res, err := client.Get(ctx, "/echo",
		WithHeader("X-Trace", "abc"),
		WithQuery(url.Values{"page": {"2"}}),
	)
	require.NoError(t, err)
	got := echoed(t, res)
	assert.Equal(t, "application/json", got["accept"])
	assert.Equal(t, "sprada-client/1", got["userAgent"])
	assert.Equal(t, "req-42", got["requestID"])
	assert.Equal(t, "abc", got["trace"])
	assert.Equal(t, "page=2", got["query"])

	res, err = client.Get(context.Background(), "/echo")
	require.NoError(t, err)
	assert.Len(t, echoed(t, res)["requestID"], 36, "generated ids are uuids")
}

func TestRetryReplaysIdenticalRequest(t *testing.T) {
	type attempt struct {
		auth, body, requestID, contentType string
	}
	var mu sync.Mutex
	var attempts []attempt
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			writeJSONBody(w, http.StatusOK, `{"accessToken":"B"}`)
			return
		}
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		attempts = append(attempts, attempt{
			auth:        r.Header.Get("Authorization"),
			body:        string(data),
			requestID:   r.Header.Get("X-Request-ID"),
			contentType: r.Header.Get("Content-Type"),
		})
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer B" {
			writeJSONBody(w, http.StatusUnauthorized, `{}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.LoginWithTokens(context.Background(), Credentials{AccessToken: "A", RefreshToken: "R"})

	res, err := client.Post(context.Background(), "/leads", map[string]string{"company": "Acme Imports"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Nil(t, res.Data)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, attempts, 2)
	assert.Equal(t, "Bearer A", attempts[0].auth)
	assert.Equal(t, "Bearer B", attempts[1].auth)
	assert.Equal(t, attempts[0].body, attempts[1].body)
	assert.Equal(t, attempts[0].requestID, attempts[1].requestID)
	assert.Equal(t, "application/json", attempts[1].contentType)
}

func TestResolvePath(t *testing.T) {
	client := newTestClient(t, "http://api.sprada.test/v1/")

	tests := []struct {
		path  string
		query url.Values
		want  string
	}{
		{"products", nil, "http://api.sprada.test/v1/products"},
		{"/products?limit=1", nil, "http://api.sprada.test/v1/products?limit=1"},
		{"/products/7", url.Values{"expand": {"images"}}, "http://api.sprada.test/v1/products/7?expand=images"},
		{"/p?a=1", url.Values{"b": {"2"}}, "http://api.sprada.test/v1/p?a=1&b=2"},
		{"https://cdn.sprada.test/img/1.png", nil, "https://cdn.sprada.test/img/1.png"},
		{"HTTP://other.test/x", nil, "http://other.test/x"},
	}
	for _, tt := range tests {
		got, err := client.resolve(tt.path, tt.query)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}

	bare := newTestClient(t, "http://api.sprada.test")
	got, err := bare.resolve("/blogs", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://api.sprada.test/blogs", got)
}

func TestAbsoluteURLBypassesBase(t *testing.T) {
	srv := echoServer(t)
	client := newTestClient(t, "http://127.0.0.1:1")

	res, err := client.Get(context.Background(), srv.URL+"/echo?x=1")
	require.NoError(t, err)
	assert.Equal(t, "x=1", echoed(t, res)["query"])
}

func TestResultParsing(t *testing.T) {
	header := func(ct string) http.Header {
		h := http.Header{}
		if ct != "" {
			h.Set("Content-Type", ct)
		}
		return h
	}

	tests := []struct {
		name string
		resp flows.Response
		want any
	}{
		{"no content", flows.Response{Status: 204, Header: header("application/json"), Body: []byte(`{"a":1}`)}, nil},
		{"json", flows.Response{Status: 200, Header: header("application/json; charset=utf-8"), Body: []byte(`{"a":1}`)}, map[string]any{"a": float64(1)}},
		{"problem json", flows.Response{Status: 200, Header: header("application/problem+json"), Body: []byte(`[1,2]`)}, []any{float64(1), float64(2)}},
		{"text", flows.Response{Status: 200, Header: header("text/plain"), Body: []byte("hello")}, "hello"},
		{"no content type", flows.Response{Status: 200, Header: header(""), Body: []byte("plain")}, "plain"},
		{"broken json", flows.Response{Status: 200, Header: header("application/json"), Body: []byte("{oops")}, nil},
		{"empty", flows.Response{Status: 200, Header: header("application/json"), Body: nil}, nil},
		{"whitespace", flows.Response{Status: 200, Header: header("text/plain"), Body: []byte("  \n")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp
			res := newResult(&resp)
			assert.Equal(t, tt.want, res.Data)
			assert.Equal(t, resp.Status, res.Status)
		})
	}
}

func TestErrorBodyKeepsUnparsableText(t *testing.T) {
	resp := &flows.Response{Status: 500, Header: http.Header{"Content-Type": {"application/json"}}, Body: []byte("<html>oops</html>")}
	assert.Equal(t, "<html>oops</html>", errorBody(resp))
	assert.Nil(t, errorBody(nil))
	assert.Nil(t, errorBody(&flows.Response{Status: 500, Header: http.Header{}}))
}

func TestResultDecode(t *testing.T) {
	res := newResult(&flows.Response{
		Status: 200,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"id":"p1","name":"Saffron"}`),
	})
	var product struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, res.Decode(&product))
	assert.Equal(t, "Saffron", product.Name)
	assert.Equal(t, `{"id":"p1","name":"Saffron"}`, res.Text())

	empty := newResult(&flows.Response{Status: 204, Header: http.Header{}})
	assert.ErrorIs(t, empty.Decode(&product), ErrNoBody)
	assert.Empty(t, empty.Bytes())
}

func TestCookiesAreSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "cookie-1", Path: "/"})
			writeJSONBody(w, http.StatusOK, `{"token":"A"}`)
		default:
			c, err := r.Cookie("sid")
			if err != nil {
				writeJSONBody(w, http.StatusBadRequest, `{"message":"no cookie"}`)
				return
			}
			writeJSONBody(w, http.StatusOK, `{"sid":"`+c.Value+`"}`)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(b *Builder) { b.WithHTTPClient(&http.Client{}) })
	_, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	res, err := client.Get(context.Background(), "/me")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sid": "cookie-1"}, res.Data)
}
