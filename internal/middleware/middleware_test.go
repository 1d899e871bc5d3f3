package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"emall/internal/middleware"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestUsernameResolution(t *testing.T) {
	var got string
	h := middleware.Username(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.UsernameFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, middleware.AnonymousUser, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.UsernameHeader, "%E6%9D%8E%E5%9B%9B")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "李四", got)

	req.AddCookie(&http.Cookie{Name: middleware.UsernameCookie, Value: "wang"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "wang", got)
}

func TestRequestID(t *testing.T) {
	var got string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.RequestIDFrom(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, got)
	require.Equal(t, got, w.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "abc", got)
}

func TestLoggerLevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := middleware.Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte("ok"))
		}
	}))

	for _, path := range []string{"/", "/missing", "/boom"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.WarnLevel, entries[1].Level)
	require.Equal(t, zap.ErrorLevel, entries[2].Level)
	require.Equal(t, int64(404), entries[1].ContextMap()["status"])
}

func TestCSRF(t *testing.T) {
	called := 0
	h := middleware.CSRF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, 1, called)
	require.Contains(t, w.Header().Get("Set-Cookie"), "csrftoken=")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: "t"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Empty(t, w.Header().Get("Set-Cookie"))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: "t"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req.Header.Set(middleware.CSRFHeader, "t")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 3, called)
}
