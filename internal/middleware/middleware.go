package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"emall/internal/format"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	usernameKey
)

const (
	RequestIDHeader = "X-Request-ID"
	CSRFHeader      = "X-CSRFToken"
	UsernameHeader  = "X-Username"
	UsernameCookie  = "username"

	AnonymousUser = "未知用户"
)

// RequestID берёт X-Request-ID из запроса или выдаёт новый uuid и кладёт его в контекст.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Logger пишет каждый запрос в zap, уровень зависит от статуса ответа.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", r.RemoteAddr),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", RequestIDFrom(r.Context())),
				zap.String("user", UsernameFrom(r.Context())),
			}

			switch {
			case status >= 500:
				logger.Error("Server error", fields...)
			case status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request", fields...)
			}
		})
	}
}

// Username определяет оператора: cookie username, затем заголовок X-Username.
func Username(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), usernameKey, resolveUsername(r))))
	})
}

func resolveUsername(r *http.Request) string {
	if c, err := r.Cookie(UsernameCookie); err == nil {
		if v := decode(c.Value); v != "" {
			return v
		}
	}
	if v := decode(r.Header.Get(UsernameHeader)); v != "" {
		return v
	}
	return AnonymousUser
}

func decode(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		s = v
	}
	return strings.TrimSpace(s)
}

func UsernameFrom(ctx context.Context) string {
	if u, ok := ctx.Value(usernameKey).(string); ok && u != "" {
		return u
	}
	return AnonymousUser
}

// CSRF реализует double submit: изменяющий запрос должен прислать в X-CSRFToken
// значение cookie csrftoken. GET выдаёт cookie, если её ещё нет.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie := format.CookieValue(r.Header.Get("Cookie"), format.CSRFCookieName)

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if cookie == "" {
				http.SetCookie(w, &http.Cookie{
					Name:     format.CSRFCookieName,
					Value:    strings.ReplaceAll(uuid.New().String(), "-", ""),
					Path:     "/",
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(CSRFHeader)
		if cookie == "" || header == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   "CSRF验证失败",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
