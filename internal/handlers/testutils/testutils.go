package testutils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"emall/internal/format"
	"emall/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams подставляет параметры пути в контекст chi, когда хендлер вызывается без роутера.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// WithProcurementID то же для маршрутов /procurement/{id}/...
func WithProcurementID(req *http.Request, id int) *http.Request {
	return WithChiURLParams(req, map[string]string{"id": strconv.Itoa(id)})
}

// JSONRequest готовит изменяющий запрос, который пройдёт проверку CSRF.
func JSONRequest(method, target, body, csrfToken string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CSRFHeader, csrfToken)
	req.AddCookie(&http.Cookie{Name: format.CSRFCookieName, Value: csrfToken})
	return req
}
