package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"emall/internal/logger"
	"emall/internal/middleware"
	"emall/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Ограничение размера тела запроса
const maxBodySize = 1 << 20

// Handler оборачивает Storage для доступа к данным
type Handler struct {
	Store StorageInterface
	Log   *zap.Logger
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, log *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger.OrNop(log)}
}

// Routes собирает маршруты бэкенда. Пути совпадают с тем, что вызывает дашборд.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/ping", h.PingHandler)

	r.Route("/emall", func(r chi.Router) {
		r.Get("/procurements/", h.ListProcurementsHandler)
		r.Get("/procurements/{id}/", h.GetProcurementHandler)

		r.Route("/purchasing", func(r chi.Router) {
			r.Post("/procurement/{id}/select/", h.SelectProcurementHandler)
			r.Get("/procurement/{id}/progress/", h.GetProgressHandler)
			r.Post("/procurement/{id}/update/", h.UpdateProgressHandler)
			r.Post("/procurement/{id}/add-supplier/", h.AddSupplierHandler)
			r.Put("/supplier/{id}/update/", h.UpdateSupplierHandler)
			r.Delete("/supplier/{id}/delete/", h.DeleteSupplierHandler)
		})
	})
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Log.Error("ping storage", zap.Error(err))
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeJSON: ошибка кодирования даёт 500 с конвертом ошибки.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.Log.Error("encode response", zap.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(models.Envelope{Success: false, Error: "服务器内部错误"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, models.Envelope{Success: false, Error: msg})
}

// pathID читает положительный {id} из пути chi.
func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// decodeBody читает JSON тело. Пустое тело не ошибка, v остаётся нулевым.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func user(r *http.Request) string {
	return middleware.UsernameFrom(r.Context())
}
