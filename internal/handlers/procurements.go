package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"emall/db"
	"emall/models"

	"go.uber.org/zap"
)

const (
	defaultPageSize = 25
	maxPageSize     = 500
)

// parseListQuery переводит параметры DataTables в ListQuery хранилища.
// Неразобранный числовой поиск по бюджету не мешает запросу, он возвращается в searchErr.
func parseListQuery(v url.Values) (draw int, q db.ListQuery, searchErr error) {
	draw, _ = strconv.Atoi(v.Get("draw"))

	q.Limit = defaultPageSize
	if l, err := strconv.Atoi(v.Get("length")); err == nil {
		switch {
		case l == -1 || l > maxPageSize:
			q.Limit = maxPageSize
		case l > 0:
			q.Limit = l
		}
	}
	if s, err := strconv.Atoi(v.Get("start")); err == nil && s > 0 {
		// DataTables шлёт смещение, сервер работает страницами
		q.Offset = (s / q.Limit) * q.Limit
	}

	q.Search = v.Get("search")
	if q.Search == "" {
		q.Search = v.Get("search[value]")
	}

	q.Filters = make(map[string]string)
	for _, key := range models.FilterKeys {
		if val := strings.TrimSpace(v.Get(key)); val != "" {
			q.Filters[key] = val
		}
	}

	switch strings.ToLower(v.Get("show_selected_only")) {
	case "true", "1", "yes":
		q.SelectedOnly = true
	}

	if raw := strings.TrimSpace(v.Get(models.PriceSearchParam)); raw != "" {
		q.PriceSearch, searchErr = models.ParsePriceSearch(raw)
	}

	q.Ordering = db.ParseOrdering(v.Get("ordering"))
	return draw, q, searchErr
}

// ListProcurementsHandler обрабатывает GET /emall/procurements/
func (h *Handler) ListProcurementsHandler(w http.ResponseWriter, r *http.Request) {
	draw, q, searchErr := parseListQuery(r.URL.Query())
	if searchErr != nil {
		h.Log.Warn("ignore price search", zap.Error(searchErr))
	}

	res, err := h.Store.ListProcurements(r.Context(), q)
	if err != nil {
		h.Log.Error("list procurements", zap.Error(err), zap.Any("query", q))
		h.writeJSON(w, http.StatusInternalServerError, models.ListResponse{
			Draw:  draw,
			Data:  []models.Procurement{},
			Error: "加载数据失败",
		})
		return
	}

	filtered := res.Filtered
	h.writeJSON(w, http.StatusOK, models.ListResponse{
		Draw:            draw,
		RecordsTotal:    res.Total,
		RecordsFiltered: &filtered,
		Data:            res.Rows,
	})
}

// GetProcurementHandler обрабатывает GET /emall/procurements/{id}/
func (h *Handler) GetProcurementHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的项目ID")
		return
	}

	detail, err := h.Store.GetProcurement(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		h.writeFailure(w, http.StatusNotFound, "采购项目不存在")
		return
	}
	if err != nil {
		h.Log.Error("get procurement", zap.Int("id", id), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError, "获取项目详情失败")
		return
	}

	detail.Normalize()
	h.writeJSON(w, http.StatusOK, detail)
}
