package handlers

import (
	"errors"
	"net/http"
	"strings"

	"emall/db"
	"emall/internal/validate"
	"emall/models"

	"go.uber.org/zap"
)

type selectRequest struct {
	IsSelected *bool `json:"is_selected"`
}

// SelectProcurementHandler обрабатывает POST .../procurement/{id}/select/
// Тело {"is_selected": bool} задаёт состояние, пустое тело переключает его.
func (h *Handler) SelectProcurementHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var req selectRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的JSON数据")
		return
	}

	sel, err := h.Store.SetSelection(r.Context(), id, req.IsSelected, user(r))
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.writeFailure(w, http.StatusNotFound, "采购项目不存在")
		return
	case err != nil:
		h.Log.Error("set selection", zap.Int("id", id), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError, "操作失败")
		return
	}

	h.Log.Info("selection changed",
		zap.Int("id", id), zap.Bool("is_selected", sel.IsSelected), zap.String("owner", sel.ProjectOwner))
	h.writeJSON(w, http.StatusOK, models.Envelope{
		Success:      true,
		IsSelected:   &sel.IsSelected,
		ProjectOwner: sel.ProjectOwner,
		Message:      "选择状态更新成功",
	})
}

// GetProgressHandler обрабатывает GET .../procurement/{id}/progress/
func (h *Handler) GetProgressHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的项目ID")
		return
	}

	progress, err := h.Store.GetProgress(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotSelected), errors.Is(err, db.ErrNotFound):
		h.writeFailure(w, http.StatusNotFound, "采购进度信息不存在")
		return
	case err != nil:
		h.Log.Error("get progress", zap.Int("id", id), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError, "获取数据失败")
		return
	}

	h.writeJSON(w, http.StatusOK, progress)
}

// UpdateProgressHandler обрабатывает POST .../procurement/{id}/update/
func (h *Handler) UpdateProgressHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的项目ID")
		return
	}

	var upd models.ProgressUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的JSON数据")
		return
	}

	if errs := validate.Progress(upd); errs != nil {
		h.writeJSON(w, http.StatusBadRequest, models.Envelope{Success: false, Error: errs.Error(), Errors: errs})
		return
	}

	err = h.Store.UpdateProgress(r.Context(), id, upd, user(r))
	switch {
	case errors.Is(err, db.ErrNotSelected):
		h.writeFailure(w, http.StatusNotFound, "采购进度信息不存在")
		return
	case err != nil:
		h.Log.Error("update progress", zap.Int("id", id), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError, "保存失败")
		return
	}

	h.writeJSON(w, http.StatusOK, models.Envelope{Success: true, Message: "采购信息更新成功"})
}

// AddSupplierHandler обрабатывает POST .../procurement/{id}/add-supplier/
func (h *Handler) AddSupplierHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的项目ID")
		return
	}

	in, ok := h.supplierInput(w, r)
	if !ok {
		return
	}

	supplierID, err := h.Store.AddSupplier(r.Context(), id, in, user(r))
	switch {
	case errors.Is(err, db.ErrNotSelected):
		h.writeFailure(w, http.StatusNotFound, "采购项目不存在")
		return
	case err != nil:
		h.Log.Error("add supplier", zap.Int("procurement_id", id), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError, "添加失败")
		return
	}

	h.writeJSON(w, http.StatusOK, models.Envelope{Success: true, ID: supplierID, Message: "供应商添加成功"})
}

// UpdateSupplierHandler обрабатывает PUT .../supplier/{id}/update/
func (h *Handler) UpdateSupplierHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的供应商ID")
		return
	}

	in, ok := h.supplierInput(w, r)
	if !ok {
		return
	}

	err = h.Store.UpdateSupplier(r.Context(), id, in, user(r))
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.writeFailure(w, http.StatusNotFound, "供应商不存在")
		return
	case err != nil:
		h.Log.Error("update supplier", zap.Int("supplier_id", id), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError, "更新失败")
		return
	}

	h.writeJSON(w, http.StatusOK, models.Envelope{Success: true, ID: id, Message: "供应商更新成功"})
}

// DeleteSupplierHandler обрабатывает DELETE .../supplier/{id}/delete/
func (h *Handler) DeleteSupplierHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的供应商ID")
		return
	}

	err = h.Store.DeleteSupplier(r.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.writeFailure(w, http.StatusNotFound, "供应商不存在")
		return
	case err != nil:
		h.Log.Error("delete supplier", zap.Int("supplier_id", id), zap.Error(err))
		h.writeFailure(w, http.StatusInternalServerError, "删除失败")
		return
	}

	h.writeJSON(w, http.StatusOK, models.Envelope{Success: true, Message: "供应商删除成功"})
}

// supplierInput читает и проверяет карточку поставщика, при ошибке сам пишет ответ.
func (h *Handler) supplierInput(w http.ResponseWriter, r *http.Request) (models.SupplierInput, bool) {
	var in models.SupplierInput
	if err := decodeBody(w, r, &in); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "无效的JSON数据")
		return in, false
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Contact = strings.TrimSpace(in.Contact)

	if errs := validate.Supplier(in); errs != nil {
		h.writeJSON(w, http.StatusBadRequest, models.Envelope{Success: false, Error: errs.Error(), Errors: errs})
		return in, false
	}
	return in, true
}
