package web

import (
	"net/http"

	"tablet-tracker/internal/app"

	"github.com/go-chi/chi/v5"
)

// ── Jobs ──────────────────────────────────────────────────────────────────────

// apiRecalculate handles POST /api/jobs/recalculate.
func (h *Handler) apiRecalculate(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Recalculate(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// apiReconcile handles POST /api/jobs/reconcile.
func (h *Handler) apiReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// apiSequentialFill handles POST /api/jobs/sequential-fill.
// Body: { inventory_item_id }
func (h *Handler) apiSequentialFill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InventoryItemID string `json:"inventory_item_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	report, err := h.svc.SequentialFill(r.Context(), actorFromContext(r.Context()), body.InventoryItemID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// ── Catalog and settings ──────────────────────────────────────────────────────

// apiCatalog handles GET /api/catalog.
func (h *Handler) apiCatalog(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListCatalog(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateEmployee handles POST /api/admin/employees.
func (h *Handler) apiCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req app.CreateEmployeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.CreateEmployee(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeCreated(w, user)
}

// apiUpsertTabletType handles POST /api/admin/tablet-types.
func (h *Handler) apiUpsertTabletType(w http.ResponseWriter, r *http.Request) {
	var req app.TabletTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.svc.UpsertTabletType(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"id": id})
}

// apiUpsertProduct handles POST /api/admin/products.
func (h *Handler) apiUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req app.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UpsertProduct(r.Context(), actorFromContext(r.Context()), req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiUpsertMachine handles POST /api/admin/machines.
func (h *Handler) apiUpsertMachine(w http.ResponseWriter, r *http.Request) {
	var req app.MachineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.svc.UpsertMachine(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"id": id})
}

// apiSetSetting handles PUT /api/admin/settings/{key}.
// Body: { value }
func (h *Handler) apiSetSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.SetSetting(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "key"), body.Value); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
