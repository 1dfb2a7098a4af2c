package web

import (
	"net/http"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/core"
)

// apiSyncPO handles POST /api/purchase-orders.
// Upserts a PO pushed from the inventory system; counts already recorded are kept.
func (h *Handler) apiSyncPO(w http.ResponseWriter, r *http.Request) {
	var req app.SyncPORequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.SyncPO(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListPOs handles GET /api/purchase-orders.
func (h *Handler) apiListPOs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.POFilter{
		Status:   core.POStatus(q.Get("status")),
		OpenOnly: queryBool(r, "open"),
		PONumber: q.Get("po_number"),
	}
	result, err := h.svc.ListPOs(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result.Orders)
}

// apiGetPO handles GET /api/purchase-orders/{id}.
func (h *Handler) apiGetPO(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetPO(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiSetPOStatus handles POST /api/purchase-orders/{id}/status.
// Body: { status }
func (h *Handler) apiSetPOStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	status := core.POStatus(body.Status)
	if !status.Valid() {
		writeError(w, r, "unknown status "+body.Status, "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.SetPOStatus(r.Context(), actorFromContext(r.Context()), id, status); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiCreateOversPO handles POST /api/purchase-orders/{id}/overs.
func (h *Handler) apiCreateOversPO(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.CreateOversPO(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeCreated(w, result)
}

// apiPurgePO handles DELETE /api/purchase-orders/{id}.
func (h *Handler) apiPurgePO(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.PurgePO(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"unassigned_submissions": n})
}
