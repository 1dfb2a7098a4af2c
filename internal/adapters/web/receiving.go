package web

import (
	"net/http"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/core"
)

// apiCreateReceive handles POST /api/receives.
// Body: { po_id?, boxes: [{box_number, bags: [{bag_number, tablet_type_id, label_count}]}] }
func (h *Handler) apiCreateReceive(w http.ResponseWriter, r *http.Request) {
	var req app.CreateReceiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rcv, err := h.svc.CreateReceive(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeCreated(w, rcv)
}

// apiListReceives handles GET /api/receives.
func (h *Handler) apiListReceives(w http.ResponseWriter, r *http.Request) {
	poID, ok := queryInt(w, r, "po_id")
	if !ok {
		return
	}
	filter := core.ReceiveFilter{
		POID:       poID,
		Unassigned: queryBool(r, "unassigned"),
		OpenOnly:   queryBool(r, "open"),
	}
	receives, err := h.svc.ListReceives(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, receives)
}

// apiGetReceive handles GET /api/receives/{id}.
func (h *Handler) apiGetReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rcv, err := h.svc.GetReceive(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, rcv)
}

// apiAssignReceive handles POST /api/receives/{id}/assign.
// Body: { po_id }
func (h *Handler) apiAssignReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		POID int `json:"po_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.POID <= 0 {
		writeError(w, r, "po_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.AssignReceive(r.Context(), actorFromContext(r.Context()), id, body.POID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiCloseReceive handles POST /api/receives/{id}/close.
func (h *Handler) apiCloseReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.CloseReceive(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCloseBag handles POST /api/bags/{id}/close.
func (h *Handler) apiCloseBag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CloseBag(r.Context(), actorFromContext(r.Context()), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiReopenBag handles POST /api/bags/{id}/reopen.
func (h *Handler) apiReopenBag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ReopenBag(r.Context(), actorFromContext(r.Context()), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiMarkBagPushed handles POST /api/bags/{id}/push.
// Body: { external_receive_id }
func (h *Handler) apiMarkBagPushed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		ExternalReceiveID string `json:"external_receive_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.MarkBagPushed(r.Context(), actorFromContext(r.Context()), id, body.ExternalReceiveID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
