package web

import (
	"net/http"
	"strconv"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/core"
)

// apiSubmit handles POST /api/submissions.
// A submission with no matching bag is still saved (201); the response carries
// outcome "no_match" and a message for the floor.
func (h *Handler) apiSubmit(w http.ResponseWriter, r *http.Request) {
	var req app.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Submit(r.Context(), actorFromContext(r.Context()), req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeCreated(w, result)
}

// submissionFilter reads the list filters shared by the JSON and export endpoints.
func submissionFilter(w http.ResponseWriter, r *http.Request) (core.SubmissionFilter, bool) {
	q := r.URL.Query()
	f := core.SubmissionFilter{
		Kind:            core.SubmissionKind(q.Get("type")),
		ReceiptNumber:   q.Get("receipt_number"),
		InventoryItemID: q.Get("inventory_item_id"),
		FromDate:        q.Get("from"),
		ToDate:          q.Get("to"),
	}
	if v := q.Get("needs_review"); v != "" {
		b := queryBool(r, "needs_review")
		f.NeedsReview = &b
	}
	if v := q.Get("assigned"); v != "" {
		b := queryBool(r, "assigned")
		f.Assigned = &b
	}
	var ok bool
	if f.POID, ok = queryInt(w, r, "po_id"); !ok {
		return f, false
	}
	if f.BagID, ok = queryInt(w, r, "bag_id"); !ok {
		return f, false
	}
	if f.ReceiveID, ok = queryInt(w, r, "receive_id"); !ok {
		return f, false
	}
	if f.EmployeeID, ok = queryInt(w, r, "employee_id"); !ok {
		return f, false
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, "invalid limit", "BAD_REQUEST", http.StatusBadRequest)
			return f, false
		}
		f.Limit = n
	}
	return f, true
}

// apiListSubmissions handles GET /api/submissions.
func (h *Handler) apiListSubmissions(w http.ResponseWriter, r *http.Request) {
	filter, ok := submissionFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListSubmissions(r.Context(), actorFromContext(r.Context()), filter)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetSubmission handles GET /api/submissions/{id}.
func (h *Handler) apiGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := h.svc.GetSubmission(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, sub)
}

// apiEditSubmission handles PATCH /api/submissions/{id}.
func (h *Handler) apiEditSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req app.EditSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.EditSubmission(r.Context(), actorFromContext(r.Context()), id, req)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiDeleteSubmission handles DELETE /api/submissions/{id}.
func (h *Handler) apiDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteSubmission(r.Context(), actorFromContext(r.Context()), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiReviewQueue handles GET /api/review.
func (h *Handler) apiReviewQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReviewQueue(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAssignBag handles POST /api/submissions/{id}/assign-bag.
// Body: { bag_id }
func (h *Handler) apiAssignBag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		BagID int `json:"bag_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.BagID <= 0 {
		writeError(w, r, "bag_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	sub, err := h.svc.AssignBag(r.Context(), actorFromContext(r.Context()), id, body.BagID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, sub)
}

// apiVerifyAssignment handles POST /api/submissions/{id}/verify.
func (h *Handler) apiVerifyAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.VerifyAssignment(r.Context(), actorFromContext(r.Context()), id); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiReassignSubmission handles POST /api/submissions/{id}/reassign.
// Body: { po_id }
func (h *Handler) apiReassignSubmission(w http.ResponseWriter, r *http.Request) {
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
	if err := h.svc.ReassignSubmission(r.Context(), actorFromContext(r.Context()), id, body.POID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
