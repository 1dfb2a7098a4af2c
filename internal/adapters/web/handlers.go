package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tablet-tracker/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	log       logrus.FieldLogger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string, log logrus.FieldLogger) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)
		r.Get("/api/catalog", h.apiCatalog)

		// ── Submissions ───────────────────────────────────────────────────────
		r.Post("/api/submissions", h.apiSubmit)
		r.Get("/api/submissions", h.apiListSubmissions)
		r.Get("/api/submissions/export", h.apiExportSubmissions)
		r.Get("/api/submissions/{id}", h.apiGetSubmission)
		r.Patch("/api/submissions/{id}", h.apiEditSubmission)
		r.Delete("/api/submissions/{id}", h.apiDeleteSubmission)
		r.Post("/api/submissions/{id}/assign-bag", h.apiAssignBag)
		r.Post("/api/submissions/{id}/verify", h.apiVerifyAssignment)
		r.Post("/api/submissions/{id}/reassign", h.apiReassignSubmission)
		r.Get("/api/review", h.apiReviewQueue)

		// ── Receiving ─────────────────────────────────────────────────────────
		r.Post("/api/receives", h.apiCreateReceive)
		r.Get("/api/receives", h.apiListReceives)
		r.Get("/api/receives/{id}", h.apiGetReceive)
		r.Post("/api/receives/{id}/assign", h.apiAssignReceive)
		r.Post("/api/receives/{id}/close", h.apiCloseReceive)
		r.Post("/api/bags/{id}/close", h.apiCloseBag)
		r.Post("/api/bags/{id}/reopen", h.apiReopenBag)
		r.Post("/api/bags/{id}/push", h.apiMarkBagPushed)

		// ── Purchase orders ───────────────────────────────────────────────────
		r.Post("/api/purchase-orders", h.apiSyncPO)
		r.Get("/api/purchase-orders", h.apiListPOs)
		r.Get("/api/purchase-orders/{id}", h.apiGetPO)
		r.Post("/api/purchase-orders/{id}/status", h.apiSetPOStatus)
		r.Post("/api/purchase-orders/{id}/overs", h.apiCreateOversPO)
		r.Delete("/api/purchase-orders/{id}", h.apiPurgePO)

		// ── Jobs ──────────────────────────────────────────────────────────────
		r.Post("/api/jobs/recalculate", h.apiRecalculate)
		r.Post("/api/jobs/reconcile", h.apiReconcile)
		r.Post("/api/jobs/sequential-fill", h.apiSequentialFill)

		// ── Reports ───────────────────────────────────────────────────────────
		r.Get("/api/reports/bags", h.apiBagReport)
		r.Get("/api/reports/bags/export", h.apiExportBagReport)

		// ── Admin ─────────────────────────────────────────────────────────────
		r.Post("/api/admin/employees", h.apiCreateEmployee)
		r.Post("/api/admin/tablet-types", h.apiUpsertTabletType)
		r.Post("/api/admin/products", h.apiUpsertProduct)
		r.Post("/api/admin/machines", h.apiUpsertMachine)
		r.Put("/api/admin/settings/{key}", h.apiSetSetting)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional positive integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return nil, false
	}
	return &v, true
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
