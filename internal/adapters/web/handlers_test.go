package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tablet-tracker/internal/app"
	"tablet-tracker/internal/core"
	"tablet-tracker/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const testSecret = "test-secret"

// fakeApp embeds the interface so each test only stubs what it calls.
type fakeApp struct {
	app.ApplicationService
	submitErr  error
	lastActor  core.Actor
	lastSubmit app.SubmitRequest
	report     *app.BagReportResult
}

func (f *fakeApp) AuthenticateUser(_ context.Context, username, password string) (*app.UserSession, error) {
	if username != "pat" || password != "correct-horse" {
		return nil, core.ErrInvalidCredentials
	}
	return &app.UserSession{EmployeeID: 3, Username: "pat", FullName: "Pat Doe", Role: "warehouse_staff"}, nil
}

func (f *fakeApp) Submit(_ context.Context, actor core.Actor, req app.SubmitRequest) (*app.SubmissionResult, error) {
	f.lastActor, f.lastSubmit = actor, req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &app.SubmissionResult{Submission: &core.Submission{ID: 99}, Outcome: core.OutcomeAssigned}, nil
}

func (f *fakeApp) BagReport(_ context.Context, actor core.Actor, _ core.BagReportFilter) (*app.BagReportResult, error) {
	f.lastActor = actor
	return f.report, nil
}

func newTestHandler(f *fakeApp) (*Handler, http.Handler) {
	h := &Handler{svc: f, jwtSecret: testSecret, log: logging.Discard()}
	return h, NewHandler(f, "", testSecret, logging.Discard())
}

func authedRequest(t *testing.T, h *Handler, method, path string, body any, role core.Role) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	token, err := h.signToken(3, "Pat Doe", string(role), time.Now())
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	_, router := newTestHandler(&fakeApp{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	_, router := newTestHandler(&fakeApp{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/review", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/review", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}
}

func TestLogin_IssuesCookieWithRole(t *testing.T) {
	h, router := newTestHandler(&fakeApp{})

	body := bytes.NewBufferString(`{"username":"pat","password":"correct-horse"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth_token" {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("auth_token cookie not set")
	}
	claims, err := h.parseToken(token)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	actor := claims.Actor()
	if actor.Role != core.RoleWarehouseStaff || actor.Name != "Pat Doe" || *actor.EmployeeID != 3 {
		t.Errorf("unexpected actor: %+v", actor)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"username":"pat","password":"wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rec.Code)
	}
}

func TestSubmit_PassesActorFromToken(t *testing.T) {
	f := &fakeApp{}
	h, router := newTestHandler(f)

	req := authedRequest(t, h, http.MethodPost, "/api/submissions", map[string]any{
		"product_name":    "Cherry 20ct",
		"submission_type": "packaged",
		"displays_made":   3,
	}, core.RoleWarehouseStaff)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.lastActor.Role != core.RoleWarehouseStaff || f.lastActor.EmployeeID == nil || *f.lastActor.EmployeeID != 3 {
		t.Errorf("actor not taken from token: %+v", f.lastActor)
	}
	if f.lastSubmit.ProductName != "Cherry 20ct" || f.lastSubmit.DisplaysMade != 3 {
		t.Errorf("request not decoded: %+v", f.lastSubmit)
	}
}

func TestWriteAppError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &app.ValidationError{Fields: map[string]string{"displays_made": "gte"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"forbidden", fmt.Errorf("staff cannot do that: %w", app.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{"not found", fmt.Errorf("bag 4 %w", core.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"closed", fmt.Errorf("receive 2 is %w", core.ErrClosed), http.StatusConflict, "CLOSED"},
		{"receipt flavor", core.ErrReceiptFlavorMismatch, http.StatusConflict, "RECEIPT_FLAVOR_MISMATCH"},
		{"job running", fmt.Errorf("recalculate: %w", app.ErrJobRunning), http.StatusConflict, "JOB_RUNNING"},
		{"config", &core.ConfigError{Product: "Cherry 20ct", Field: "tablets_per_package"}, http.StatusUnprocessableEntity, "PRODUCT_CONFIG"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeApp{submitErr: tt.err}
			h, router := newTestHandler(f)
			req := authedRequest(t, h, http.MethodPost, "/api/submissions",
				map[string]any{"product_name": "x", "submission_type": "bag"}, core.RoleWarehouseStaff)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Code)
			}
			if tt.code == "VALIDATION_ERROR" && resp.Fields["displays_made"] != "gte" {
				t.Errorf("expected field errors, got %v", resp.Fields)
			}
			if tt.code == "INTERNAL_ERROR" && resp.Error != "internal server error" {
				t.Errorf("internal error message leaked: %q", resp.Error)
			}
		})
	}
}

func TestPathID_Invalid(t *testing.T) {
	h, router := newTestHandler(&fakeApp{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, h, http.MethodGet, "/api/submissions/abc", nil, core.RoleManager))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func sampleReport() *app.BagReportResult {
	po := "PO-0800"
	return &app.BagReportResult{
		Tolerance: 5,
		Rows: []core.BagReportRow{{
			ReceiveName:     "PO-0800-1",
			PONumber:        &po,
			BoxNumber:       1,
			BagNumber:       2,
			TabletType:      "Cherry",
			Status:          core.BagAvailable,
			LabelCount:      80,
			PackagedCount:   74,
			Submissions:     1,
			Difference:      -6,
			VariancePercent: decimal.RequireFromString("-7.5"),
			Classification:  core.BagUnder,
		}},
		Under: 1,
	}
}

func TestExportBagReport_DefaultsToXLSX(t *testing.T) {
	f := &fakeApp{report: sampleReport()}
	h, router := newTestHandler(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, h, http.MethodGet, "/api/reports/bags/export", nil, core.RoleManager))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("unexpected content type %q", ct)
	}

	wb, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()
	rows, err := wb.GetRows("Bag Report")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	row := rows[1]
	if row[0] != "PO-0800-1" || row[1] != "PO-0800" || row[11] != "-6" || row[12] != "-7.5" {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestExportBagReport_XLSX(t *testing.T) {
	f := &fakeApp{report: sampleReport()}
	h, router := newTestHandler(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, h, http.MethodGet, "/api/reports/bags/export?format=xlsx", nil, core.RoleManager))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	wb, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("Bag Report")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Receive" || rows[1][6] != "80" || rows[1][13] != "under" {
		t.Errorf("unexpected sheet contents: %v", rows)
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	f := &fakeApp{report: sampleReport()}
	h, router := newTestHandler(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, h, http.MethodGet, "/api/reports/bags/export?format=pdf", nil, core.RoleManager))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
