package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"aegis-grc/config"
	"aegis-grc/core/compliance"
	"aegis-grc/core/docs"
	"aegis-grc/core/filestore"
	"aegis-grc/core/rbac"
	"aegis-grc/core/risks"
	"aegis-grc/core/soa"
	"aegis-grc/core/store"
	"aegis-grc/core/workflow"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(dir, "api_test.db"),
		ListenAddr: "127.0.0.1:0",
		Uploads: config.UploadsConfig{
			StorageDir:     filepath.Join(dir, "uploads"),
			UploadMaxBytes: 1 << 20,
		},
		Compliance: config.ComplianceConfig{ExtractTimeoutSec: 5},
	}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	files, err := filestore.NewDiskStore(cfg.Uploads.StorageDir)
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}

	controlsStore := store.NewControlsStore(db)
	docsStore := store.NewDocsStore(db)
	gapsStore := store.NewGapsStore(db)
	risksStore := store.NewRisksStore(db)
	tasksStore := store.NewTasksStore(db)
	audits := store.NewAuditStore(db)

	checker := compliance.NewChecker(docsStore, gapsStore, compliance.NewFileExtractor(cfg.Compliance), files, nil)

	return NewServer(ServerDeps{
		Cfg:      cfg,
		Soa:      soa.NewService(controlsStore, enforcer, audits, nil),
		Docs:     docs.NewService(docsStore, files, audits, nil),
		Risks:    risks.NewService(risksStore, enforcer, audits, nil),
		Workflow: workflow.NewService(docsStore, gapsStore, tasksStore, risksStore, checker, enforcer, audits, nil),
		Audits:   audits,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, actor map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range actor {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

var managerHeaders = map[string]string{
	"X-Actor-Name":       "mira",
	"X-Actor-Role":       rbac.RoleRiskManager,
	"X-Actor-Department": "IT",
}

var ownerHeaders = map[string]string{
	"X-Actor-Name":       "oleg",
	"X-Actor-Role":       rbac.RoleRiskOwner,
	"X-Actor-Department": "IT",
}

func TestControlCreatePairsSoaEntry(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/controls", map[string]string{
		"category":    "Technological",
		"description": "Access control reviews",
	}, ownerHeaders)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create control: %d %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Control  store.Control  `json:"control"`
		SoaEntry store.SoaEntry `json:"soaEntry"`
	}
	decodeBody(t, rr, &created)
	if created.Control.ID != 1 {
		t.Fatalf("expected control id 1, got %d", created.Control.ID)
	}
	if created.SoaEntry.Status != "Planned" {
		t.Fatalf("expected default status Planned, got %q", created.SoaEntry.Status)
	}
	if len(created.SoaEntry.ControlIDs) != 1 || created.SoaEntry.ControlIDs[0] != 1 {
		t.Fatalf("expected entry to reference control 1, got %v", created.SoaEntry.ControlIDs)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/soa", nil, ownerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("list soa: %d", rr.Code)
	}
	var entries []store.SoaEntry
	decodeBody(t, rr, &entries)
	if len(entries) != 1 {
		t.Fatalf("expected one soa entry, got %d", len(entries))
	}
}

func TestControlCreateRejectsBlankCategory(t *testing.T) {
	h := newTestServer(t).Handler()
	rr := doJSON(t, h, http.MethodPost, "/api/controls", map[string]string{
		"category":    "  ",
		"description": "x",
	}, ownerHeaders)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestDocUploadCheckAndApprove(t *testing.T) {
	h := newTestServer(t).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "hr-policy.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	text := "Purpose Scope Responsibilities Procedure. " +
		"All employees must follow this policy and its procedure."
	if _, err := part.Write([]byte(text)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/docs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rr.Code, rr.Body.String())
	}
	var doc store.Document
	decodeBody(t, rr, &doc)
	if doc.ID == 0 {
		t.Fatalf("expected document id, got %+v", doc)
	}

	checkPath := fmt.Sprintf("/api/gaps/doc/%d/check", doc.ID)
	rr = doJSON(t, h, http.MethodPost, checkPath, nil, managerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("check: %d %s", rr.Code, rr.Body.String())
	}
	var gap store.Gap
	decodeBody(t, rr, &gap)
	if gap.Score != 100 {
		t.Fatalf("expected score 100, got %d (%+v)", gap.Score, gap)
	}
	if gap.Status != "Waiting for Approval" {
		t.Fatalf("expected Waiting for Approval, got %q", gap.Status)
	}

	approvePath := fmt.Sprintf("/api/gaps/doc/%d/approve", doc.ID)
	rr = doJSON(t, h, http.MethodPost, approvePath, nil, managerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &gap)
	if gap.Status != "Closed" {
		t.Fatalf("expected Closed, got %q", gap.Status)
	}
}

func TestGapApproveForbiddenForEmployee(t *testing.T) {
	h := newTestServer(t).Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "note.txt")
	part.Write([]byte("Purpose Scope Responsibilities Procedure. All employees must follow this policy and its procedure."))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/docs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var doc store.Document
	decodeBody(t, rr, &doc)

	doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/gaps/doc/%d/check", doc.ID), nil, managerHeaders)

	rr = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/gaps/doc/%d/approve", doc.ID), nil, map[string]string{
		"X-Actor-Name": "eva",
		"X-Actor-Role": rbac.RoleEmployee,
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee approval, got %d", rr.Code)
	}
}

func TestRiskLifecycleOverHTTP(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/risks", map[string]any{
		"department":      "IT",
		"riskDescription": "Unpatched servers",
		"confidentiality": 3,
		"integrity":       2,
		"availability":    3,
		"probability":     4,
		"startDate":       "2026-01-01",
		"endDate":         "2026-12-31",
	}, ownerHeaders)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create risk: %d %s", rr.Code, rr.Body.String())
	}
	var risk store.Risk
	decodeBody(t, rr, &risk)
	if !strings.HasPrefix(risk.RiskID, "RR-") || !strings.HasSuffix(risk.RiskID, "-001") {
		t.Fatalf("unexpected risk id %q", risk.RiskID)
	}
	if risk.RiskLevel != "High" {
		t.Fatalf("expected High, got %q", risk.RiskLevel)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/tasks", map[string]any{
		"riskId":      risk.RiskID,
		"department":  "IT",
		"employee":    "eva",
		"description": "Patch the fleet",
		"startDate":   "2026-02-01",
		"endDate":     "2026-03-01",
	}, ownerHeaders)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", rr.Code, rr.Body.String())
	}
	var task store.Task
	decodeBody(t, rr, &task)
	if task.TaskID != "T-1" || task.Status != "Pending" {
		t.Fatalf("unexpected task %+v", task)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/tasks/"+task.TaskID+"?riskId="+risk.RiskID, nil, ownerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("get task: %d %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &task)
	if task.TaskID != "T-1" {
		t.Fatalf("fetched task %+v", task)
	}

	completePath := "/api/tasks/" + task.TaskID + "/complete?riskId=" + risk.RiskID
	rr = doJSON(t, h, http.MethodPost, completePath, nil, map[string]string{
		"X-Actor-Name": "eva",
		"X-Actor-Role": rbac.RoleEmployee,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &task)
	if task.Status != "Completed (Pending Approval)" {
		t.Fatalf("expected pending approval, got %q", task.Status)
	}

	rr = doJSON(t, h, http.MethodPost, completePath, nil, managerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &task)
	if task.Status != "Approved" {
		t.Fatalf("expected Approved, got %q", task.Status)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/dashboard?department=IT", nil, managerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard: %d", rr.Code)
	}
	var stats risks.DashboardStats
	decodeBody(t, rr, &stats)
	if stats.Total != 1 || stats.High != 1 || stats.Open != 1 {
		t.Fatalf("unexpected dashboard %+v", stats)
	}
}

func TestRiskSaveWithoutIDRejected(t *testing.T) {
	h := newTestServer(t).Handler()
	rr := doJSON(t, h, http.MethodPut, "/api/risks", map[string]any{
		"department": "IT",
	}, ownerHeaders)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for save without riskId, got %d", rr.Code)
	}
}

func TestUnknownRiskReturns404(t *testing.T) {
	h := newTestServer(t).Handler()
	rr := doJSON(t, h, http.MethodGet, "/api/risks/RR-2026-999", nil, managerHeaders)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPanicRecoveredAs500(t *testing.T) {
	s := newTestServer(t)
	r := s.router
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	rr := doJSON(t, r, http.MethodGet, "/boom", nil, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from recovered panic, got %d", rr.Code)
	}
}

func TestLogsEndpointRecordsMutations(t *testing.T) {
	h := newTestServer(t).Handler()
	doJSON(t, h, http.MethodPost, "/api/controls", map[string]string{
		"category":    "Physical",
		"description": "Badge access",
	}, ownerHeaders)

	rr := doJSON(t, h, http.MethodGet, "/api/logs", nil, managerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("logs: %d", rr.Code)
	}
	var resp struct {
		Items []store.AuditEntry `json:"items"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Items) == 0 {
		t.Fatalf("expected at least one audit entry")
	}
	if resp.Items[0].Username != "oleg" {
		t.Fatalf("expected actor oleg in audit log, got %q", resp.Items[0].Username)
	}
}

func TestControlDeleteForbiddenForEmployee(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/controls", map[string]string{
		"category":    "Physical",
		"description": "Badge access",
	}, managerHeaders)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create control: %d %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Control store.Control `json:"control"`
	}
	decodeBody(t, rr, &created)

	path := fmt.Sprintf("/api/controls/%d", created.Control.ID)
	rr = doJSON(t, h, http.MethodDelete, path, nil, map[string]string{
		"X-Actor-Name": "eva",
		"X-Actor-Role": rbac.RoleEmployee,
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("employee delete control: %d, want 403", rr.Code)
	}
	rr = doJSON(t, h, http.MethodDelete, path, nil, managerHeaders)
	if rr.Code != http.StatusOK {
		t.Fatalf("manager delete control: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRiskCreateForbiddenForEmployee(t *testing.T) {
	h := newTestServer(t).Handler()
	rr := doJSON(t, h, http.MethodPost, "/api/risks", map[string]any{
		"department": "IT",
	}, map[string]string{
		"X-Actor-Name": "eva",
		"X-Actor-Role": rbac.RoleEmployee,
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("employee create risk: %d, want 403", rr.Code)
	}
}
