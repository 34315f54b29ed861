package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"aegis-grc/config"
	"aegis-grc/core/compliance"
	"aegis-grc/core/rbac"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

type stubExtractor struct {
	text    string
	missing bool
	err     error
}

func (s *stubExtractor) ExtractText(ctx context.Context, path string) (string, bool, error) {
	return s.text, s.missing, s.err
}

type identityResolver struct{}

func (identityResolver) PathFor(ref string) string { return ref }

type fixture struct {
	svc   *Service
	docs  store.DocsStore
	gaps  store.GapsStore
	risks store.RisksStore
	x     *stubExtractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := store.ApplyMigrations(ctx, db, nil); err != nil {
		t.Fatal(err)
	}
	docs := store.NewDocsStore(db)
	gaps := store.NewGapsStore(db)
	tasks := store.NewTasksStore(db)
	risks := store.NewRisksStore(db)
	audit := store.NewAuditStore(db)
	logger := utils.NewLogger()
	x := &stubExtractor{}
	checker := compliance.NewChecker(docs, gaps, x, identityResolver{}, logger)
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(docs, gaps, tasks, risks, checker, enforcer, audit, logger)
	return &fixture{svc: svc, docs: docs, gaps: gaps, risks: risks, x: x}
}

var (
	manager  = Actor{ID: "u1", Name: "mira", Role: rbac.RoleRiskManager, Department: "IT"}
	owner    = Actor{ID: "u2", Name: "oleg", Role: rbac.RoleRiskOwner, Department: "IT"}
	employee = Actor{ID: "u3", Name: "eva", Role: rbac.RoleEmployee, Department: "IT"}
)

func seedDoc(t *testing.T, f *fixture) *store.Document {
	t.Helper()
	doc := &store.Document{Name: "policy.txt", URL: "policy.txt"}
	if err := f.docs.CreateDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func seedRisk(t *testing.T, f *fixture, start, end string) *store.Risk {
	t.Helper()
	r := &store.Risk{Department: "IT", StartDate: start, EndDate: end}
	if err := f.risks.CreateRisk(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunComplianceCheckHappyPath(t *testing.T) {
	f := newFixture(t)
	doc := seedDoc(t, f)
	f.x.text = "Purpose Scope Responsibilities Procedure employees policy must"

	gap, err := f.svc.RunComplianceCheck(context.Background(), doc.ID, employee)
	if err != nil {
		t.Fatal(err)
	}
	if gap.Status != compliance.StatusWaitingForApproval || gap.Score != 100 {
		t.Fatalf("gap = %+v", gap)
	}
}

func TestRunComplianceCheckUnknownDoc(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunComplianceCheck(context.Background(), 7, employee)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	gaps, err := f.svc.ListGaps(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(gaps) != 0 {
		t.Fatalf("gap written for unknown doc: %+v", gaps)
	}
}

func TestRunComplianceCheckExtractionError(t *testing.T) {
	f := newFixture(t)
	doc := seedDoc(t, f)
	f.x.err = &compliance.ExtractionError{Path: "policy.txt", Err: errors.New("converter crashed")}

	_, err := f.svc.RunComplianceCheck(context.Background(), doc.ID, employee)
	var ee *compliance.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	gap, err := f.svc.GetGapByDocID(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gap.Status != compliance.StatusError {
		t.Fatalf("status = %s, want %s", gap.Status, compliance.StatusError)
	}
	if gap.Score != 0 || len(gap.MissingSections) != 0 {
		t.Fatalf("partial verdict written on extraction failure: %+v", gap)
	}
}

func TestApproveAndRejectGapGating(t *testing.T) {
	f := newFixture(t)
	doc := seedDoc(t, f)
	ctx := context.Background()

	if _, err := f.svc.ApproveGap(ctx, doc.ID, employee); !errors.Is(err, ErrForbidden) {
		t.Fatalf("employee approve: %v", err)
	}
	gap, err := f.svc.ApproveGap(ctx, doc.ID, manager)
	if err != nil {
		t.Fatal(err)
	}
	if gap.Status != GapClosed {
		t.Fatalf("status = %s, want %s", gap.Status, GapClosed)
	}
	gap, err = f.svc.RejectGap(ctx, doc.ID, manager)
	if err != nil {
		t.Fatal(err)
	}
	if gap.Status != compliance.StatusRejected {
		t.Fatalf("status = %s, want %s", gap.Status, compliance.StatusRejected)
	}
}

func TestCreateTaskValidatesWindow(t *testing.T) {
	f := newFixture(t)
	risk := seedRisk(t, f, "2026-01-01", "2026-06-30")
	ctx := context.Background()

	_, err := f.svc.CreateTask(ctx, &store.Task{
		RiskID: risk.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-09-01",
	}, owner)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if !strings.Contains(ve.Reason, "2026-06-30") {
		t.Fatalf("reason does not name the window: %q", ve.Reason)
	}

	task, err := f.svc.CreateTask(ctx, &store.Task{
		RiskID: risk.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-05-01",
	}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if task.TaskID != "T-1" || task.Status != TaskPending {
		t.Fatalf("task = %+v", task)
	}
}

func TestTaskIDsScopedPerRisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := seedRisk(t, f, "2026-01-01", "2026-12-31")
	b := seedRisk(t, f, "2026-01-01", "2026-12-31")

	for i := 0; i < 2; i++ {
		if _, err := f.svc.CreateTask(ctx, &store.Task{RiskID: a.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-03-01"}, owner); err != nil {
			t.Fatal(err)
		}
	}
	bTask, err := f.svc.CreateTask(ctx, &store.Task{RiskID: b.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-03-01"}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if bTask.TaskID != "T-1" {
		t.Fatalf("first task on risk B = %s, want T-1", bTask.TaskID)
	}
	aTask, err := f.svc.CreateTask(ctx, &store.Task{RiskID: a.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-03-01"}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if aTask.TaskID != "T-3" {
		t.Fatalf("third task on risk A = %s, want T-3", aTask.TaskID)
	}
}

func TestCompleteTaskStateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	risk := seedRisk(t, f, "2026-01-01", "2026-12-31")
	task, err := f.svc.CreateTask(ctx, &store.Task{RiskID: risk.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-03-01"}, owner)
	if err != nil {
		t.Fatal(err)
	}

	// Employee completion lands on the intermediate state.
	updated, err := f.svc.CompleteTask(ctx, risk.RiskID, task.TaskID, employee)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != TaskCompletedPendingApproval {
		t.Fatalf("status = %s", updated.Status)
	}

	// Only a risk manager advances it further.
	if _, err := f.svc.CompleteTask(ctx, risk.RiskID, task.TaskID, employee); !errors.Is(err, ErrForbidden) {
		t.Fatalf("employee approve: %v", err)
	}
	updated, err = f.svc.CompleteTask(ctx, risk.RiskID, task.TaskID, manager)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != TaskApproved {
		t.Fatalf("status = %s", updated.Status)
	}

	// Terminal state.
	var ve *ValidationError
	if _, err := f.svc.CompleteTask(ctx, risk.RiskID, task.TaskID, manager); !errors.As(err, &ve) {
		t.Fatalf("complete approved task: %v", err)
	}
}

func TestManagerSelfApprovalShortcut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	risk := seedRisk(t, f, "2026-01-01", "2026-12-31")
	task, err := f.svc.CreateTask(ctx, &store.Task{RiskID: risk.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-03-01"}, manager)
	if err != nil {
		t.Fatal(err)
	}
	updated, err := f.svc.CompleteTask(ctx, risk.RiskID, task.TaskID, manager)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != TaskApproved {
		t.Fatalf("manager completion = %s, want %s", updated.Status, TaskApproved)
	}
}

func TestResolveTaskAmbiguity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := seedRisk(t, f, "2026-01-01", "2026-12-31")
	b := seedRisk(t, f, "2026-01-01", "2026-12-31")
	for _, r := range []*store.Risk{a, b} {
		if _, err := f.svc.CreateTask(ctx, &store.Task{RiskID: r.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-03-01"}, owner); err != nil {
			t.Fatal(err)
		}
	}
	// T-1 now exists under both risks.
	var ve *ValidationError
	if _, err := f.svc.CompleteTask(ctx, "", "T-1", employee); !errors.As(err, &ve) {
		t.Fatalf("ambiguous lookup: %v", err)
	}
	if _, err := f.svc.CompleteTask(ctx, a.RiskID, "T-1", employee); err != nil {
		t.Fatal(err)
	}
}

func TestGetTaskResolvesLikeComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := seedRisk(t, f, "2026-01-01", "2026-12-31")
	b := seedRisk(t, f, "2026-01-01", "2026-12-31")
	for _, r := range []*store.Risk{a, b} {
		if _, err := f.svc.CreateTask(ctx, &store.Task{RiskID: r.RiskID, Department: "IT", StartDate: "2026-02-01", EndDate: "2026-03-01"}, owner); err != nil {
			t.Fatal(err)
		}
	}
	got, err := f.svc.GetTask(ctx, a.RiskID, "T-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RiskID != a.RiskID || got.Status != TaskPending {
		t.Fatalf("got %+v", got)
	}
	var ve *ValidationError
	if _, err := f.svc.GetTask(ctx, "", "T-1"); !errors.As(err, &ve) {
		t.Fatalf("ambiguous get: %v", err)
	}
	if _, err := f.svc.GetTask(ctx, a.RiskID, "T-9"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown task: %v", err)
	}
}
