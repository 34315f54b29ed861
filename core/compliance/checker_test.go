package compliance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"aegis-grc/config"
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

func newTestDB(t *testing.T) (store.DocsStore, store.GapsStore) {
	t.Helper()
	cfg := &config.AppConfig{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatal(err)
	}
	return store.NewDocsStore(db), store.NewGapsStore(db)
}

func TestCheckUpsertsOneGapPerDoc(t *testing.T) {
	docs, gaps := newTestDB(t)
	ctx := context.Background()
	doc := &store.Document{Name: "policy.txt", URL: "policy.txt"}
	if err := docs.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	extractor := &stubExtractor{text: "Purpose Scope Responsibilities Procedure employees policy must"}
	checker := NewChecker(docs, gaps, extractor, identityResolver{}, utils.NewLogger())

	first, err := checker.Check(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Score != 100 || first.Status != StatusWaitingForApproval {
		t.Fatalf("score=%d status=%s", first.Score, first.Status)
	}

	second, err := checker.Check(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.Score != first.Score || second.Label != first.Label {
		t.Fatalf("re-check changed verdict: %+v vs %+v", first, second)
	}
	if second.ID != first.ID {
		t.Fatalf("re-check replaced the gap id: %d vs %d", first.ID, second.ID)
	}
	all, err := gaps.ListGaps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("gap count = %d, want 1", len(all))
	}
}

func TestCheckMissingDocument(t *testing.T) {
	docs, gaps := newTestDB(t)
	checker := NewChecker(docs, gaps, &stubExtractor{}, identityResolver{}, utils.NewLogger())
	if _, err := checker.Check(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCheckExtractionFailureWritesNothing(t *testing.T) {
	docs, gaps := newTestDB(t)
	ctx := context.Background()
	doc := &store.Document{Name: "broken.pdf", URL: "broken.pdf"}
	if err := docs.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	extractErr := &ExtractionError{Path: "broken.pdf", Err: errors.New("boom")}
	checker := NewChecker(docs, gaps, &stubExtractor{err: extractErr}, identityResolver{}, utils.NewLogger())

	_, err := checker.Check(ctx, doc.ID)
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want ExtractionError", err)
	}
	if _, err := gaps.GetGapByDocID(ctx, doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("partial gap written after extraction failure: %v", err)
	}
}

func TestCheckMissingFileScoresMissing(t *testing.T) {
	docs, gaps := newTestDB(t)
	ctx := context.Background()
	doc := &store.Document{Name: "gone.txt", URL: "gone.txt"}
	if err := docs.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	checker := NewChecker(docs, gaps, &stubExtractor{missing: true}, identityResolver{}, utils.NewLogger())
	gap, err := checker.Check(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gap.Status != StatusMissing {
		t.Fatalf("status = %s, want %s", gap.Status, StatusMissing)
	}
}

func TestFileExtractorPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("Purpose and Scope"), 0o600); err != nil {
		t.Fatal(err)
	}
	x := NewFileExtractor(config.ComplianceConfig{})
	text, missing, err := x.ExtractText(context.Background(), path)
	if err != nil || missing {
		t.Fatalf("err=%v missing=%v", err, missing)
	}
	if text != "Purpose and Scope" {
		t.Fatalf("text = %q", text)
	}
	_, missing, err = x.ExtractText(context.Background(), filepath.Join(dir, "absent.txt"))
	if err != nil || !missing {
		t.Fatalf("absent file: err=%v missing=%v", err, missing)
	}
}
