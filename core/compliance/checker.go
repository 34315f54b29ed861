package compliance

import (
	"context"
	"time"

	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

// PathResolver maps a document's opaque storage reference to a local path
// the extractor can read.
type PathResolver interface {
	PathFor(ref string) string
}

// Checker runs the rule set over one document and upserts its gap. The gap
// is only written after a successful evaluation; extraction failures leave
// the store untouched.
type Checker struct {
	docs      store.DocsStore
	gaps      store.GapsStore
	extractor Extractor
	resolver  PathResolver
	logger    *utils.Logger
}

func NewChecker(docs store.DocsStore, gaps store.GapsStore, extractor Extractor, resolver PathResolver, logger *utils.Logger) *Checker {
	return &Checker{docs: docs, gaps: gaps, extractor: extractor, resolver: resolver, logger: logger}
}

// Check evaluates the document and upserts the result keyed by doc id.
// Returns store.ErrNotFound when the document record is absent and
// *ExtractionError when the text could not be obtained.
func (c *Checker) Check(ctx context.Context, docID int64) (*store.Gap, error) {
	doc, err := c.docs.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	text, missing, err := c.extractor.ExtractText(ctx, c.resolver.PathFor(doc.URL))
	if err != nil {
		return nil, err
	}
	res := Evaluate(text, missing)
	now := time.Now().UTC()
	gap := &store.Gap{
		DocID:                 doc.ID,
		DocName:               doc.Name,
		MissingSections:       res.MissingSections,
		ForbiddenPhrasesFound: res.ForbiddenPhrasesFound,
		MissingKeywords:       res.MissingKeywords,
		Score:                 res.Score,
		Label:                 res.Label,
		Status:                res.Status,
		CheckedAt:             &now,
	}
	if err := c.gaps.UpsertGapByDocID(ctx, gap); err != nil {
		return nil, err
	}
	c.logger.Printf("compliance check doc=%d score=%d status=%s", doc.ID, res.Score, res.Status)
	return gap, nil
}

// CheckAll re-runs the checker over every stored document. Used by the
// scheduler; per-document failures are logged and skipped.
func (c *Checker) CheckAll(ctx context.Context) error {
	docs, err := c.docs.ListDocuments(ctx, store.DocumentFilter{})
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := c.Check(ctx, doc.ID); err != nil {
			c.logger.Errorf("recheck doc=%d: %v", doc.ID, err)
		}
	}
	return nil
}
