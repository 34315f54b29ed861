package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Gap struct {
	ID                    int64      `json:"id"`
	DocID                 int64      `json:"docId"`
	DocName               string     `json:"docName"`
	MissingSections       []string   `json:"missing_sections"`
	ForbiddenPhrasesFound []string   `json:"forbidden_phrases_found"`
	MissingKeywords       []string   `json:"missing_keywords"`
	Score                 int        `json:"score"`
	Label                 string     `json:"label"`
	Status                string     `json:"status"`
	CheckedAt             *time.Time `json:"checkedAt,omitempty"`
}

// GapPatch is a partial write keyed by doc id. Nil fields are left as they
// are; when no gap exists yet a fresh one is created with defaults.
type GapPatch struct {
	DocName               *string    `json:"docName"`
	MissingSections       *[]string  `json:"missing_sections"`
	ForbiddenPhrasesFound *[]string  `json:"forbidden_phrases_found"`
	MissingKeywords       *[]string  `json:"missing_keywords"`
	Score                 *int       `json:"score"`
	Label                 *string    `json:"label"`
	Status                *string    `json:"status"`
	CheckedAt             *time.Time `json:"checkedAt"`
}

type GapsStore interface {
	GetGap(ctx context.Context, id int64) (*Gap, error)
	GetGapByDocID(ctx context.Context, docID int64) (*Gap, error)
	ListGaps(ctx context.Context) ([]Gap, error)
	// UpsertGapByDocID writes a full check result: it updates the existing
	// gap for the doc in place (keeping its id) or inserts a fresh one.
	UpsertGapByDocID(ctx context.Context, g *Gap) error
	// PatchGapByDocID applies a partial update by doc id, creating the gap
	// when absent. There is never more than one gap per doc.
	PatchGapByDocID(ctx context.Context, docID int64, patch GapPatch) (*Gap, error)
	DeleteGap(ctx context.Context, id int64) error
}

type gapsStore struct {
	db *sql.DB
}

func NewGapsStore(db *sql.DB) GapsStore {
	return &gapsStore{db: db}
}

const gapColumns = `id, doc_id, doc_name, missing_sections, forbidden_phrases_found, missing_keywords, score, label, status, checked_at`

func scanGap(row interface{ Scan(...any) error }) (*Gap, error) {
	g := Gap{}
	var sections, phrases, keywords string
	var checkedAt sql.NullTime
	err := row.Scan(&g.ID, &g.DocID, &g.DocName, &sections, &phrases, &keywords, &g.Score, &g.Label, &g.Status, &checkedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.MissingSections = listFromJSON(sections)
	g.ForbiddenPhrasesFound = listFromJSON(phrases)
	g.MissingKeywords = listFromJSON(keywords)
	if checkedAt.Valid {
		t := checkedAt.Time
		g.CheckedAt = &t
	}
	return &g, nil
}

func (s *gapsStore) GetGap(ctx context.Context, id int64) (*Gap, error) {
	return scanGap(s.db.QueryRowContext(ctx, q(`SELECT `+gapColumns+` FROM gaps WHERE id=?`), id))
}

func (s *gapsStore) GetGapByDocID(ctx context.Context, docID int64) (*Gap, error) {
	return scanGap(s.db.QueryRowContext(ctx, q(`SELECT `+gapColumns+` FROM gaps WHERE doc_id=?`), docID))
}

func (s *gapsStore) ListGaps(ctx context.Context) ([]Gap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+gapColumns+` FROM gaps ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Gap{}
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *g)
	}
	return items, rows.Err()
}

func (s *gapsStore) UpsertGapByDocID(ctx context.Context, g *Gap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := upsertGapTx(ctx, tx, g); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func upsertGapTx(ctx context.Context, tx *sql.Tx, g *Gap) error {
	var checkedAt any
	if g.CheckedAt != nil {
		checkedAt = g.CheckedAt.UTC()
	}
	res, err := tx.ExecContext(ctx, q(`
		UPDATE gaps SET doc_name=?, missing_sections=?, forbidden_phrases_found=?, missing_keywords=?, score=?, label=?, status=?, checked_at=?
		WHERE doc_id=?`),
		g.DocName, listToJSON(g.MissingSections), listToJSON(g.ForbiddenPhrasesFound), listToJSON(g.MissingKeywords),
		g.Score, g.Label, g.Status, checkedAt, g.DocID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		var id int64
		if err := tx.QueryRowContext(ctx, q(`SELECT id FROM gaps WHERE doc_id=?`), g.DocID).Scan(&id); err != nil {
			return err
		}
		g.ID = id
		return nil
	}
	id := time.Now().UTC().UnixMilli()
	// Free-slot probe before the insert, same as the soa entry allocator: a
	// unique violation would abort the surrounding postgres transaction.
	for attempt := 0; attempt < 1000; attempt++ {
		var taken int
		if err := tx.QueryRowContext(ctx, q(`SELECT COUNT(*) FROM gaps WHERE id=?`), id).Scan(&taken); err != nil {
			return err
		}
		if taken > 0 {
			id++
			continue
		}
		_, err := tx.ExecContext(ctx, q(`
			INSERT INTO gaps(id, doc_id, doc_name, missing_sections, forbidden_phrases_found, missing_keywords, score, label, status, checked_at)
			VALUES(?,?,?,?,?,?,?,?,?,?)`),
			id, g.DocID, g.DocName, listToJSON(g.MissingSections), listToJSON(g.ForbiddenPhrasesFound), listToJSON(g.MissingKeywords),
			g.Score, g.Label, g.Status, checkedAt)
		if err != nil {
			return err
		}
		g.ID = id
		return nil
	}
	return fmt.Errorf("could not allocate gap id")
}

func (s *gapsStore) PatchGapByDocID(ctx context.Context, docID int64, patch GapPatch) (*Gap, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	g, err := scanGap(tx.QueryRowContext(ctx, q(`SELECT `+gapColumns+` FROM gaps WHERE doc_id=?`), docID))
	if err == ErrNotFound {
		g = &Gap{DocID: docID, Status: "Open"}
		err = nil
	}
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if patch.DocName != nil {
		g.DocName = *patch.DocName
	}
	if patch.MissingSections != nil {
		g.MissingSections = *patch.MissingSections
	}
	if patch.ForbiddenPhrasesFound != nil {
		g.ForbiddenPhrasesFound = *patch.ForbiddenPhrasesFound
	}
	if patch.MissingKeywords != nil {
		g.MissingKeywords = *patch.MissingKeywords
	}
	if patch.Score != nil {
		g.Score = *patch.Score
	}
	if patch.Label != nil {
		g.Label = *patch.Label
	}
	if patch.Status != nil {
		g.Status = *patch.Status
	}
	if patch.CheckedAt != nil {
		t := patch.CheckedAt.UTC()
		g.CheckedAt = &t
	}
	if err := upsertGapTx(ctx, tx, g); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *gapsStore) DeleteGap(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, q(`DELETE FROM gaps WHERE id=?`), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}
