package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Document struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	SoaID     *int64    `json:"soaId,omitempty"`
	ControlID *int64    `json:"controlId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type DocumentFilter struct {
	SoaID     *int64
	ControlID *int64
}

type DocsStore interface {
	CreateDocument(ctx context.Context, d *Document) error
	GetDocument(ctx context.Context, id int64) (*Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)
	// DeleteDocument returns the removed record so the caller can clean up
	// the stored file afterwards.
	DeleteDocument(ctx context.Context, id int64) (*Document, error)
}

type docsStore struct {
	db *sql.DB
}

func NewDocsStore(db *sql.DB) DocsStore {
	return &docsStore{db: db}
}

func (s *docsStore) CreateDocument(ctx context.Context, d *Document) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	id := now.UnixMilli()
	for attempt := 0; attempt < 1000; attempt++ {
		_, err := s.db.ExecContext(ctx, q(`
			INSERT INTO documents(id, name, url, soa_id, control_id, created_at)
			VALUES(?,?,?,?,?,?)`),
			id, d.Name, d.URL, nullableID(d.SoaID), nullableID(d.ControlID), now)
		if err == nil {
			d.ID = id
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		id++
	}
	return fmt.Errorf("could not allocate document id")
}

func (s *docsStore) GetDocument(ctx context.Context, id int64) (*Document, error) {
	d := Document{}
	var soaID, controlID sql.NullInt64
	err := s.db.QueryRowContext(ctx, q(`
		SELECT id, name, url, soa_id, control_id, created_at FROM documents WHERE id=?`), id).
		Scan(&d.ID, &d.Name, &d.URL, &soaID, &controlID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if soaID.Valid {
		d.SoaID = &soaID.Int64
	}
	if controlID.Valid {
		d.ControlID = &controlID.Int64
	}
	return &d, nil
}

func (s *docsStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	query := `SELECT id, name, url, soa_id, control_id, created_at FROM documents`
	clauses := []string{}
	args := []any{}
	if filter.SoaID != nil {
		clauses = append(clauses, "soa_id=?")
		args = append(args, *filter.SoaID)
	}
	if filter.ControlID != nil {
		clauses = append(clauses, "control_id=?")
		args = append(args, *filter.ControlID)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Document{}
	for rows.Next() {
		d := Document{}
		var soaID, controlID sql.NullInt64
		if err := rows.Scan(&d.ID, &d.Name, &d.URL, &soaID, &controlID, &d.CreatedAt); err != nil {
			return nil, err
		}
		if soaID.Valid {
			d.SoaID = &soaID.Int64
		}
		if controlID.Valid {
			d.ControlID = &controlID.Int64
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (s *docsStore) DeleteDocument(ctx context.Context, id int64) (*Document, error) {
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, q(`DELETE FROM documents WHERE id=?`), id); err != nil {
		return nil, err
	}
	return d, nil
}
