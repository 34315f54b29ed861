package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Control struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SoaEntry struct {
	ID            int64     `json:"id"`
	ControlID     int64     `json:"controlId"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	Justification string    `json:"justification"`
	DocumentRef   []string  `json:"documentRef"`
	ControlIDs    []int64   `json:"controlIds"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SoaEntryPatch carries the fields a partial update may touch. Nil means
// "leave unchanged".
type SoaEntryPatch struct {
	Category      *string   `json:"category"`
	Description   *string   `json:"description"`
	Status        *string   `json:"status"`
	Justification *string   `json:"justification"`
	DocumentRef   *[]string `json:"documentRef"`
	ControlIDs    *[]int64  `json:"controlIds"`
}

type ControlsStore interface {
	// CreateControlWithSoA allocates the next control id and inserts the
	// control together with its paired SoA entry in one transaction.
	CreateControlWithSoA(ctx context.Context, control *Control, entry *SoaEntry) error
	GetControl(ctx context.Context, id int64) (*Control, error)
	ListControls(ctx context.Context) ([]Control, error)
	// DeleteControlCascade removes the control and every SoA entry whose
	// control_id references it, returning both for the caller.
	DeleteControlCascade(ctx context.Context, id int64) (*Control, []int64, error)

	CreateSoaEntry(ctx context.Context, entry *SoaEntry) error
	GetSoaEntry(ctx context.Context, id int64) (*SoaEntry, error)
	ListSoaEntries(ctx context.Context) ([]SoaEntry, error)
	UpdateSoaEntry(ctx context.Context, id int64, patch SoaEntryPatch) (*SoaEntry, error)
	// DeleteSoaEntryCascade removes the entry and every control listed in
	// its control_ids field, returning both for the caller.
	DeleteSoaEntryCascade(ctx context.Context, id int64) (*SoaEntry, []int64, error)
}

type controlsStore struct {
	db *sql.DB
}

func NewControlsStore(db *sql.DB) ControlsStore {
	return &controlsStore{db: db}
}

func (s *controlsStore) CreateControlWithSoA(ctx context.Context, control *Control, entry *SoaEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	// Next id is re-derived on every insert so out-of-band deletions never
	// strand the sequence.
	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(id) FROM controls`).Scan(&maxID); err != nil {
		tx.Rollback()
		return err
	}
	control.ID = maxID.Int64 + 1
	control.CreatedAt = now
	if _, err := tx.ExecContext(ctx, q(`
		INSERT INTO controls(id, category, description, created_at)
		VALUES(?,?,?,?)`),
		control.ID, control.Category, control.Description, now); err != nil {
		tx.Rollback()
		return err
	}
	entry.ControlID = control.ID
	if entry.Category == "" {
		entry.Category = control.Category
	}
	if entry.Description == "" {
		entry.Description = control.Description
	}
	if err := insertSoaEntryTx(ctx, tx, entry, now); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *controlsStore) GetControl(ctx context.Context, id int64) (*Control, error) {
	c := Control{}
	err := s.db.QueryRowContext(ctx, q(`
		SELECT id, category, description, created_at FROM controls WHERE id=?`), id).
		Scan(&c.ID, &c.Category, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *controlsStore) ListControls(ctx context.Context) ([]Control, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, category, description, created_at FROM controls ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Control{}
	for rows.Next() {
		c := Control{}
		if err := rows.Scan(&c.ID, &c.Category, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (s *controlsStore) DeleteControlCascade(ctx context.Context, id int64) (*Control, []int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	c := Control{}
	err = tx.QueryRowContext(ctx, q(`
		SELECT id, category, description, created_at FROM controls WHERE id=?`), id).
		Scan(&c.ID, &c.Category, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil, ErrNotFound
	}
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	rows, err := tx.QueryContext(ctx, q(`SELECT id FROM soa_entries WHERE control_id=?`), id)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	entryIDs := []int64{}
	for rows.Next() {
		var entryID int64
		if err := rows.Scan(&entryID); err != nil {
			rows.Close()
			tx.Rollback()
			return nil, nil, err
		}
		entryIDs = append(entryIDs, entryID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		tx.Rollback()
		return nil, nil, err
	}
	rows.Close()
	if _, err := tx.ExecContext(ctx, q(`DELETE FROM soa_entries WHERE control_id=?`), id); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, q(`DELETE FROM controls WHERE id=?`), id); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &c, entryIDs, nil
}

func (s *controlsStore) CreateSoaEntry(ctx context.Context, entry *SoaEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := insertSoaEntryTx(ctx, tx, entry, time.Now().UTC()); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertSoaEntryTx(ctx context.Context, tx *sql.Tx, entry *SoaEntry, now time.Time) error {
	if entry.Status == "" {
		entry.Status = "Planned"
	}
	if entry.Justification == "" {
		entry.Justification = "Management Decision"
	}
	entry.CreatedAt = now
	id := now.UnixMilli()
	// Millisecond ids keep the historical wire format; on a same-millisecond
	// collision the id is bumped until a free slot is found. The slot is
	// probed before the insert because a unique violation would abort the
	// surrounding postgres transaction.
	for attempt := 0; attempt < 1000; attempt++ {
		var taken int
		if err := tx.QueryRowContext(ctx, q(`SELECT COUNT(*) FROM soa_entries WHERE id=?`), id).Scan(&taken); err != nil {
			return err
		}
		if taken > 0 {
			id++
			continue
		}
		_, err := tx.ExecContext(ctx, q(`
			INSERT INTO soa_entries(id, control_id, category, description, status, justification, document_ref, control_ids, created_at)
			VALUES(?,?,?,?,?,?,?,?,?)`),
			id, entry.ControlID, entry.Category, entry.Description, entry.Status, entry.Justification,
			listToJSON(entry.DocumentRef), idsToJSON(entry.ControlIDs), now)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	}
	return fmt.Errorf("could not allocate soa entry id")
}

func (s *controlsStore) GetSoaEntry(ctx context.Context, id int64) (*SoaEntry, error) {
	return getSoaEntry(ctx, s.db, id)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSoaEntry(ctx context.Context, db rowQuerier, id int64) (*SoaEntry, error) {
	e := SoaEntry{}
	var docRef, controlIDs string
	err := db.QueryRowContext(ctx, q(`
		SELECT id, control_id, category, description, status, justification, document_ref, control_ids, created_at
		FROM soa_entries WHERE id=?`), id).
		Scan(&e.ID, &e.ControlID, &e.Category, &e.Description, &e.Status, &e.Justification, &docRef, &controlIDs, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.DocumentRef = listFromJSON(docRef)
	e.ControlIDs = idsFromJSON(controlIDs)
	return &e, nil
}

func (s *controlsStore) ListSoaEntries(ctx context.Context) ([]SoaEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, control_id, category, description, status, justification, document_ref, control_ids, created_at
		FROM soa_entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SoaEntry{}
	for rows.Next() {
		e := SoaEntry{}
		var docRef, controlIDs string
		if err := rows.Scan(&e.ID, &e.ControlID, &e.Category, &e.Description, &e.Status, &e.Justification, &docRef, &controlIDs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DocumentRef = listFromJSON(docRef)
		e.ControlIDs = idsFromJSON(controlIDs)
		items = append(items, e)
	}
	return items, rows.Err()
}

func (s *controlsStore) UpdateSoaEntry(ctx context.Context, id int64, patch SoaEntryPatch) (*SoaEntry, error) {
	e, err := getSoaEntry(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if patch.Category != nil {
		e.Category = *patch.Category
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Status != nil {
		e.Status = *patch.Status
	}
	if patch.Justification != nil {
		e.Justification = *patch.Justification
	}
	if patch.DocumentRef != nil {
		e.DocumentRef = *patch.DocumentRef
	}
	if patch.ControlIDs != nil {
		e.ControlIDs = *patch.ControlIDs
	}
	res, err := s.db.ExecContext(ctx, q(`
		UPDATE soa_entries SET category=?, description=?, status=?, justification=?, document_ref=?, control_ids=?
		WHERE id=?`),
		e.Category, e.Description, e.Status, e.Justification, listToJSON(e.DocumentRef), idsToJSON(e.ControlIDs), id)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *controlsStore) DeleteSoaEntryCascade(ctx context.Context, id int64) (*SoaEntry, []int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	e, err := getSoaEntry(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, q(`DELETE FROM soa_entries WHERE id=?`), id); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	deleted := []int64{}
	for _, controlID := range e.ControlIDs {
		res, err := tx.ExecContext(ctx, q(`DELETE FROM controls WHERE id=?`), controlID)
		if err != nil {
			tx.Rollback()
			return nil, nil, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			deleted = append(deleted, controlID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return e, deleted, nil
}
