// Package docs manages uploaded evidence documents: storage via the disk
// file store, the document register, and deletion including the stored file.
package docs

import (
	"context"
	"fmt"
	"io"

	"aegis-grc/core/filestore"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

type Service struct {
	docs   store.DocsStore
	files  *filestore.DiskStore
	audit  store.AuditStore
	logger *utils.Logger
}

func NewService(docs store.DocsStore, files *filestore.DiskStore, audit store.AuditStore, logger *utils.Logger) *Service {
	return &Service{docs: docs, files: files, audit: audit, logger: logger}
}

// Upload stores the file first and only then records the document, so a
// storage failure never leaves a record pointing at nothing.
func (s *Service) Upload(ctx context.Context, name string, content io.Reader, soaID, controlID *int64, actorName string) (*store.Document, error) {
	ref, err := s.files.Save(name, content)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	doc := &store.Document{Name: name, URL: ref, SoaID: soaID, ControlID: controlID}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		s.files.Remove(ref)
		return nil, err
	}
	s.audit.Append(ctx, actorName, "document.upload", fmt.Sprintf("doc=%d name=%s", doc.ID, name))
	s.logger.Printf("document %d uploaded as %s", doc.ID, ref)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*store.Document, error) {
	return s.docs.GetDocument(ctx, id)
}

func (s *Service) List(ctx context.Context, filter store.DocumentFilter) ([]store.Document, error) {
	return s.docs.ListDocuments(ctx, filter)
}

// Delete removes the record and then the stored file. A file already gone is
// not an error; the gap record stays behind as orphaned history.
func (s *Service) Delete(ctx context.Context, id int64, actorName string) error {
	doc, err := s.docs.DeleteDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.files.Remove(doc.URL); err != nil {
		s.logger.Errorf("remove stored file %s: %v", doc.URL, err)
	}
	s.audit.Append(ctx, actorName, "document.delete", fmt.Sprintf("doc=%d", id))
	return nil
}
