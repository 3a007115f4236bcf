package catalog

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"librarium-backend/internal/library/rental"
	"librarium-backend/internal/platform/blob"
	"librarium-backend/internal/platform/db"
	"librarium-backend/internal/platform/httpapi"
)

type Service struct {
	store Shelf
	blobs *blob.Store
	log   *zap.Logger
}

func NewService(store Shelf, blobs *blob.Store, log *zap.Logger) *Service {
	return &Service{store: store, blobs: blobs, log: log}
}

// nfc normalizes user-supplied text so Unicode titles compare the same
// regardless of how the client composed them.
func nfc(s string) string { return norm.NFC.String(strings.TrimSpace(s)) }

func (s *Service) Search(ctx context.Context, f SearchFilter) ([]BookItem, error) {
	f.Query = nfc(f.Query)
	f.Author = nfc(f.Author)
	f.Genre = nfc(f.Genre)
	f.Publisher = nfc(f.Publisher)
	return s.store.Search(ctx, f)
}

// AddBook inserts the catalog row, then writes the PDF blob. A blob failure
// compensates by deleting the row again, so the catalog never ends up with a
// book whose content was lost on upload.
func (s *Service) AddBook(ctx context.Context, in AddBookIn, pdf io.Reader) (int64, error) {
	b := &Book{
		Title:       nfc(in.Title),
		Author:      nfc(in.Author),
		Genre:       nfc(in.Genre),
		Publisher:   nfc(in.Publisher),
		Description: nfc(in.Description),
		CoverURL:    strings.TrimSpace(in.CoverURL),
	}
	if b.Title == "" || b.Author == "" || b.Genre == "" || b.Publisher == "" || b.Description == "" || b.CoverURL == "" {
		return 0, httpapi.ErrInvalid("all book fields are required")
	}

	id, err := s.store.Insert(ctx, b)
	if err != nil {
		return 0, err
	}

	path, err := s.blobs.Save(id, pdf)
	if err != nil {
		if delErr := s.store.Delete(ctx, id); delErr != nil {
			s.log.Error("failed to compensate book insert after blob failure",
				zap.Int64("book_id", id), zap.Error(delErr))
		}
		return 0, httpapi.ErrInternal("failed to store book file")
	}
	if err := s.store.SetPDFPath(ctx, id, path); err != nil {
		// Undo both sides, otherwise a row with a null pdf_path and an
		// orphaned blob survive the failed upload.
		if rmErr := s.blobs.Remove(path); rmErr != nil {
			s.log.Error("failed to remove blob after pdf_path failure",
				zap.Int64("book_id", id), zap.Error(rmErr))
		}
		if delErr := s.store.Delete(ctx, id); delErr != nil {
			s.log.Error("failed to compensate book insert after pdf_path failure",
				zap.Int64("book_id", id), zap.Error(delErr))
		}
		return 0, err
	}
	return id, nil
}

// PDFPath returns the stored blob path for serving, 404 when the row or the
// file is missing.
func (s *Service) PDFPath(ctx context.Context, bookID int64) (string, error) {
	book, err := s.store.GetByID(ctx, bookID)
	if err != nil {
		return "", err
	}
	if !book.PDFPath.Valid || !s.blobs.Exists(book.PDFPath.String) {
		return "", httpapi.ErrNotFound("book file not found")
	}
	return book.PDFPath.String, nil
}

// DeleteBook cascades rents, requests and comments with the row in one
// transaction, then removes the blob.
func (s *Service) DeleteBook(ctx context.Context, bookID int64) error {
	book, err := s.store.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	err = s.store.DeleteCascade(ctx, bookID, func(ctx context.Context, tx db.DBTX) error {
		return rental.PurgeBookTx(ctx, tx, bookID)
	})
	if err != nil {
		return err
	}
	if book.PDFPath.Valid {
		if err := s.blobs.Remove(book.PDFPath.String); err != nil {
			s.log.Warn("failed to remove book blob", zap.Int64("book_id", bookID), zap.Error(err))
		}
	}
	return nil
}
