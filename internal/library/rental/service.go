package rental

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"librarium-backend/internal/platform/httpapi"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Service owns every transition of the request/rent state machine:
//
//	[none] --RequestRent--> pending
//	pending --ProcessRequest(true)--> approved   (other pending for book -> declined)
//	pending --ProcessRequest(false)--> declined
//	approved --RequestReturn--> return_requested (comment created)
//	return_requested --AcceptReturn--> returned  (rent deleted)
//	approved --CancelRent--> cancelled           (rent deleted)
//	approved --TransferBook--> transferred       (rent moved to new owner)
//
// Every mutation is a single transaction; conflicts on an occupied
// (user, book) slot are reported as informational messages, not errors.
type Service struct {
	store LedgerStore
	clock Clock
}

func NewService(sdb *sql.DB) *Service {
	return &Service{store: NewStore(sdb), clock: realClock{}}
}

// RequestRent creates a pending request unless the pair already has a live
// request or an active rent. Both conflicts are expected business outcomes
// and come back as the message, not as an error.
func (s *Service) RequestRent(ctx context.Context, username string, bookID int64) (string, error) {
	userID, err := s.store.UserIDByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if _, err := s.store.BookByID(ctx, bookID); err != nil {
		return "", err
	}

	now := s.clock.Now()
	var msg string
	err = s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		if err := ops.LockUser(ctx, userID); err != nil {
			return err
		}
		req, err := ops.LiveRequestForPair(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if req != nil {
			msg = "you already have an active request for this book"
			return nil
		}
		rent, err := ops.RentForPair(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if rent != nil && rent.ActiveAt(now) {
			msg = "you already have this book rented"
			return nil
		}
		if _, err := ops.InsertRequest(ctx, userID, bookID, StatusPending, now); err != nil {
			return err
		}
		msg = "rental request sent to the librarian"
		return nil
	})
	return msg, err
}

// ProcessRequest resolves a pending request. Approval declines every other
// pending request for the same book and creates the rent in the same
// transaction: first approved wins, no partial approval.
func (s *Service) ProcessRequest(ctx context.Context, requestID int64, approve bool) (string, error) {
	now := s.clock.Now()
	var msg string
	err := s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		req, err := ops.RequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || req.Status != StatusPending {
			return httpapi.ErrNotFound("request not found or already processed")
		}
		if !approve {
			msg = "request declined"
			return ops.SetRequestStatus(ctx, requestID, StatusDeclined)
		}
		if err := ops.DeclineOtherPending(ctx, req.BookID, req.ID); err != nil {
			return err
		}
		if err := ops.SetRequestStatus(ctx, requestID, StatusApproved); err != nil {
			return err
		}
		if _, err := ops.InsertRent(ctx, req.UserID, req.BookID, now); err != nil {
			return err
		}
		msg = "request approved, competing requests declined"
		return nil
	})
	return msg, err
}

// RequestReturn transitions the caller's approved request to
// return_requested and records the review captured at return time.
func (s *Service) RequestReturn(ctx context.Context, in ReturnRequestIn) (string, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return "", httpapi.ErrInvalid("rating must be between 1 and 5")
	}
	userID, err := s.store.UserIDByUsername(ctx, in.Username)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	err = s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		req, err := ops.RequestForUpdate(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if req == nil || req.UserID != userID || req.Status != StatusApproved {
			return httpapi.ErrInvalid("this book cannot be returned")
		}
		if _, err := ops.InsertComment(ctx, userID, req.BookID, in.Text, in.Rating, now); err != nil {
			return err
		}
		return ops.SetRequestStatus(ctx, in.RequestID, StatusReturnRequested)
	})
	if err != nil {
		return "", err
	}
	return "return request sent to the librarian", nil
}

// AcceptReturn finalizes a return: the rent row goes away, the ticket ends
// at returned, the comment stays. The freed book is reported so the caller
// can broadcast availability.
func (s *Service) AcceptReturn(ctx context.Context, requestID int64) (*BookRef, string, error) {
	var book *BookRef
	err := s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		req, err := ops.RequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || req.Status != StatusReturnRequested {
			return httpapi.ErrNotFound("request not found or not awaiting return")
		}
		rent, err := ops.RentForPair(ctx, req.UserID, req.BookID)
		if err != nil {
			return err
		}
		if rent != nil {
			if err := ops.DeleteRent(ctx, rent.ID); err != nil {
				return err
			}
		}
		// Resolved inside the transaction; a book deleted right after the
		// commit must not turn a succeeded return into a 404.
		book, err = ops.BookByID(ctx, req.BookID)
		if err != nil {
			return err
		}
		return ops.SetRequestStatus(ctx, requestID, StatusReturned)
	})
	if err != nil {
		return nil, "", err
	}
	return book, "book return accepted", nil
}

// CancelRent deletes the rent and cancels the matching approved request so
// the pair stays consistent (a rent never outlives its approved ticket).
func (s *Service) CancelRent(ctx context.Context, rentID int64) (*BookRef, string, error) {
	var book *BookRef
	err := s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		rent, err := ops.RentForUpdate(ctx, rentID)
		if err != nil {
			return err
		}
		if rent == nil {
			return httpapi.ErrNotFound("rent not found")
		}
		req, err := ops.ApprovedRequestForPair(ctx, rent.UserID, rent.BookID)
		if err != nil {
			return err
		}
		if req != nil {
			if err := ops.SetRequestStatus(ctx, req.ID, StatusCancelled); err != nil {
				return err
			}
		}
		book, err = ops.BookByID(ctx, rent.BookID)
		if err != nil {
			return err
		}
		return ops.DeleteRent(ctx, rent.ID)
	})
	if err != nil {
		return nil, "", err
	}
	return book, "rental cancelled", nil
}

// ExtendRent shifts rented_at forward, extending the 48h window from the
// later anchor. No status change.
func (s *Service) ExtendRent(ctx context.Context, rentID int64, hours int) (string, error) {
	err := s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		rent, err := ops.RentForUpdate(ctx, rentID)
		if err != nil {
			return err
		}
		if rent == nil {
			return httpapi.ErrNotFound("rent not found")
		}
		return ops.SetRentedAt(ctx, rent.ID, rent.RentedAt.Add(time.Duration(hours)*time.Hour))
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rental extended by %d hours", hours), nil
}

// GiveBookDirect is the librarian bypass of the request queue: an approved
// request and a rent appear in one transaction, with the same soft conflict
// checks as RequestRent.
func (s *Service) GiveBookDirect(ctx context.Context, username string, bookID int64) (string, error) {
	userID, err := s.store.UserIDByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	book, err := s.store.BookByID(ctx, bookID)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	var msg string
	err = s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		if err := ops.LockUser(ctx, userID); err != nil {
			return err
		}
		rent, err := ops.RentForPair(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if rent != nil && rent.ActiveAt(now) {
			msg = "user already has an active rental of this book"
			return nil
		}
		req, err := ops.LiveRequestForPair(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if req != nil {
			msg = "user already has an active request for this book"
			return nil
		}
		if _, err := ops.InsertRent(ctx, userID, bookID, now); err != nil {
			return err
		}
		if _, err := ops.InsertRequest(ctx, userID, bookID, StatusApproved, now); err != nil {
			return err
		}
		msg = fmt.Sprintf("book '%s' handed to %s", book.Title, username)
		return nil
	})
	return msg, err
}

// TransferBook reassigns an active rental directly, bypassing the queue:
// the old holder's rent goes away and their approved ticket ends at
// transferred, any request the recipient held for the book is dropped, and
// the recipient gets a fresh rent plus approved ticket, all in one commit.
func (s *Service) TransferBook(ctx context.Context, fromUsername, toUsername string, bookID int64) (string, error) {
	fromID, err := s.store.UserIDByUsername(ctx, fromUsername)
	if err != nil {
		return "", httpapi.ErrNotFound("user or book not found")
	}
	toID, err := s.store.UserIDByUsername(ctx, toUsername)
	if err != nil {
		return "", httpapi.ErrNotFound("user or book not found")
	}
	book, err := s.store.BookByID(ctx, bookID)
	if err != nil {
		return "", httpapi.ErrNotFound("user or book not found")
	}

	now := s.clock.Now()
	err = s.store.InTx(ctx, func(ctx context.Context, ops Ops) error {
		// Lock both parties in id order so concurrent transfers cannot deadlock.
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		if err := ops.LockUser(ctx, first); err != nil {
			return err
		}
		if first != second {
			if err := ops.LockUser(ctx, second); err != nil {
				return err
			}
		}

		rent, err := ops.RentForPair(ctx, fromID, bookID)
		if err != nil {
			return err
		}
		if rent != nil {
			if err := ops.DeleteRent(ctx, rent.ID); err != nil {
				return err
			}
		}
		req, err := ops.ApprovedRequestForPair(ctx, fromID, bookID)
		if err != nil {
			return err
		}
		if req != nil {
			if err := ops.SetRequestStatus(ctx, req.ID, StatusTransferred); err != nil {
				return err
			}
		}
		if err := ops.DeleteRequestsForPair(ctx, toID, bookID); err != nil {
			return err
		}
		if _, err := ops.InsertRent(ctx, toID, bookID, now); err != nil {
			return err
		}
		if _, err := ops.InsertRequest(ctx, toID, bookID, StatusApproved, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("book '%s' transferred from %s to %s", book.Title, fromUsername, toUsername), nil
}

// ===== Queries =====

func (s *Service) ListOpenRequests(ctx context.Context) ([]OpenRequestItem, error) {
	return s.store.ListOpenRequests(ctx)
}

func (s *Service) ListUserRequests(ctx context.Context, username string) ([]UserRequestItem, error) {
	userID, err := s.store.UserIDByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.store.ListUserRequests(ctx, userID)
}

func (s *Service) ListComments(ctx context.Context, bookID int64) ([]CommentItem, error) {
	return s.store.ListComments(ctx, bookID)
}

func (s *Service) ListActiveRents(ctx context.Context) ([]ActiveRentItem, error) {
	return s.store.ListActiveRents(ctx)
}
