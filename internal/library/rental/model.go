package rental

import "time"

// rentalWindow is how long a rent stays active after rented_at. Expiry is
// computed at read time, never stored and never swept.
const rentalWindow = 48 * time.Hour

type Status string

const (
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusDeclined        Status = "declined"
	StatusCancelled       Status = "cancelled"
	StatusReturnRequested Status = "return_requested"
	StatusReturned        Status = "returned"
	StatusTransferred     Status = "transferred"
)

// Live reports whether a request still occupies the (user, book) workflow
// slot. At most one live request may exist per pair.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusApproved || s == StatusReturnRequested
}

// Rent is an active loan, one row of the rents table.
type Rent struct {
	ID       int64
	UserID   int64
	BookID   int64
	RentedAt time.Time
}

// ActiveAt is the single source of truth for the 48h activity window.
func (r Rent) ActiveAt(now time.Time) bool {
	return now.Before(r.RentedAt.Add(rentalWindow))
}

// Request is the workflow ticket; its status, not the rent row, is the
// authoritative record of where a rental stands.
type Request struct {
	ID        int64
	UserID    int64
	BookID    int64
	Status    Status
	CreatedAt time.Time
}

type Comment struct {
	ID        int64
	UserID    int64
	BookID    int64
	Text      string
	Rating    int
	CreatedAt time.Time
}

// BookRef identifies a catalog entry in ledger results and availability
// notifications.
type BookRef struct {
	ID    int64
	Title string
}
