package rental

import (
	"context"
	"sort"
	"time"

	"librarium-backend/internal/platform/httpapi"
)

// memLedger is an in-memory LedgerStore for service tests. InTx snapshots the
// state and rolls it back when fn fails, mirroring transaction semantics.
type memLedger struct {
	seq      int64
	userIDs  map[string]int64
	userName map[int64]string
	books    map[int64]BookRef
	requests map[int64]Request
	rents    map[int64]Rent
	comments map[int64]Comment
}

func newMemLedger() *memLedger {
	return &memLedger{
		userIDs:  make(map[string]int64),
		userName: make(map[int64]string),
		books:    make(map[int64]BookRef),
		requests: make(map[int64]Request),
		rents:    make(map[int64]Rent),
		comments: make(map[int64]Comment),
	}
}

func (m *memLedger) nextID() int64 {
	m.seq++
	return m.seq
}

func (m *memLedger) addUser(username string) int64 {
	id := m.nextID()
	m.userIDs[username] = id
	m.userName[id] = username
	return id
}

func (m *memLedger) addBook(title string) int64 {
	id := m.nextID()
	m.books[id] = BookRef{ID: id, Title: title}
	return id
}

func (m *memLedger) requestByID(id int64) (Request, bool) {
	r, ok := m.requests[id]
	return r, ok
}

func (m *memLedger) rentsForUser(userID int64) []Rent {
	var out []Rent
	for _, r := range m.rents {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memLedger) snapshot() *memLedger {
	cp := newMemLedger()
	cp.seq = m.seq
	for k, v := range m.userIDs {
		cp.userIDs[k] = v
	}
	for k, v := range m.userName {
		cp.userName[k] = v
	}
	for k, v := range m.books {
		cp.books[k] = v
	}
	for k, v := range m.requests {
		cp.requests[k] = v
	}
	for k, v := range m.rents {
		cp.rents[k] = v
	}
	for k, v := range m.comments {
		cp.comments[k] = v
	}
	return cp
}

func (m *memLedger) InTx(ctx context.Context, fn func(ctx context.Context, ops Ops) error) error {
	saved := m.snapshot()
	if err := fn(ctx, m); err != nil {
		*m = *saved
		return err
	}
	return nil
}

func (m *memLedger) UserIDByUsername(ctx context.Context, username string) (int64, error) {
	id, ok := m.userIDs[username]
	if !ok {
		return 0, httpapi.ErrNotFound("user not found")
	}
	return id, nil
}

func (m *memLedger) BookByID(ctx context.Context, id int64) (*BookRef, error) {
	b, ok := m.books[id]
	if !ok {
		return nil, httpapi.ErrNotFound("book not found")
	}
	return &b, nil
}

func (m *memLedger) ListOpenRequests(ctx context.Context) ([]OpenRequestItem, error) {
	var out []OpenRequestItem
	for _, r := range m.requests {
		if r.Status != StatusPending && r.Status != StatusReturnRequested {
			continue
		}
		out = append(out, OpenRequestItem{
			ID:        r.ID,
			Username:  m.userName[r.UserID],
			BookID:    r.BookID,
			BookTitle: m.books[r.BookID].Title,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLedger) ListUserRequests(ctx context.Context, userID int64) ([]UserRequestItem, error) {
	var out []UserRequestItem
	for _, r := range m.requests {
		if r.UserID != userID {
			continue
		}
		out = append(out, UserRequestItem{
			ID:        r.ID,
			BookID:    r.BookID,
			BookTitle: m.books[r.BookID].Title,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLedger) ListComments(ctx context.Context, bookID int64) ([]CommentItem, error) {
	var out []CommentItem
	for _, c := range m.comments {
		if c.BookID != bookID {
			continue
		}
		out = append(out, CommentItem{
			Username:  m.userName[c.UserID],
			Text:      c.Text,
			Rating:    c.Rating,
			CreatedAt: c.CreatedAt,
		})
	}
	return out, nil
}

func (m *memLedger) ListActiveRents(ctx context.Context) ([]ActiveRentItem, error) {
	var out []ActiveRentItem
	for _, r := range m.rents {
		out = append(out, ActiveRentItem{
			RentID:    r.ID,
			Username:  m.userName[r.UserID],
			BookTitle: m.books[r.BookID].Title,
			BookID:    r.BookID,
			RentedAt:  r.RentedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RentID < out[j].RentID })
	return out, nil
}

// ===== Ops =====

func (m *memLedger) LockUser(ctx context.Context, userID int64) error {
	if _, ok := m.userName[userID]; !ok {
		return httpapi.ErrNotFound("user not found")
	}
	return nil
}

func (m *memLedger) RequestForUpdate(ctx context.Context, id int64) (*Request, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memLedger) LiveRequestForPair(ctx context.Context, userID, bookID int64) (*Request, error) {
	for _, r := range m.requests {
		if r.UserID == userID && r.BookID == bookID && r.Status.Live() {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memLedger) ApprovedRequestForPair(ctx context.Context, userID, bookID int64) (*Request, error) {
	for _, r := range m.requests {
		if r.UserID == userID && r.BookID == bookID && r.Status == StatusApproved {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memLedger) RentForUpdate(ctx context.Context, id int64) (*Rent, error) {
	if r, ok := m.rents[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memLedger) RentForPair(ctx context.Context, userID, bookID int64) (*Rent, error) {
	for _, r := range m.rents {
		if r.UserID == userID && r.BookID == bookID {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memLedger) InsertRequest(ctx context.Context, userID, bookID int64, status Status, createdAt time.Time) (int64, error) {
	id := m.nextID()
	m.requests[id] = Request{ID: id, UserID: userID, BookID: bookID, Status: status, CreatedAt: createdAt}
	return id, nil
}

func (m *memLedger) SetRequestStatus(ctx context.Context, id int64, status Status) error {
	r := m.requests[id]
	r.Status = status
	m.requests[id] = r
	return nil
}

func (m *memLedger) DeclineOtherPending(ctx context.Context, bookID, exceptID int64) error {
	for id, r := range m.requests {
		if r.BookID == bookID && r.Status == StatusPending && id != exceptID {
			r.Status = StatusDeclined
			m.requests[id] = r
		}
	}
	return nil
}

func (m *memLedger) DeleteRequestsForPair(ctx context.Context, userID, bookID int64) error {
	for id, r := range m.requests {
		if r.UserID == userID && r.BookID == bookID {
			delete(m.requests, id)
		}
	}
	return nil
}

func (m *memLedger) InsertRent(ctx context.Context, userID, bookID int64, rentedAt time.Time) (int64, error) {
	id := m.nextID()
	m.rents[id] = Rent{ID: id, UserID: userID, BookID: bookID, RentedAt: rentedAt}
	return id, nil
}

func (m *memLedger) SetRentedAt(ctx context.Context, id int64, rentedAt time.Time) error {
	r := m.rents[id]
	r.RentedAt = rentedAt
	m.rents[id] = r
	return nil
}

func (m *memLedger) DeleteRent(ctx context.Context, id int64) error {
	delete(m.rents, id)
	return nil
}

func (m *memLedger) InsertComment(ctx context.Context, userID, bookID int64, text string, rating int, createdAt time.Time) (int64, error) {
	id := m.nextID()
	m.comments[id] = Comment{ID: id, UserID: userID, BookID: bookID, Text: text, Rating: rating, CreatedAt: createdAt}
	return id, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
