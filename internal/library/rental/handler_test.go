package rental

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarium-backend/internal/platform/auth"
)

type memNotifier struct {
	bookIDs []int64
	titles  []string
}

func (n *memNotifier) BroadcastBookAvailable(bookID int64, title string) {
	n.bookIDs = append(n.bookIDs, bookID)
	n.titles = append(n.titles, title)
}

// stubAuthn injects identity the way RequireAuth does after token validation.
func stubAuthn(username, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.CtxUsernameKey, username)
		c.Set(auth.CtxRoleKey, role)
		c.Next()
	}
}

func newTestRouter(m *memLedger, notifier AvailabilityNotifier, username, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestService(m), notifier, stubAuthn(username, role))
	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTransferBookAuthorization(t *testing.T) {
	m := newMemLedger()
	alice := m.addUser("alice")
	m.addUser("bob")
	book := m.addBook("Dune")
	svc := newTestService(m)
	_, err := svc.GiveBookDirect(context.Background(), "alice", book)
	require.NoError(t, err)

	body := TransferBookIn{FromUsername: "alice", ToUsername: "bob", BookID: book}

	// A third party cannot move someone else's book.
	r := newTestRouter(m, &memNotifier{}, "mallory", auth.RoleReader)
	w := postJSON(r, "/transfer_book", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, m.rentsForUser(alice), 1)

	// The holder can.
	r = newTestRouter(m, &memNotifier{}, "alice", auth.RoleReader)
	w = postJSON(r, "/transfer_book", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, m.rentsForUser(alice))
}

func TestTransferBookByLibrarian(t *testing.T) {
	m := newMemLedger()
	m.addUser("alice")
	bob := m.addUser("bob")
	book := m.addBook("Dune")
	svc := newTestService(m)
	_, err := svc.GiveBookDirect(context.Background(), "alice", book)
	require.NoError(t, err)

	r := newTestRouter(m, &memNotifier{}, "kate", auth.RoleLibrarian)
	w := postJSON(r, "/transfer_book", TransferBookIn{FromUsername: "alice", ToUsername: "bob", BookID: book})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, m.rentsForUser(bob), 1)
}

func TestAcceptReturnBroadcastsAvailability(t *testing.T) {
	m := newMemLedger()
	alice := m.addUser("alice")
	book := m.addBook("Dune")
	svc := newTestService(m)

	_, err := svc.RequestRent(context.Background(), "alice", book)
	require.NoError(t, err)
	id := pendingRequestID(t, m, alice, book)
	_, err = svc.ProcessRequest(context.Background(), id, true)
	require.NoError(t, err)
	_, err = svc.RequestReturn(context.Background(), ReturnRequestIn{RequestID: id, Username: "alice", Text: "fine", Rating: 4})
	require.NoError(t, err)

	notifier := &memNotifier{}
	r := newTestRouter(m, notifier, "kate", auth.RoleLibrarian)
	w := postJSON(r, "/librarian/accept_return", AcceptReturnIn{RequestID: id})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, notifier.bookIDs, 1)
	assert.Equal(t, book, notifier.bookIDs[0])
	assert.Equal(t, "Dune", notifier.titles[0])
}

func TestCancelRentBroadcastsAvailability(t *testing.T) {
	m := newMemLedger()
	alice := m.addUser("alice")
	book := m.addBook("Dune")
	svc := newTestService(m)
	_, err := svc.GiveBookDirect(context.Background(), "alice", book)
	require.NoError(t, err)
	rentID := m.rentsForUser(alice)[0].ID

	notifier := &memNotifier{}
	r := newTestRouter(m, notifier, "kate", auth.RoleLibrarian)
	w := postJSON(r, "/librarian/cancel_rent", RentIdIn{RentID: rentID})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, notifier.bookIDs, 1)
	assert.Equal(t, book, notifier.bookIDs[0])
}
