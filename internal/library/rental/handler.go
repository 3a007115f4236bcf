package rental

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"librarium-backend/internal/platform/auth"
	"librarium-backend/internal/platform/httpapi"
)

// AvailabilityNotifier is how the surface layer announces that a book became
// free. The ledger itself never talks to the realtime channel.
type AvailabilityNotifier interface {
	BroadcastBookAvailable(bookID int64, title string)
}

type Handler struct {
	svc      *Service
	notifier AvailabilityNotifier
}

func RegisterRoutes(r gin.IRouter, svc *Service, notifier AvailabilityNotifier, authn gin.HandlerFunc) {
	h := &Handler{svc: svc, notifier: notifier}

	reader := auth.RequireRole(auth.RoleReader)
	librarian := auth.RequireRole(auth.RoleLibrarian)

	r.POST("/request_rent", authn, reader, h.RequestRent)
	r.GET("/requests", authn, librarian, h.OpenRequests)
	r.POST("/process_request", authn, librarian, h.ProcessRequest)
	r.GET("/my_requests", h.MyRequests)
	r.GET("/comments/:book_id", h.Comments)
	r.POST("/request_return", authn, reader, h.RequestReturn)
	r.GET("/active_rents", h.ActiveRents)

	r.POST("/librarian/cancel_rent", authn, librarian, h.CancelRent)
	r.POST("/librarian/extend_rent", authn, librarian, h.ExtendRent)
	r.POST("/librarian/give_book", authn, librarian, h.GiveBook)
	r.POST("/librarian/accept_return", authn, librarian, h.AcceptReturn)

	// Any authenticated caller may ask, but the service is only invoked for
	// the current holder or a librarian.
	r.POST("/transfer_book", authn, h.TransferBook)
}

func (h *Handler) RequestRent(c *gin.Context) {
	var in RequestRentIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	msg, err := h.svc.RequestRent(c.Request.Context(), in.Username, in.BookID)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) OpenRequests(c *gin.Context) {
	items, err := h.svc.ListOpenRequests(c.Request.Context())
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) ProcessRequest(c *gin.Context) {
	var in ProcessRequestIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	msg, err := h.svc.ProcessRequest(c.Request.Context(), in.RequestID, *in.Approve)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) MyRequests(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "username is required"))
		return
	}
	items, err := h.svc.ListUserRequests(c.Request.Context(), username)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) Comments(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "book id must be an integer"))
		return
	}
	items, err := h.svc.ListComments(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) RequestReturn(c *gin.Context) {
	var in ReturnRequestIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	msg, err := h.svc.RequestReturn(c.Request.Context(), in)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) ActiveRents(c *gin.Context) {
	items, err := h.svc.ListActiveRents(c.Request.Context())
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CancelRent(c *gin.Context) {
	var in RentIdIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	book, msg, err := h.svc.CancelRent(c.Request.Context(), in.RentID)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	h.notifier.BroadcastBookAvailable(book.ID, book.Title)
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) ExtendRent(c *gin.Context) {
	var in ExtendRentIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	msg, err := h.svc.ExtendRent(c.Request.Context(), in.RentID, in.Hours)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) GiveBook(c *gin.Context) {
	var in GiveBookIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	msg, err := h.svc.GiveBookDirect(c.Request.Context(), in.Username, in.BookID)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) AcceptReturn(c *gin.Context) {
	var in AcceptReturnIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	book, msg, err := h.svc.AcceptReturn(c.Request.Context(), in.RequestID)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	h.notifier.BroadcastBookAvailable(book.ID, book.Title)
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) TransferBook(c *gin.Context) {
	var in TransferBookIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	caller := c.GetString(auth.CtxUsernameKey)
	role := c.GetString(auth.CtxRoleKey)
	if caller != in.FromUsername && role != auth.RoleLibrarian {
		c.JSON(http.StatusForbidden, httpapi.ErrorBody(httpapi.CodeForbidden, "only the current holder or a librarian may transfer a book"))
		return
	}
	msg, err := h.svc.TransferBook(c.Request.Context(), in.FromUsername, in.ToUsername, in.BookID)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
