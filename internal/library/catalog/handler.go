package catalog

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"librarium-backend/internal/platform/auth"
	"librarium-backend/internal/platform/httpapi"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRouter, svc *Service, authn gin.HandlerFunc) {
	h := &Handler{svc: svc}
	librarian := auth.RequireRole(auth.RoleLibrarian)

	r.GET("/books", h.Search)
	r.POST("/add_books", authn, librarian, h.AddBook)
	r.GET("/read/:book_id", h.Read)
	r.POST("/librarian/delete_book", authn, librarian, h.DeleteBook)
}

func (h *Handler) Search(c *gin.Context) {
	f := SearchFilter{
		Query:     c.Query("query"),
		Author:    c.Query("author"),
		Genre:     c.Query("genre"),
		Publisher: c.Query("publisher"),
	}
	books, err := h.svc.Search(c.Request.Context(), f)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *Handler) AddBook(c *gin.Context) {
	var in AddBookIn
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "missing required book fields"))
		return
	}

	fh, err := c.FormFile("pdf_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "pdf_file is required"))
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") || fh.Header.Get("Content-Type") != "application/pdf" {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "please upload a PDF file"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, httpapi.ErrorFrom(err))
		return
	}
	defer f.Close()

	id, err := h.svc.AddBook(c.Request.Context(), in, f)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "book added with PDF", "book_id": id})
}

func (h *Handler) Read(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "book id must be an integer"))
		return
	}
	path, err := h.svc.PDFPath(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(path, filepath.Base(path))
}

func (h *Handler) DeleteBook(c *gin.Context) {
	var in BookIdIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.ErrorBody(httpapi.CodeInvalidArgument, "invalid json"))
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), in.BookID); err != nil {
		c.JSON(httpapi.ToHTTPStatus(err), httpapi.ErrorFrom(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "book deleted"})
}
