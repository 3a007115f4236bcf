package catalog

type BookItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	Author      string `json:"author"`
	Genre       string `json:"genre"`
	Publisher   string `json:"publisher"`
}

// SearchFilter: the free-text Query is OR'd over title/author/genre/
// publisher/description; the named filters are AND'd on top.
type SearchFilter struct {
	Query     string
	Author    string
	Genre     string
	Publisher string
}

type AddBookIn struct {
	Title       string `form:"title" binding:"required"`
	Author      string `form:"author" binding:"required"`
	Genre       string `form:"genre" binding:"required"`
	Publisher   string `form:"publisher" binding:"required"`
	Description string `form:"description" binding:"required"`
	CoverURL    string `form:"cover_url" binding:"required"`
}

type BookIdIn struct {
	BookID int64 `json:"book_id" binding:"required"`
}
