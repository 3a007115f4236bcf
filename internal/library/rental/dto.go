package rental

import "time"

// Request bodies

type RequestRentIn struct {
	Username string `json:"username" binding:"required"`
	BookID   int64  `json:"book_id" binding:"required"`
}

type ProcessRequestIn struct {
	RequestID int64 `json:"request_id" binding:"required"`
	Approve   *bool `json:"approve" binding:"required"`
}

type ReturnRequestIn struct {
	RequestID int64  `json:"request_id" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
}

type AcceptReturnIn struct {
	RequestID int64 `json:"request_id" binding:"required"`
}

type RentIdIn struct {
	RentID int64 `json:"rent_id" binding:"required"`
}

type ExtendRentIn struct {
	RentID int64 `json:"rent_id" binding:"required"`
	Hours  int   `json:"hours" binding:"required"`
}

type GiveBookIn struct {
	Username string `json:"username" binding:"required"`
	BookID   int64  `json:"book_id" binding:"required"`
}

type TransferBookIn struct {
	FromUsername string `json:"from_username" binding:"required"`
	ToUsername   string `json:"to_username" binding:"required"`
	BookID       int64  `json:"book_id" binding:"required"`
}

// Responses

type OpenRequestItem struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	BookID    int64     `json:"book_id"`
	BookTitle string    `json:"book_title"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type UserRequestItem struct {
	ID          int64     `json:"id"`
	BookID      int64     `json:"book_id"`
	BookTitle   string    `json:"book_title"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	CoverURL    string    `json:"cover_url"`
	Author      string    `json:"author"`
	Genre       string    `json:"genre"`
	Publisher   string    `json:"publisher"`
	Description string    `json:"description"`
}

type CommentItem struct {
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

type ActiveRentItem struct {
	RentID    int64     `json:"rent_id"`
	Username  string    `json:"username"`
	BookTitle string    `json:"book_title"`
	BookID    int64     `json:"book_id"`
	RentedAt  time.Time `json:"rented_at"`
}
