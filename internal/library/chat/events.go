package chat

import "encoding/json"

// Frame types exchanged over the socket. Client frames carry "to", server
// frames carry "from"; offer payloads pass the book object through untouched.
const (
	TypeMessage           = "message"
	TypeBookOffer         = "book_offer"
	TypeBookOfferResponse = "book_offer_response"
	TypeUsers             = "users"
	TypeBookAvailable     = "book_available"
)

type ClientFrame struct {
	Type     string          `json:"type"`
	To       string          `json:"to"`
	Message  string          `json:"message,omitempty"`
	Book     json.RawMessage `json:"book,omitempty"`
	Accepted *bool           `json:"accepted,omitempty"`
}

type DirectFrame struct {
	Type     string          `json:"type"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Message  string          `json:"message,omitempty"`
	Book     json.RawMessage `json:"book,omitempty"`
	Accepted *bool           `json:"accepted,omitempty"`
}

type UsersFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

type BookAvailableFrame struct {
	Type      string `json:"type"`
	BookID    int64  `json:"book_id"`
	BookTitle string `json:"book_title"`
}
