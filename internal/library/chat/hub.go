package chat

import "go.uber.org/zap"

// Hub does best-effort delivery on top of the registry: recipients that are
// offline are silently skipped, write errors are logged and swallowed.
type Hub struct {
	reg *Registry
	log *zap.Logger
}

func NewHub(reg *Registry, log *zap.Logger) *Hub {
	return &Hub{reg: reg, log: log}
}

// SendDirect delivers a frame to a single user if they are connected.
func (h *Hub) SendDirect(to string, frame DirectFrame) {
	c := h.reg.get(to)
	if c == nil {
		return
	}
	if err := c.send(frame); err != nil {
		h.log.Warn("chat write failed", zap.String("to", to), zap.Error(err))
	}
}

// BroadcastUserList pushes the current presence snapshot to every connection.
func (h *Hub) BroadcastUserList() {
	frame := UsersFrame{Type: TypeUsers, Users: h.reg.Usernames()}
	for _, c := range h.reg.all() {
		if err := c.send(frame); err != nil {
			h.log.Warn("chat write failed", zap.Error(err))
		}
	}
}

// BroadcastBookAvailable notifies everyone that a book returned to the shelf.
func (h *Hub) BroadcastBookAvailable(bookID int64, title string) {
	frame := BookAvailableFrame{Type: TypeBookAvailable, BookID: bookID, BookTitle: title}
	for _, c := range h.reg.all() {
		if err := c.send(frame); err != nil {
			h.log.Warn("chat write failed", zap.Error(err))
		}
	}
}
