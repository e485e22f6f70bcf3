// Package presence tracks who is currently editing each paper and fans the
// editing flag out to every viewer of that paper.
package presence

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message types exchanged with clients
const (
	TypeStartEditing = "start_editing"
	TypeStopEditing  = "stop_editing"
	TypeEditor       = "editor"
	TypeBusy         = "busy"
)

const sendBuffer = 16

// Message is a presence event. Editor fields are empty when nobody holds the flag.
type Message struct {
	Type       string `json:"type"`
	PaperID    string `json:"paper_id,omitempty"`
	EditorID   string `json:"editor_id,omitempty"`
	EditorName string `json:"editor,omitempty"`
}

// Client is one subscriber connection to a paper.
type Client struct {
	id      uuid.UUID
	paperID string
	userID  string
	name    string
	send    chan Message
}

// Events delivers messages for the client. It is closed by Leave.
func (c *Client) Events() <-chan Message {
	return c.send
}

// PaperID returns the paper the client is subscribed to.
func (c *Client) PaperID() string {
	return c.paperID
}

type paper struct {
	editor      *Client
	subscribers map[uuid.UUID]*Client
}

// Hub holds at most one editor per paper. It is safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	papers map[string]*paper
	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		papers: make(map[string]*paper),
		logger: logger,
	}
}

// Join subscribes a user to paperID. The current editor state is queued as the
// client's first event.
func (h *Hub) Join(paperID, userID, name string) *Client {
	c := &Client{
		id:      uuid.New(),
		paperID: paperID,
		userID:  userID,
		name:    name,
		send:    make(chan Message, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.papers[paperID]
	if !ok {
		p = &paper{subscribers: make(map[uuid.UUID]*Client)}
		h.papers[paperID] = p
	}
	p.subscribers[c.id] = c
	h.deliver(c, editorMessage(paperID, p.editor))

	return c
}

// Leave unsubscribes c and releases its editing flag.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.subscription(c)
	if !ok {
		return
	}

	delete(p.subscribers, c.id)
	close(c.send)

	if p.editor == c {
		p.editor = nil
		h.broadcast(p, editorMessage(c.paperID, nil))
	}
	if len(p.subscribers) == 0 {
		delete(h.papers, c.paperID)
	}
}

// StartEditing claims the editing flag for c. A client that has left cannot
// claim. A flag held by another user is not taken over; c receives a busy
// message instead. The same user claiming
// from another connection moves the flag to that connection.
func (h *Hub) StartEditing(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.subscription(c)
	if !ok {
		return false
	}

	switch {
	case p.editor == c:
		return true
	case p.editor != nil && p.editor.userID != c.userID:
		busy := editorMessage(c.paperID, p.editor)
		busy.Type = TypeBusy
		h.deliver(c, busy)
		return false
	}

	p.editor = c
	h.broadcast(p, editorMessage(c.paperID, c))

	h.logger.Debug("editing flag claimed",
		zap.String("paper_id", c.paperID),
		zap.String("user_id", c.userID))
	return true
}

// StopEditing releases the flag if c holds it.
func (h *Hub) StopEditing(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.subscription(c)
	if !ok || p.editor != c {
		return
	}

	p.editor = nil
	h.broadcast(p, editorMessage(c.paperID, nil))
}

// Editor returns the user currently editing paperID.
func (h *Hub) Editor(paperID string) (userID string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, found := h.papers[paperID]
	if !found || p.editor == nil {
		return "", false
	}
	return p.editor.userID, true
}

// Subscribers returns the number of connections watching paperID.
func (h *Hub) Subscribers(paperID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.papers[paperID]; ok {
		return len(p.subscribers)
	}
	return 0
}

// subscription returns the paper c is still subscribed to. A client that has
// left has no say over the flag. Must be called with mu held.
func (h *Hub) subscription(c *Client) (*paper, bool) {
	p, ok := h.papers[c.paperID]
	if !ok {
		return nil, false
	}
	if _, subscribed := p.subscribers[c.id]; !subscribed {
		return nil, false
	}
	return p, true
}

// broadcast must be called with mu held.
func (h *Hub) broadcast(p *paper, msg Message) {
	for _, c := range p.subscribers {
		h.deliver(c, msg)
	}
}

// deliver must be called with mu held. A client whose buffer is full misses
// the message.
func (h *Hub) deliver(c *Client, msg Message) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("presence client too slow, dropping message",
			zap.String("paper_id", c.paperID),
			zap.String("user_id", c.userID),
			zap.String("type", msg.Type))
	}
}

func editorMessage(paperID string, editor *Client) Message {
	msg := Message{Type: TypeEditor, PaperID: paperID}
	if editor != nil {
		msg.EditorID = editor.userID
		msg.EditorName = editor.name
	}
	return msg
}
