package answer

import (
	"strings"
	"sync"
)

const (
	RoleUser = "User"
	RoleAI   = "AI"
)

// Entry is one turn of a session's conversation.
type Entry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// History keeps per-session conversation turns in memory.
type History struct {
	mu       sync.RWMutex
	sessions map[string][]Entry
}

func NewHistory() *History {
	return &History{sessions: make(map[string][]Entry)}
}

// Get returns a copy of the session's entries, oldest first.
func (h *History) Get(sessionID string) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Entry(nil), h.sessions[sessionID]...)
}

func (h *History) Append(sessionID string, entries ...Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sessionID] = append(h.sessions[sessionID], entries...)
}

func (h *History) Reset(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}

// FormatHistory renders entries one per line as "Role: text".
func FormatHistory(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Role)
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
