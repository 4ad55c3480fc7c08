// Package session holds per-user in-memory selection state between choosing a
// group and confirming payment. Sessions are deliberately not persisted: they
// only cover an in-progress, unconfirmed flow, and losing them on restart
// just means the user picks a group again.
package session

import "sync"

// ReceiptType distinguishes how an uploaded receipt should be re-sent.
type ReceiptType string

const (
	ReceiptPhoto    ReceiptType = "photo"
	ReceiptDocument ReceiptType = "document"
)

// Session is one user's in-progress subscription flow.
type Session struct {
	// SelectedGroupID is the group the user is subscribing to.
	SelectedGroupID int64

	// ReceiptFileID and ReceiptType track an uploaded payment receipt,
	// forwarded to the admin on confirmation.
	ReceiptFileID string
	ReceiptType   ReceiptType
}

// Manager is a mutex-guarded session map keyed by user id.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// Get returns a copy of the user's session, if any.
func (m *Manager) Get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Select starts (or restarts) a session for the chosen group, discarding any
// previously uploaded receipt.
func (m *Manager) Select(userID, groupID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = &Session{SelectedGroupID: groupID}
}

// AttachReceipt records an uploaded receipt on the user's session.
// Returns false when the user has not selected a group yet.
func (m *Manager) AttachReceipt(userID int64, fileID string, kind ReceiptType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return false
	}
	s.ReceiptFileID = fileID
	s.ReceiptType = kind
	return true
}

// Clear drops the user's session.
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}
