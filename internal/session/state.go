// Package session holds the process-wide context shared by producers, the
// buffer and the delivery client. It replaces hidden statics: one State is
// created per SDK instance and passed to every component that needs it.
package session

import (
	"regexp"
	"sync"

	"github.com/google/uuid"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// maxUserIDLength bounds SetUserID input.
const maxUserIDLength = 128

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@+\-]+$`)

// State is the mutable session record. It has its own lock and is read
// without holding the buffer lock.
type State struct {
	mu         sync.RWMutex
	sessionID  string
	clientID   string
	userID     string
	identityID string
	screenName string
	pageID     string
	started    bool
}

// Snapshot is a consistent copy of State used to build one payload.
type Snapshot struct {
	SessionID  string
	ClientID   string
	UserID     string
	IdentityID string
	ScreenName string
	PageID     string
	Started    bool
}

// New creates a stopped State with a fresh client id.
func New() *State {
	return &State{clientID: uuid.NewString()}
}

// Start marks the session started and regenerates the session id.
// Returns the new session id.
func (s *State) Start() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = uuid.NewString()
	s.pageID = uuid.NewString()
	s.started = true
	return s.sessionID
}

// Stop marks the session stopped. Later Record calls become no-ops.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
}

// Reset clears the session and screen fields after a stop. The client id
// and user id survive; they belong to the SDK instance, not the session.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.sessionID = ""
	s.screenName = ""
	s.pageID = ""
}

// Started reports whether the SDK is running.
func (s *State) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// SessionID returns the current session id, empty when never started.
func (s *State) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// ClientID returns the per-instance client id.
func (s *State) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// SetUserID sets the host user identity. Malformed ids are rejected with a
// validation error, the one failure the pipeline surfaces to callers.
func (s *State) SetUserID(id string) error {
	if id == "" || len(id) > maxUserIDLength || !userIDPattern.MatchString(id) {
		return beaconerrors.NewValidationError(beaconerrors.CodeInvalidUserID,
			"user id must be 1-128 characters of letters, digits or ._@+-").
			WithDetails(map[string]interface{}{"length": len(id)})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
	return nil
}

// ClearUserID forgets the user identity.
func (s *State) ClearUserID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
}

// UserID returns the user identity, empty if unset.
func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetIdentity stores the acquired device identifier.
func (s *State) SetIdentity(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identityID = id
}

// SetScreen records the current screen. A change of screen starts a new page.
func (s *State) SetScreen(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.screenName && s.pageID != "" {
		return
	}
	s.screenName = name
	s.pageID = uuid.NewString()
}

// Screen returns the current screen name.
func (s *State) Screen() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screenName
}

// Snapshot returns a consistent copy of every field.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		SessionID:  s.sessionID,
		ClientID:   s.clientID,
		UserID:     s.userID,
		IdentityID: s.identityID,
		ScreenName: s.screenName,
		PageID:     s.pageID,
		Started:    s.started,
	}
}
