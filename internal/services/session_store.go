package services

import (
	"context"
	"sync"
	"time"

	"chat_relay_go_backend/internal/models"

	"github.com/rs/zerolog"
)

const DefaultSessionIdleTimeout = 24 * time.Hour

type sessionEntry struct {
	// turn holds a single token while an exchange owns the session.
	turn chan struct{}

	// guarded by SessionStore.mu
	turns        []models.Turn
	lastAccessed time.Time
	active       int
}

// SessionStore holds the conversation transcript of every live session.
// Sessions are created on first use and evicted after idleTimeout without
// activity.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*sessionEntry
	idleTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionStore(log zerolog.Logger, cleanupInterval time.Duration, opts ...StoreOption) *SessionStore {
	o := applyStoreOptions(opts)
	ss := &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		idleTimeout: o.idleTimeout,
		now:         o.now,
		log:         log,
		stop:        make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go ss.periodicCleanup(cleanupInterval)
	}
	return ss
}

func (ss *SessionStore) entryLocked(sessionID string) *sessionEntry {
	entry, ok := ss.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{turn: make(chan struct{}, 1)}
		ss.sessions[sessionID] = entry
	}
	entry.lastAccessed = ss.now()
	return entry
}

// AppendTurn adds turn to the end of the session transcript.
func (ss *SessionStore) AppendTurn(sessionID string, turn models.Turn) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	entry := ss.entryLocked(sessionID)
	entry.turns = append(entry.turns, turn)
}

// Transcript returns a copy of the full history of the session.
func (ss *SessionStore) Transcript(sessionID string) []models.Turn {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	entry, ok := ss.sessions[sessionID]
	if !ok {
		return []models.Turn{}
	}
	return append([]models.Turn(nil), entry.turns...)
}

// ExchangeFunc produces the model turn answering history, whose last
// element is the user turn that was just appended.
type ExchangeFunc func(ctx context.Context, history []models.Turn) (models.Turn, error)

// Exchange runs one user/model round trip with exclusive access to the
// session, so concurrent requests for the same session cannot interleave
// their turns. The user turn is kept even when fn fails.
func (ss *SessionStore) Exchange(ctx context.Context, sessionID string, userTurn models.Turn, fn ExchangeFunc) error {
	ss.mu.Lock()
	entry := ss.entryLocked(sessionID)
	entry.active++
	ss.mu.Unlock()

	defer func() {
		ss.mu.Lock()
		entry.active--
		entry.lastAccessed = ss.now()
		ss.mu.Unlock()
	}()

	select {
	case entry.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.turn }()

	ss.mu.Lock()
	entry.turns = append(entry.turns, userTurn)
	history := append([]models.Turn(nil), entry.turns...)
	ss.mu.Unlock()

	reply, err := fn(ctx, history)
	if err != nil {
		return err
	}

	ss.mu.Lock()
	entry.turns = append(entry.turns, reply)
	ss.mu.Unlock()
	return nil
}

func (ss *SessionStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}

func (ss *SessionStore) periodicCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ss.stop:
			return
		case <-ticker.C:
			ss.CleanupExpiredSessions()
		}
	}
}

// CleanupExpiredSessions evicts sessions idle for longer than the idle
// timeout. Sessions with an exchange in flight are never evicted.
func (ss *SessionStore) CleanupExpiredSessions() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	removed := 0
	for sessionID, entry := range ss.sessions {
		if entry.active > 0 {
			continue
		}
		if now.Sub(entry.lastAccessed) > ss.idleTimeout {
			delete(ss.sessions, sessionID)
			removed++
			ss.log.Debug().
				Str("sessionID", sessionID).
				Int("turns", len(entry.turns)).
				Msg("Session evicted after idle timeout")
		}
	}
	return removed
}

func (ss *SessionStore) Close() {
	ss.stopOnce.Do(func() { close(ss.stop) })
}
