package document

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store holds the single current document for a session and hands out
// versioned snapshots. Loading a new document bumps the version; async work
// captures the version at start and checks it at completion so results for
// a replaced document are dropped, not reported.
type Store struct {
	logger *zap.Logger

	mu      sync.RWMutex
	current *Document
	version uint64
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{logger: logger}
}

// Load replaces the current document and returns the new snapshot.
// The previous document's version becomes stale immediately.
func (s *Store) Load(id string, pages []PageText) (*Document, error) {
	if err := ValidatePages(pages); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	}

	// Copy so callers cannot mutate the snapshot after load.
	copied := make([]PageText, len(pages))
	copy(copied, pages)

	s.mu.Lock()
	s.version++
	doc := &Document{ID: id, Version: s.version, Pages: copied}
	s.current = doc
	s.mu.Unlock()

	s.logger.Info("Document loaded",
		zap.String("document_id", id),
		zap.Uint64("version", doc.Version),
		zap.Int("pages", len(copied)),
	)
	return doc, nil
}

// Current returns the current document snapshot.
func (s *Store) Current() (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoDocument
	}
	return s.current, nil
}

// Version returns the current document version (0 when nothing is loaded).
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// StillCurrent reports whether a result produced against the given version
// may be surfaced. A false return means the document was replaced while the
// work was in flight and the result must be silently dropped.
func (s *Store) StillCurrent(version uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && s.version == version
}
