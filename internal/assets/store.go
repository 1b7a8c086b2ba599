package assets

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("asset not found")

// Asset describes a registered in-memory resource
type Asset struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	MIMEType  string    `json:"mime_type"`
	Extension string    `json:"extension"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type entry struct {
	asset Asset
	data  []byte
}

// Stats summarises the contents of a store
type Stats struct {
	Count      int   `json:"count"`
	TotalBytes int64 `json:"total_bytes"`
	Revoked    int64 `json:"revoked"`
}

// Store keeps session-scoped binary resources addressable by handle.
// Handles stay valid until Revoke or RevokeAll; superseding an asset does not
// release the old one.
type Store struct {
	baseURL string
	entries map[string]*entry
	revoked int64
	now     func() time.Time
	mu      sync.RWMutex
}

// NewStore creates a store whose handles are rooted at baseURL
func NewStore(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Register copies data into the store and returns its descriptor
func (s *Store) Register(data []byte, mimeType, ext string) Asset {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	id := uuid.NewString()

	buf := make([]byte, len(data))
	copy(buf, data)

	a := Asset{
		ID:        id,
		Handle:    fmt.Sprintf("%s/%s%s", s.baseURL, id, ext),
		MIMEType:  mimeType,
		Extension: ext,
		Size:      len(buf),
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.entries[id] = &entry{asset: a, data: buf}
	s.mu.Unlock()

	return a
}

// Get returns the asset and its bytes. The id may carry the extension that
// appears in the handle.
func (s *Store) Get(id string) (Asset, []byte, error) {
	id = trimExtension(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Asset{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.asset, e.data, nil
}

// Lookup resolves a handle produced by this store
func (s *Store) Lookup(handle string) (Asset, []byte, error) {
	if !strings.HasPrefix(handle, s.baseURL+"/") {
		return Asset{}, nil, fmt.Errorf("%w: %s", ErrNotFound, handle)
	}
	return s.Get(strings.TrimPrefix(handle, s.baseURL+"/"))
}

// Revoke releases a single asset
func (s *Store) Revoke(id string) error {
	id = trimExtension(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.entries, id)
	s.revoked++
	return nil
}

// RevokeAll releases every asset and reports how many were held
func (s *Store) RevokeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]*entry)
	s.revoked += int64(n)
	return n
}

// Stats returns a snapshot of store usage
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Count: len(s.entries), Revoked: s.revoked}
	for _, e := range s.entries {
		st.TotalBytes += int64(len(e.data))
	}
	return st
}

// DownloadName builds export filenames such as story-audio-1700000000000.wav
func DownloadName(prefix, ext string, t time.Time) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s-%d%s", prefix, t.UnixMilli(), ext)
}

func trimExtension(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}
