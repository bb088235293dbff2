// Package capture persists captured frames.
package capture

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skycoin/skycoin/src/util/logging"
)

var log = logging.MustGetLogger("capture")

// ErrNotFound is returned when no capture has the requested ID.
var ErrNotFound = errors.New("capture not found")

// ErrEmptyFrame is returned when saving an empty frame.
var ErrEmptyFrame = errors.New("empty frame")

// nameLayout renders capture names as frame_ddMMyyyy-HHmmss.
const nameLayout = "02012006-150405"

// Entry describes a stored capture.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store stores captured JPEG frames.
type Store interface {
	Save(jpeg []byte) (*Entry, error)
	Load(id uuid.UUID) (*Entry, []byte, error)
	List() ([]*Entry, error)
	Close() error
}

// FileName returns the base name of a capture taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("frame_%s.jpg", t.Format(nameLayout))
}

// idNamespace derives stable IDs for captures that are only known by name.
var idNamespace = uuid.MustParse("6f1d4b8e-3c55-4a43-9a0e-5c0de5ca97e1")

func nameID(name string) uuid.UUID { return uuid.NewSHA1(idNamespace, []byte(name)) }

func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

type inMemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
	frames  map[uuid.UUID][]byte
	now     func() time.Time
}

// InMemoryStore implements in-memory Store.
func InMemoryStore() Store {
	return &inMemoryStore{
		entries: make(map[uuid.UUID]*Entry),
		frames:  make(map[uuid.UUID][]byte),
		now:     time.Now,
	}
}

func (s *inMemoryStore) Save(jpeg []byte) (*Entry, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}
	now := s.now()
	e := &Entry{ID: uuid.New(), Name: FileName(now), Size: len(jpeg), CreatedAt: now}

	s.mu.Lock()
	s.entries[e.ID] = e
	s.frames[e.ID] = append([]byte(nil), jpeg...)
	s.mu.Unlock()
	return e, nil
}

func (s *inMemoryStore) Load(id uuid.UUID) (*Entry, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	return e, s.frames[id], nil
}

func (s *inMemoryStore) List() ([]*Entry, error) {
	s.mu.Lock()
	entries := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()
	sortEntries(entries)
	return entries, nil
}

func (s *inMemoryStore) Close() error { return nil }
