package capture

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type fileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// FileStore implements Store as one JPEG file per capture in dir.
// Capture IDs are derived from file names, so files dropped into dir by
// hand are listed too.
func FileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "create capture dir")
	}
	return &fileStore{dir: dir, now: time.Now}, nil
}

func (s *fileStore) Save(jpeg []byte) (*Entry, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	name := FileName(now)
	for i := 1; s.exists(name); i++ {
		name = fmt.Sprintf("frame_%s_%d.jpg", now.Format(nameLayout), i)
	}

	path := filepath.Join(s.dir, name)
	if err := ioutil.WriteFile(path, jpeg, 0600); err != nil {
		return nil, errors.Wrapf(err, "write %s", path)
	}
	log.Debugf("Saved capture %s (%d bytes)", path, len(jpeg))

	return &Entry{ID: nameID(name), Name: name, Size: len(jpeg), CreatedAt: now}, nil
}

func (s *fileStore) Load(id uuid.UUID) (*Entry, []byte, error) {
	entries, err := s.List()
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		b, err := ioutil.ReadFile(filepath.Join(s.dir, e.Name))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read %s", e.Name)
		}
		return e, b, nil
	}
	return nil, nil, ErrNotFound
}

func (s *fileStore) List() ([]*Entry, error) {
	infos, err := ioutil.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read capture dir")
	}

	entries := make([]*Entry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasPrefix(name, "frame_") || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		entries = append(entries, &Entry{
			ID:        nameID(name),
			Name:      name,
			Size:      int(info.Size()),
			CreatedAt: info.ModTime(),
		})
	}
	sortEntries(entries)
	return entries, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}
