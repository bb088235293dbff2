package capture

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var namePattern = regexp.MustCompile(`^frame_\d{8}-\d{6}(_\d+)?\.jpg$`)

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, err := s.Save(nil)
	assert.Equal(t, ErrEmptyFrame, err)

	e1, err := s.Save([]byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9})
	require.NoError(t, err)
	e2, err := s.Save([]byte{0xFF, 0xD8, 0x02, 0x02, 0xFF, 0xD9})
	require.NoError(t, err)

	assert.NotEqual(t, e1.ID, e2.ID)
	assert.Equal(t, 5, e1.Size)
	assert.Regexp(t, namePattern, e1.Name)

	e, frame, err := s.Load(e2.ID)
	require.NoError(t, err)
	assert.Equal(t, e2.ID, e.ID)
	assert.Equal(t, []byte{0xFF, 0xD8, 0x02, 0x02, 0xFF, 0xD9}, frame)

	_, _, err = s.Load(uuid.New())
	assert.Equal(t, ErrNotFound, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	ids := map[uuid.UUID]bool{list[0].ID: true, list[1].ID: true}
	assert.True(t, ids[e1.ID])
	assert.True(t, ids[e2.ID])

	require.NoError(t, s.Close())
}

func TestInMemoryStore(t *testing.T) {
	testStore(t, InMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "captures")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.RemoveAll(dir))
	}()

	s, err := FileStore(dir)
	require.NoError(t, err)
	testStore(t, s)
}

func TestFileStore_SameSecond(t *testing.T) {
	dir, err := ioutil.TempDir("", "captures")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.RemoveAll(dir))
	}()

	s, err := FileStore(dir)
	require.NoError(t, err)
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	s.(*fileStore).now = func() time.Time { return at }

	e1, err := s.Save([]byte{1})
	require.NoError(t, err)
	e2, err := s.Save([]byte{2})
	require.NoError(t, err)

	assert.Equal(t, "frame_09032024-140507.jpg", e1.Name)
	assert.Equal(t, "frame_09032024-140507_1.jpg", e2.Name)

	b, err := ioutil.ReadFile(filepath.Join(dir, e2.Name))
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, b)

	// Files not written by the store are ignored.
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestBoltDBStore(t *testing.T) {
	dbfile, err := ioutil.TempFile("", "captures.db")
	require.NoError(t, err)
	require.NoError(t, dbfile.Close())
	defer func() {
		require.NoError(t, os.Remove(dbfile.Name()))
	}()

	s, err := BoltDBStore(dbfile.Name())
	require.NoError(t, err)
	testStore(t, s)

	// Captures survive reopening.
	s, err = BoltDBStore(dbfile.Name())
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()
	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestBoltDBStore_ManyFrames(t *testing.T) {
	dbfile, err := ioutil.TempFile("", "captures.db")
	require.NoError(t, err)
	require.NoError(t, dbfile.Close())
	defer func() {
		require.NoError(t, os.Remove(dbfile.Name()))
	}()

	s, err := BoltDBStore(dbfile.Name())
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	// Enough data to split and grow pages several times.
	saved := make(map[uuid.UUID][]byte)
	for i := 0; i < 200; i++ {
		frame := bytes.Repeat([]byte{byte(i)}, 1+i*97)
		e, err := s.Save(frame)
		require.NoError(t, err)
		saved[e.ID] = frame
	}

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, len(saved))
	for id, want := range saved {
		_, got, err := s.Load(id)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2025, 12, 31, 23, 59, 58, 0, time.UTC)
	assert.Equal(t, "frame_31122025-235958.jpg", FileName(at))
}
