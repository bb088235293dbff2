package capture

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	entriesBucket = []byte("entries")
	framesBucket  = []byte("frames")
)

type boltDBStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// BoltDBStore implements Store on top of BoltDB.
func BoltDBStore(path string) (Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{entriesBucket, framesBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket: %s", err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close() // nolint: errcheck
		return nil, err
	}

	return &boltDBStore{db: db, now: time.Now}, nil
}

func (s *boltDBStore) Save(jpeg []byte) (*Entry, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}

	now := s.now()
	e := &Entry{ID: uuid.New(), Name: FileName(now), Size: len(jpeg), CreatedAt: now}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(entriesBucket).Put(e.ID[:], raw); err != nil {
			return err
		}
		return tx.Bucket(framesBucket).Put(e.ID[:], jpeg)
	})
	if err != nil {
		return nil, errors.Wrap(err, "store capture")
	}
	return e, nil
}

func (s *boltDBStore) Load(id uuid.UUID) (*Entry, []byte, error) {
	var (
		e     Entry
		frame []byte
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(entriesBucket).Get(id[:])
		if raw == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		// Values are only valid for the life of the transaction.
		frame = append([]byte(nil), tx.Bucket(framesBucket).Get(id[:])...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &e, frame, nil
}

func (s *boltDBStore) List() ([]*Entry, error) {
	var entries []*Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_, v []byte) error {
			e := new(Entry)
			if err := json.Unmarshal(v, e); err != nil {
				log.WithError(err).Warn("Skipping unreadable capture entry")
				return nil
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func (s *boltDBStore) Close() error {
	return s.db.Close()
}
