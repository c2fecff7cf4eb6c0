package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	seenBucket     = "seen_items"
	seenValueBytes = 8
)

// boltStore implements a Store backed by BoltDB. Keys are item ids, values
// the unix time the id was first marked.
type boltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(seenBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db, now: time.Now}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SeenItem checks if an item with the given ID has been marked.
func (b *boltStore) SeenItem(id string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}

	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(seenBucket))
		if bucket == nil {
			return fmt.Errorf("seen bucket missing")
		}
		exists = bucket.Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}

// MarkItem records the id, keeping the original timestamp if it already exists.
func (b *boltStore) MarkItem(id string) error {
	if b == nil || b.db == nil {
		return nil
	}
	if err := validID(id); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(seenBucket))
		if bucket == nil {
			return fmt.Errorf("seen bucket missing")
		}
		key := []byte(id)
		if bucket.Get(key) != nil {
			return nil
		}
		buf := make([]byte, seenValueBytes)
		binary.BigEndian.PutUint64(buf, uint64(b.now().Unix()))
		return bucket.Put(key, buf)
	})
}

// SeenAt returns when id was first marked.
func (b *boltStore) SeenAt(id string) (time.Time, bool, error) {
	var (
		at time.Time
		ok bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(seenBucket))
		if bucket == nil {
			return fmt.Errorf("seen bucket missing")
		}
		at, ok = decodeSeenAt(bucket.Get([]byte(id)))
		return nil
	})
	return at, ok, err
}

func (b *boltStore) Flush() error { return nil }

// Count returns the number of keys in the seen bucket.
func (b *boltStore) Count() (int, error) {
	var n int
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(seenBucket))
		if bucket == nil {
			return fmt.Errorf("seen bucket missing")
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

// decodeSeenAt decodes the first-seen time from the stored byte slice.
func decodeSeenAt(value []byte) (time.Time, bool) {
	if len(value) != seenValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
