// Package audit keeps an append-only log of admin actions in bbolt.
package audit

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Entry is one recorded admin action.
type Entry struct {
	Seq       uint64
	Time      time.Time
	Actor     uuid.UUID
	ActorName string
	Action    string
	Target    string
	Detail    string
}

// Log wraps a bbolt database holding audit entries.
type Log struct {
	bolt *bbolt.DB
	log  *zap.Logger
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketEntries} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyVersion) == nil {
			return meta.Put(keyVersion, seqToKey(schemaVersion))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create buckets: %w", err)
	}

	return &Log{bolt: db, log: logger.Named("audit")}, nil
}

// Close closes the underlying bbolt database.
func (l *Log) Close() error {
	if l.bolt != nil {
		return l.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (l *Log) Path() string {
	if l.bolt != nil {
		return l.bolt.Path()
	}
	return ""
}

// Append stores e under the next sequence number.
func (l *Log) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	return l.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("audit: next sequence: %w", err)
		}
		e.Seq = seq
		data, err := encodeEntry(&e)
		if err != nil {
			return fmt.Errorf("audit: encode entry %d: %w", seq, err)
		}
		return b.Put(seqToKey(seq), data)
	})
}

// Recent returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (l *Log) Recent(limit int) ([]Entry, error) {
	var out []Entry
	err := l.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			e, err := decodeEntry(v)
			if err != nil {
				return fmt.Errorf("audit: decode entry %d: %w", keyToSeq(k), err)
			}
			out = append(out, *e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Count returns the number of stored entries.
func (l *Log) Count() int {
	n := 0
	l.bolt.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return n
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (l *Log) Backup(path string) error {
	return l.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("audit: create backup %s: %w", path, err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return fmt.Errorf("audit: write backup: %w", err)
		}
		l.log.Info("backup written", zap.String("path", path))
		return nil
	})
}
