package couchdiscover

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// OpenBoltJournal opens or creates the journal located in options.DataDir
func OpenBoltJournal(options BoltOptions) (*BoltJournal, error) {
	if options.DataDir == "" {
		return nil, ErrJournalPathEmpty
	}
	if options.Options == nil {
		options.Options = &bolt.Options{Timeout: time.Second}
	}
	if err := createDirectoryIfNotExist(options.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("fail to create directory %s: %w", options.DataDir, err)
	}

	db, err := bolt.Open(filepath.Join(options.DataDir, journalFileName), 0600, options.Options)
	if err != nil {
		return nil, err
	}

	journal := &BoltJournal{db: db}
	if !options.Options.ReadOnly {
		if err := journal.initializeBuckets(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return journal, nil
}

// initializeBuckets will initialize all buckets
// required by the journal
func (b *BoltJournal) initializeBuckets() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketPhasesName)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(bucketMetadataName))
		return err
	})
}

// Close will close bolt database
func (b *BoltJournal) Close() error {
	return b.db.Close()
}

// Record stores entry and updates the last phase
func (b *BoltJournal) Record(entry JournalEntry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketPhasesName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		if err := bucket.Put(encodeUint64ToBytes(seq), value); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketMetadataName)).Put([]byte(keyLastPhase), []byte(entry.Phase))
	})
}

// Entries returns all recorded entries in insertion order
func (b *BoltJournal) Entries() ([]JournalEntry, error) {
	var entries []JournalEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketPhasesName)).ForEach(func(_, v []byte) error {
			var entry JournalEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// LastPhase returns the last recorded phase or an empty string
func (b *BoltJournal) LastPhase() (string, error) {
	var phase string
	err := b.db.View(func(tx *bolt.Tx) error {
		if value := tx.Bucket([]byte(bucketMetadataName)).Get([]byte(keyLastPhase)); value != nil {
			phase = string(value)
		}
		return nil
	})
	return phase, err
}

func (nopJournal) Record(JournalEntry) error { return nil }
func (nopJournal) Close() error              { return nil }

// encodeUint64ToBytes permits to encode uint64 to bytes
func encodeUint64ToBytes(value uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return buf
}

func createDirectoryIfNotExist(d string, perm fs.FileMode) error {
	if _, err := os.Stat(d); os.IsNotExist(err) {
		return os.MkdirAll(d, perm)
	}
	return nil
}
