package couchdiscover

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// journalFileName is the name of the database file
	journalFileName string = "couchdiscover.db"

	// bucketPhasesName will be used to store phase transitions
	bucketPhasesName string = "couchdiscover_phases"

	// bucketMetadataName will be used to store the last phase
	bucketMetadataName string = "couchdiscover_metadata"

	// keyLastPhase is the metadata key holding the last phase
	keyLastPhase string = "last_phase"
)

// Journal records bootstrap phase transitions
type Journal interface {
	// Record stores a single entry
	Record(entry JournalEntry) error

	// Close permits to close the journal
	Close() error
}

// JournalEntry is one phase transition
type JournalEntry struct {
	// RunID is the id of the bootstrap run
	RunID string `json:"run_id"`

	// Phase reached
	Phase string `json:"phase"`

	// Detail is a free text explaining the transition
	Detail string `json:"detail,omitempty"`

	// Time of the transition
	Time time.Time `json:"time"`
}

// BoltOptions holds journal options
type BoltOptions struct {
	// DataDir is the directory where the journal file is written. It's required
	DataDir string

	// Options hold all bolt options
	Options *bolt.Options
}

// BoltJournal is a Journal stored on disk with bbolt
type BoltJournal struct {
	// db allows us to manipulate the k/v database
	db *bolt.DB
}

// nopJournal is used when no journal is configured
type nopJournal struct{}
