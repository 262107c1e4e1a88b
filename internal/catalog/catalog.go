// Package catalog keeps an append-only history of backup, prune and restore
// events in a bbolt file next to the snapshots.
package catalog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// FileName is the catalog file created inside the backup directory
const FileName = ".kgvault-catalog.db"

const bucketName = "events"

// Kind classifies an event
type Kind string

const (
	KindCreated  Kind = "created"
	KindPruned   Kind = "pruned"
	KindRestored Kind = "restored"
	KindFailed   Kind = "failed"
)

// Event is one history record
type Event struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Operation     string    `json:"operation,omitempty"`
	File          string    `json:"file,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Trigger       string    `json:"trigger,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	Nodes         int64     `json:"nodes"`
	Relationships int64     `json:"relationships"`
	DryRun        bool      `json:"dry_run,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// Catalog stores events keyed by time-ordered UUIDs. A nil *Catalog is a
// valid no-op catalog.
type Catalog struct {
	db     *bolt.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the catalog file
func Open(path string) (*Catalog, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog %s: %w", path, err)
	}

	return &Catalog{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "catalog"),
	}, nil
}

// Close closes the catalog file
func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the catalog file path
func (c *Catalog) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Record appends an event, assigning its ID and time when unset
func (c *Catalog) Record(e Event) (Event, error) {
	if c == nil {
		return e, nil
	}
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return e, fmt.Errorf("failed to generate event id: %w", err)
		}
		e.ID = id.String()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("failed to encode event: %w", err)
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		return bucket.Put([]byte(e.ID), data)
	})
	if err != nil {
		return e, fmt.Errorf("failed to store event: %w", err)
	}

	c.logger.Debug("event recorded", "id", e.ID, "kind", e.Kind, "file", e.File)
	return e, nil
}

// Recent returns up to limit events, newest first. limit <= 0 returns all.
func (c *Catalog) Recent(limit int) ([]Event, error) {
	if c == nil {
		return nil, nil
	}

	var events []Event
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var e Event
			if err := json.Unmarshal(v, &e); err != nil {
				c.logger.Warn("skipping unreadable catalog event", "id", string(k), "error", err)
				continue
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return events, nil
}

// Count returns the number of stored events
func (c *Catalog) Count() (int, error) {
	if c == nil {
		return 0, nil
	}
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}
