package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"vizinsight/models"
)

const (
	queryPrefix   = "query:"
	queryIDPrefix = "query_id:"
	counterPrefix = "counter:"
)

// ErrNotFound is returned for unknown query ids.
var ErrNotFound = errors.New("not found")

type DB struct {
	badgerDB *badger.DB
}

func New(dbPath string) (*DB, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Disable badger logging for cleaner output
	return open(opts)
}

// NewInMemory opens a database that lives only as long as the process.
func NewInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*DB, error) {
	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{badgerDB: badgerDB}, nil
}

func (d *DB) Close() error {
	return d.badgerDB.Close()
}

// Ping verifies the database still accepts reads.
func (d *DB) Ping() error {
	return d.badgerDB.View(func(txn *badger.Txn) error { return nil })
}

// userSegment length-prefixes userID so no user's keys are a prefix of
// another's, whatever characters the id contains.
func userSegment(userID string) string {
	return fmt.Sprintf("%d:%s:", len(userID), userID)
}

func queryKey(userID string, createdAt time.Time, id string) []byte {
	// zero-padded so lexical order is chronological
	return []byte(fmt.Sprintf("%s%s%020d:%s", queryPrefix, userSegment(userID), createdAt.UnixNano(), id))
}

func queryIDKey(userID, id string) []byte {
	return []byte(queryIDPrefix + userSegment(userID) + id)
}

// StoreQueryRecord appends a query to the user's history.
func (d *DB) StoreQueryRecord(record *models.QueryRecord) error {
	createdAt, err := time.Parse(time.RFC3339Nano, record.CreatedAt)
	if err != nil {
		createdAt = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	key := queryKey(record.UserID, createdAt, record.ID)
	return d.badgerDB.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(queryIDKey(record.UserID, record.ID), key)
	})
}

// ListQueryRecords returns up to limit records for userID, newest first.
func (d *DB) ListQueryRecords(userID string, limit int) ([]models.QueryRecord, error) {
	var records []models.QueryRecord
	prefix := []byte(queryPrefix + userSegment(userID))

	err := d.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration starts at the last key under the prefix
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var r models.QueryRecord
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return records, err
}

// GetQueryRecord returns one record of userID by id.
func (d *DB) GetQueryRecord(userID, id string) (*models.QueryRecord, error) {
	var record models.QueryRecord
	err := d.badgerDB.View(func(txn *badger.Txn) error {
		idx, err := txn.Get(queryIDKey(userID, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CounterStore exposes the database as a ratelimit.Store.
type CounterStore struct {
	db *DB
}

func (d *DB) CounterStore() *CounterStore {
	return &CounterStore{db: d}
}

func (c *CounterStore) Get(_ context.Context, key string) (int, error) {
	var n int
	err := c.db.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(counterPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := strconv.Atoi(strings.TrimSpace(string(val)))
			if err == nil {
				n = v
			}
			return nil
		})
	})
	return n, err
}

func (c *CounterStore) Set(_ context.Context, key string, value int, ttl time.Duration) error {
	return c.db.badgerDB.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(counterPrefix+key), []byte(strconv.Itoa(value)))
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}
