package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const verdictKeyPrefix = "verdict:"

// BadgerCache is a VerdictCache persisted in an embedded BadgerDB.
// Verdicts survive restarts, so a redeploy doesn't re-bill the generator
// for cases it has already decided.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens (or creates) a badger store at path
func NewBadgerCache(path string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open verdict cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// Get implements VerdictCache
func (c *BadgerCache) Get(ctx context.Context, key string) (string, bool, error) {
	var verdict string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(verdictKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			verdict = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("verdict cache get: %w", err)
	}
	return verdict, true, nil
}

// Set implements VerdictCache
func (c *BadgerCache) Set(ctx context.Context, key, verdict string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultVerdictTTL
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(verdictKeyPrefix+key), []byte(verdict)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("verdict cache set: %w", err)
	}
	return nil
}

// Close implements VerdictCache
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

var _ VerdictCache = (*BadgerCache)(nil)
