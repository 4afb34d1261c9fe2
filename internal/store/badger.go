package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/MS-092/DS-RM-FP/internal/models"
)

var runPrefix = []byte("run/")

// BadgerConfig configures the on-disk history store.
type BadgerConfig struct {
	DataPath string
	InMemory bool
	MaxRuns  int
}

// BadgerStore persists runs in Badger under "run/<seq>/<id>" keys so that a
// prefix scan yields insertion order.
type BadgerStore struct {
	db      *badger.DB
	seq     *badger.Sequence
	maxRuns int

	mu sync.Mutex
}

// NewBadgerStore opens (or creates) the history database.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.DataPath)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq/run"), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open run sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, maxRuns: cfg.MaxRuns}, nil
}

func runKey(seq uint64, id string) []byte {
	return []byte(fmt.Sprintf("run/%020d/%s", seq, id))
}

func (b *BadgerStore) Append(_ context.Context, run models.ExperimentRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("next run sequence: %w", err)
	}
	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(next, run.ID), value)
	}); err != nil {
		return err
	}
	if b.maxRuns > 0 {
		return b.prune()
	}
	return nil
}

// prune deletes the oldest runs beyond maxRuns.
func (b *BadgerStore) prune() error {
	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		kept := 0
		seek := append(append([]byte(nil), runPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(runPrefix); it.Next() {
			kept++
			if kept > b.maxRuns {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil || len(stale) == 0 {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) List(_ context.Context, limit int) ([]models.ExperimentRun, error) {
	var runs []models.ExperimentRun
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(runPrefix); it.ValidForPrefix(runPrefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var run models.ExperimentRun
			if err := json.Unmarshal(value, &run); err != nil {
				return fmt.Errorf("decode run %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tail(runs, limit), nil
}

func (b *BadgerStore) Close() error {
	if err := b.seq.Release(); err != nil {
		_ = b.db.Close()
		return err
	}
	return b.db.Close()
}
