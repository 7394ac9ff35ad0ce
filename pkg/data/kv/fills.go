// Package kv persists small pieces of run state in Badger.
package kv

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/peter-kozarec/quantex/pkg/utility"
)

var (
	fillPrefix = []byte("fill/")
	runPrefix  = []byte("run/")
)

type Options struct {
	Path     string
	InMemory bool
}

// FillStore remembers broker fill ids across restarts so that a fill is never booked twice. It
// also lists the runs that used it, so a restart can rebuild the book from their fills.
type FillStore struct {
	db *badger.DB
}

func OpenFillStore(opts Options) (*FillStore, error) {
	if opts.Path == "" && !opts.InMemory {
		return nil, errors.New("fill store path is required")
	}

	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("unable to open fill store %q: %w", opts.Path, err)
	}
	return &FillStore{db: db}, nil
}

func (s *FillStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *FillStore) Seen(fillId string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(fillKey(fillId))
		switch {
		case err == nil:
			found = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("lookup fill %s: %w", fillId, err)
	}
	return found, nil
}

// Remember stores all ids in one transaction.
func (s *FillStore) Remember(fillIds ...string) error {
	if len(fillIds) == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range fillIds {
			if err := txn.Set(fillKey(id), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("remember %d fills: %w", len(fillIds), err)
	}
	return nil
}

// Count returns the number of remembered fills.
func (s *FillStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		count = countPrefix(txn, fillPrefix)
		return nil
	})
	return count, err
}

// AddRun appends a run to the list returned by Runs.
func (s *FillStore) AddRun(executionID utility.ExecutionID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		n := countPrefix(txn, runPrefix)
		return txn.Set(runKey(n), []byte(executionID.String()))
	})
	if err != nil {
		return fmt.Errorf("add run %s: %w", executionID, err)
	}
	return nil
}

// Runs returns the recorded runs, oldest first.
func (s *FillStore) Runs() ([]utility.ExecutionID, error) {
	var runs []utility.ExecutionID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = runPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			executionID, err := utility.ParseExecutionID(string(value))
			if err != nil {
				return fmt.Errorf("run %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, executionID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		count++
	}
	return count
}

// runKey zero pads the index so keys iterate in insertion order.
func runKey(index int) []byte {
	return []byte(fmt.Sprintf("%s%020d", runPrefix, index))
}

func fillKey(id string) []byte {
	return append(append([]byte(nil), fillPrefix...), id...)
}
