package store

import (
	"context"
	"encoding"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const artifactKeyPrefix = "artifact:"

// BadgerStore keeps artifacts in a BadgerDB under "artifact:<name>" keys.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a BadgerDB in dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an open database. Close closes db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Save(ctx context.Context, name string, v encoding.BinaryMarshaler) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(artifactKeyPrefix+name), data); err != nil {
			return fmt.Errorf("set artifact: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) Load(ctx context.Context, name string, v encoding.BinaryUnmarshaler) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(artifactKeyPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return fmt.Errorf("get artifact: %w", err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return err
	}
	return v.UnmarshalBinary(data)
}

func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(artifactKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return names, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
