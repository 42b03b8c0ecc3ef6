package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"call-review/pkg/models"

	"github.com/dgraph-io/badger/v3"
)

type diskStore struct {
	db *badger.DB
}

// NewDiskStore opens a badger-backed result store under path. Keys are
// result/<analysisID>/<categoryID>/<criterionID>, values JSON.
func NewDiskStore(path string) (ResultStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &diskStore{db: db}, nil
}

func diskKey(analysisID string, res models.ScoreResult) []byte {
	return []byte("result/" + analysisID + "/" + res.CategoryID + "/" + res.CriterionID)
}

func diskPrefix(analysisID string) []byte {
	return []byte("result/" + analysisID + "/")
}

func (s *diskStore) SaveResult(analysisID string, res models.ScoreResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(diskKey(analysisID, res), data)
	})
}

func (s *diskStore) GetResults(analysisID string) ([]models.ScoreResult, error) {
	var out []models.ScoreResult

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = diskPrefix(analysisID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var res models.ScoreResult
				if err := json.Unmarshal(val, &res); err != nil {
					return err
				}
				out = append(out, res)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	return out, nil
}

func (s *diskStore) DeleteResults(analysisID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = diskPrefix(analysisID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *diskStore) Close() error {
	return s.db.Close()
}
