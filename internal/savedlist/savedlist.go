// Package savedlist keeps the client's saved-content ids: an ordered set
// stored under one key.
package savedlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"streamhub/internal/apperr"
)

const savedKey = "saved:content"

// Repository persists the saved list. Get returns ids in the order they
// were saved; a list that was never written is empty.
type Repository interface {
	Get(ctx context.Context) ([]string, error)
	Set(ctx context.Context, ids []string) error
}

type BadgerRepository struct {
	db *badger.DB
}

// Open opens the store in dir. An empty dir keeps everything in memory.
func Open(dir string) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open saved list: %w", err)
	}
	return &BadgerRepository{db: db}, nil
}

func NewBadgerRepository(db *badger.DB) *BadgerRepository {
	return &BadgerRepository{db: db}
}

func (r *BadgerRepository) Close() error { return r.db.Close() }

func (r *BadgerRepository) Get(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(savedKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ids)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get saved list: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Set replaces the list. Blank and repeated ids are dropped, first
// occurrence wins.
func (r *BadgerRepository) Set(ctx context.Context, ids []string) error {
	data, err := json.Marshal(normalize(ids))
	if err != nil {
		return fmt.Errorf("marshal saved list: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(savedKey), data)
	})
	if err != nil {
		return fmt.Errorf("set saved list: %w", err)
	}
	return nil
}

func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Add appends id unless it is already saved. It reports whether the list changed.
func Add(ctx context.Context, repo Repository, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, apperr.Invalid("saved", "id", "required", "is required")
	}
	ids, err := repo.Get(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, id) {
		return false, nil
	}
	return true, repo.Set(ctx, append(ids, id))
}

// Remove drops id. It reports whether id was saved.
func Remove(ctx context.Context, repo Repository, id string) (bool, error) {
	id = strings.TrimSpace(id)
	ids, err := repo.Get(ctx)
	if err != nil {
		return false, err
	}
	i := slices.Index(ids, id)
	if i < 0 {
		return false, nil
	}
	return true, repo.Set(ctx, slices.Delete(ids, i, i+1))
}

func Contains(ctx context.Context, repo Repository, id string) (bool, error) {
	ids, err := repo.Get(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, strings.TrimSpace(id)), nil
}
