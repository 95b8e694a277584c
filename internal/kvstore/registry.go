package kvstore

import (
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/tags"
)

// The available-tag registry is a curated list maintained by admins. It is
// independent of which tags posts actually carry.

func tagRegistryKey(tag string) []byte {
	return append(tablePrefix(TableAvailableTags), tags.NormalizeTag(tag)...)
}

// AddAvailableTag registers a tag. Re-adding an existing tag is a no-op.
func (d *DB) AddAvailableTag(tag string) error {
	normalized := tags.NormalizeTag(tag)
	if normalized == "" {
		return domain.InvalidInput("tag must not be empty")
	}
	err := d.badger.Update(func(txn *badger.Txn) error {
		return txn.Set(tagRegistryKey(normalized), nil)
	})
	if err != nil {
		return domain.StoreError("add available tag", err)
	}
	return nil
}

// DeleteAvailableTag unregisters a tag. Posts already carrying it keep it.
func (d *DB) DeleteAvailableTag(tag string) error {
	err := d.badger.Update(func(txn *badger.Txn) error {
		return txn.Delete(tagRegistryKey(tag))
	})
	if err != nil {
		return domain.StoreError("delete available tag", err)
	}
	return nil
}

// AvailableTags lists every registered tag, sorted.
func (d *DB) AvailableTags() ([]string, error) {
	prefix := tablePrefix(TableAvailableTags)
	var out []string
	err := d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			out = append(out, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("scan available tags", err)
	}
	sort.Strings(out)
	return out, nil
}
