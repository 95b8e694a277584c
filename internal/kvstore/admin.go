package kvstore

import (
	"bytes"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
)

// Raw row access for the maintenance console. Only the four content tables
// are addressable this way; the index tables are derived data and are
// maintained exclusively through the content operations.

var browsableTables = map[string]struct{}{
	TablePosts:           {},
	TableMetadata:        {},
	TablePendingPosts:    {},
	TablePendingMetadata: {},
}

// RawRow is one content-table row exactly as stored.
type RawRow struct {
	ID    ident.ID
	Value []byte
}

func checkBrowsable(table string) error {
	if _, ok := browsableTables[table]; !ok {
		return domain.InvalidInput("unknown table: " + table)
	}
	return nil
}

// TableRowCount counts the rows of a content table.
func (d *DB) TableRowCount(table string) (int, error) {
	if err := checkBrowsable(table); err != nil {
		return 0, err
	}
	prefix := tablePrefix(table)
	count := 0
	err := d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, domain.StoreError("count table rows", err)
	}
	return count, nil
}

// TableRows pages through a content table in reverse key order, so recently
// generated identifiers tend to surface near the front.
func (d *DB) TableRows(table string, limit, offset int) ([]RawRow, error) {
	if err := checkBrowsable(table); err != nil {
		return nil, err
	}
	prefix := tablePrefix(table)
	// Reverse iteration must seek strictly past the largest possible row key.
	// Ids are 16 bytes, so 17 bytes of 0xFF after the prefix sorts above every
	// row, including ids that themselves start with 0xFF.
	seek := append(tablePrefix(table), bytes.Repeat([]byte{0xFF}, 17)...)
	out := make([]RawRow, 0, limit)
	err := d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(out) >= limit {
				break
			}
			key := it.Item().Key()
			id, err := ident.FromBytes(key[len(prefix):])
			if err != nil {
				continue
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, RawRow{ID: id, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("scan table rows", err)
	}
	return out, nil
}

// TableRow fetches one row by id.
func (d *DB) TableRow(table string, id ident.ID) (RawRow, error) {
	if err := checkBrowsable(table); err != nil {
		return RawRow{}, err
	}
	var row RawRow
	err := d.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rowKey(table, id))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		row = RawRow{ID: id, Value: value}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return RawRow{}, domain.NotFound("row not found")
		}
		return RawRow{}, domain.StoreError("read table row", err)
	}
	return row, nil
}

// DeleteTableRows removes the given rows in a single transaction. Absent ids
// are ignored.
func (d *DB) DeleteTableRows(table string, ids []ident.ID) error {
	if err := checkBrowsable(table); err != nil {
		return err
	}
	err := d.badger.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete(rowKey(table, id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.StoreError("delete table rows", err)
	}
	return nil
}

// SetTableRow overwrites a row's raw value. The row must already exist; the
// console edits cells, it does not mint rows.
func (d *DB) SetTableRow(table string, id ident.ID, value []byte) error {
	if err := checkBrowsable(table); err != nil {
		return err
	}
	err := d.badger.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(rowKey(table, id)); err != nil {
			return err
		}
		return txn.Set(rowKey(table, id), value)
	})
	if err != nil {
		return notFoundOrStore(err, "row not found", "set table row")
	}
	return nil
}

// CleanTable deletes every row of a content table. The caller is responsible
// for deciding whether the table may be cleaned at all.
func (d *DB) CleanTable(table string) (int, error) {
	if err := checkBrowsable(table); err != nil {
		return 0, err
	}
	prefix := tablePrefix(table)
	var keys [][]byte
	err := d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, domain.StoreError("scan table rows", err)
	}
	err = d.badger.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, domain.StoreError("clean table", err)
	}
	return len(keys), nil
}
