package kvstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/tags"
)

// Index entry keys are (token, inverted timestamp, id) for the tag and
// keyword indices and (inverted timestamp, id) for the chronological index.
// The zero byte after the token terminates it unambiguously: tokens never
// contain NUL, so a prefix scan over token+NUL matches exactly that token.

func tokenIndexKey(table, token string, ts []byte, id ident.ID) []byte {
	key := append(tablePrefix(table), token...)
	key = append(key, 0x00)
	key = append(key, ts...)
	return append(key, id[:]...)
}

func tokenScanPrefix(table, token string) []byte {
	key := append(tablePrefix(table), token...)
	return append(key, 0x00)
}

func chronoIndexKey(ts []byte, id ident.ID) []byte {
	key := append(tablePrefix(TableChronoIndex), ts...)
	return append(key, id[:]...)
}

// addToIndices writes the full index entry set for a published post inside
// the caller's transaction. It never opens a transaction of its own.
func addToIndices(txn *badger.Txn, id ident.ID, meta domain.PostMetadata) error {
	ts := invertTimestamp(meta.CreatedAt)
	if err := txn.Set(chronoIndexKey(ts, id), nil); err != nil {
		return err
	}
	for tag := range tags.AllIndexTags(meta.Tags) {
		if err := txn.Set(tokenIndexKey(TableTagIndex, tag, ts, id), nil); err != nil {
			return err
		}
	}
	for _, kw := range tags.IndexKeywords(meta.SearchKeywords) {
		if err := txn.Set(tokenIndexKey(TableKeywordIndex, kw, ts, id), nil); err != nil {
			return err
		}
	}
	return nil
}

// removeFromIndices deletes the entry set derived from meta. Updates must
// call this with the previous metadata before re-adding: a hierarchical tag
// set cannot be diff-patched without risking orphaned ancestor entries.
func removeFromIndices(txn *badger.Txn, id ident.ID, meta domain.PostMetadata) error {
	ts := invertTimestamp(meta.CreatedAt)
	if err := txn.Delete(chronoIndexKey(ts, id)); err != nil {
		return err
	}
	for tag := range tags.AllIndexTags(meta.Tags) {
		if err := txn.Delete(tokenIndexKey(TableTagIndex, tag, ts, id)); err != nil {
			return err
		}
	}
	for _, kw := range tags.IndexKeywords(meta.SearchKeywords) {
		if err := txn.Delete(tokenIndexKey(TableKeywordIndex, kw, ts, id)); err != nil {
			return err
		}
	}
	return nil
}

// summaryForKey resolves the trailing 16 id bytes of an index key to a
// published post summary. Entries pointing at missing or unreadable metadata
// are skipped by returning ok=false.
func summaryForKey(txn *badger.Txn, indexKey []byte) (domain.PostSummary, bool) {
	if len(indexKey) < 16 {
		return domain.PostSummary{}, false
	}
	id, err := ident.FromBytes(indexKey[len(indexKey)-16:])
	if err != nil {
		return domain.PostSummary{}, false
	}
	item, err := txn.Get(rowKey(TableMetadata, id))
	if err != nil {
		return domain.PostSummary{}, false
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return domain.PostSummary{}, false
	}
	var meta domain.PostMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return domain.PostSummary{}, false
	}
	return domain.PostSummary{ID: id.String(), Metadata: meta}, true
}

// scanIndex walks an index prefix in key order (which is reverse
// chronological order) and collects up to limit summaries after offset.
func (d *DB) scanIndex(prefix []byte, limit, offset int) ([]domain.PostSummary, error) {
	out := make([]domain.PostSummary, 0, limit)
	err := d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		taken := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if taken >= limit {
				break
			}
			// Orphaned entries (index rows whose post is gone) must not eat
			// into the page size.
			if summary, ok := summaryForKey(txn, it.Item().Key()); ok {
				out = append(out, summary)
				taken++
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("scan index", err)
	}
	return out, nil
}

// LatestSummaries returns published posts in reverse chronological order,
// served by a forward scan of the chronological index.
func (d *DB) LatestSummaries(limit, offset int) ([]domain.PostSummary, error) {
	return d.scanIndex(tablePrefix(TableChronoIndex), limit, offset)
}

// SummariesByTag returns published posts carrying the given tag or any tag
// it is an ancestor of, newest first.
func (d *DB) SummariesByTag(tag string, limit, offset int) ([]domain.PostSummary, error) {
	return d.scanIndex(tokenScanPrefix(TableTagIndex, tags.NormalizeTag(tag)), limit, offset)
}

// SummariesByKeyword returns published posts indexed under the given search
// keyword, newest first.
func (d *DB) SummariesByKeyword(keyword string, limit, offset int) ([]domain.PostSummary, error) {
	return d.scanIndex(tokenScanPrefix(TableKeywordIndex, tags.NormalizeTag(keyword)), limit, offset)
}

func (d *DB) postIDsForTag(tag string) (map[ident.ID]struct{}, error) {
	ids := make(map[ident.ID]struct{})
	prefix := tokenScanPrefix(TableTagIndex, tags.NormalizeTag(tag))
	err := d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if len(key) < 16 {
				continue
			}
			id, err := ident.FromBytes(key[len(key)-16:])
			if err != nil {
				continue
			}
			ids[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SummariesByTagIntersection returns published posts matching ALL of the
// given tags, newest first.
func (d *DB) SummariesByTagIntersection(tagList []string, limit, offset int) ([]domain.PostSummary, error) {
	if len(tagList) == 0 {
		return []domain.PostSummary{}, nil
	}

	intersection, err := d.postIDsForTag(tagList[0])
	if err != nil {
		return nil, domain.StoreError("scan tag index", err)
	}
	for _, tag := range tagList[1:] {
		if len(intersection) == 0 {
			break
		}
		next, err := d.postIDsForTag(tag)
		if err != nil {
			return nil, domain.StoreError("scan tag index", err)
		}
		for id := range intersection {
			if _, ok := next[id]; !ok {
				delete(intersection, id)
			}
		}
	}
	if len(intersection) == 0 {
		return []domain.PostSummary{}, nil
	}

	summaries := make([]domain.PostSummary, 0, len(intersection))
	err = d.badger.View(func(txn *badger.Txn) error {
		for id := range intersection {
			item, err := txn.Get(rowKey(TableMetadata, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var meta domain.PostMetadata
			if err := json.Unmarshal(raw, &meta); err != nil {
				continue
			}
			summaries = append(summaries, domain.PostSummary{ID: id.String(), Metadata: meta})
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("read metadata", err)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Metadata.CreatedAt.After(summaries[j].Metadata.CreatedAt)
	})
	return paginate(summaries, limit, offset), nil
}

func paginate(summaries []domain.PostSummary, limit, offset int) []domain.PostSummary {
	if offset >= len(summaries) {
		return []domain.PostSummary{}
	}
	end := offset + limit
	if end > len(summaries) {
		end = len(summaries)
	}
	return summaries[offset:end]
}

// TagIndexTokens returns the set of normalized tokens currently indexed for
// a published post, used by tests and integrity checks.
func (d *DB) TagIndexTokens(id ident.ID) (map[string]struct{}, error) {
	tokens := make(map[string]struct{})
	prefix := tablePrefix(TableTagIndex)
	err := d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if len(key) < len(prefix)+1+8+16 {
				continue
			}
			if !bytes.Equal(key[len(key)-16:], id[:]) {
				continue
			}
			token := key[len(prefix) : len(key)-16-8-1]
			tokens[string(token)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("scan tag index", err)
	}
	return tokens, nil
}
