package kvstore

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/tags"
)

// scanMetadataTable walks a metadata table and hands every readable row to
// visit. Rows whose value no longer parses are skipped.
func (d *DB) scanMetadataTable(table string, visit func(id ident.ID, meta domain.PostMetadata)) error {
	prefix := tablePrefix(table)
	return d.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			id, err := ident.FromBytes(key[len(prefix):])
			if err != nil {
				continue
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var meta domain.PostMetadata
			if err := json.Unmarshal(raw, &meta); err != nil {
				continue
			}
			visit(id, meta)
		}
		return nil
	})
}

func sortNewestFirst(summaries []domain.PostSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Metadata.CreatedAt.Equal(summaries[j].Metadata.CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].Metadata.CreatedAt.After(summaries[j].Metadata.CreatedAt)
	})
}

// SummariesByTitle returns published posts whose title contains the query,
// case-insensitively, newest first. This is the search path of last resort
// when no external search engine is reachable.
func (d *DB) SummariesByTitle(query string, limit, offset int) ([]domain.PostSummary, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []domain.PostSummary{}, nil
	}
	var matched []domain.PostSummary
	err := d.scanMetadataTable(TableMetadata, func(id ident.ID, meta domain.PostMetadata) {
		if strings.Contains(strings.ToLower(meta.Title), needle) {
			matched = append(matched, domain.PostSummary{ID: id.String(), Metadata: meta})
		}
	})
	if err != nil {
		return nil, domain.StoreError("scan metadata", err)
	}
	sortNewestFirst(matched)
	return paginate(matched, limit, offset), nil
}

// SimilarPosts returns published posts sharing at least one index tag with
// the given post, ranked by how many tags they share, the post itself
// excluded. Ties rank newest first.
func (d *DB) SimilarPosts(id ident.ID, limit int) ([]domain.PostSummary, error) {
	var source domain.PostMetadata
	err := d.badger.View(func(txn *badger.Txn) error {
		meta, err := readMetadata(txn, TableMetadata, id)
		source = meta
		return err
	})
	if err != nil {
		return nil, notFoundOrStore(err, "post not found", "read metadata")
	}

	sourceTags := tags.AllIndexTags(source.Tags)
	if len(sourceTags) == 0 {
		return []domain.PostSummary{}, nil
	}

	type scored struct {
		summary domain.PostSummary
		shared  int
	}
	var candidates []scored
	err = d.scanMetadataTable(TableMetadata, func(other ident.ID, meta domain.PostMetadata) {
		if other == id {
			return
		}
		shared := 0
		for tag := range tags.AllIndexTags(meta.Tags) {
			if _, ok := sourceTags[tag]; ok {
				shared++
			}
		}
		if shared > 0 {
			candidates = append(candidates, scored{
				summary: domain.PostSummary{ID: other.String(), Metadata: meta},
				shared:  shared,
			})
		}
	})
	if err != nil {
		return nil, domain.StoreError("scan metadata", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].shared != candidates[j].shared {
			return candidates[i].shared > candidates[j].shared
		}
		return candidates[i].summary.Metadata.CreatedAt.After(candidates[j].summary.Metadata.CreatedAt)
	})

	out := make([]domain.PostSummary, 0, limit)
	for _, c := range candidates {
		if len(out) >= limit {
			break
		}
		out = append(out, c.summary)
	}
	return out, nil
}

// PendingSummaries lists everything waiting for approval, newest first.
// Pending posts carry no chronological index so this is a table scan.
func (d *DB) PendingSummaries(limit, offset int) ([]domain.PostSummary, error) {
	var all []domain.PostSummary
	err := d.scanMetadataTable(TablePendingMetadata, func(id ident.ID, meta domain.PostMetadata) {
		all = append(all, domain.PostSummary{ID: id.String(), Metadata: meta})
	})
	if err != nil {
		return nil, domain.StoreError("scan pending metadata", err)
	}
	sortNewestFirst(all)
	return paginate(all, limit, offset), nil
}

func (d *DB) summariesByIDs(metaTable string, ids []ident.ID) ([]domain.PostSummary, error) {
	out := make([]domain.PostSummary, 0, len(ids))
	err := d.badger.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			meta, err := readMetadata(txn, metaTable, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, domain.PostSummary{ID: id.String(), Metadata: meta})
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("read metadata", err)
	}
	sortNewestFirst(out)
	return out, nil
}

// PublishedSummariesByIDs resolves a set of ids (typically one owner's posts)
// to published summaries, silently dropping ids with no live post.
func (d *DB) PublishedSummariesByIDs(ids []ident.ID) ([]domain.PostSummary, error) {
	return d.summariesByIDs(TableMetadata, ids)
}

// PendingSummariesByIDs is PublishedSummariesByIDs for the pending tables.
func (d *DB) PendingSummariesByIDs(ids []ident.ID) ([]domain.PostSummary, error) {
	return d.summariesByIDs(TablePendingMetadata, ids)
}
