package kvstore

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/tags"
)

// metadataFromDraft builds the stored metadata record from raw form input.
// createdAt is never caller-supplied; it is either now (create) or carried
// over from the previous record (update).
func metadataFromDraft(draft domain.PostDraft, createdAt time.Time, lastUpdatedAt *time.Time) domain.PostMetadata {
	return domain.PostMetadata{
		Title:           draft.Title,
		CreatedAt:       createdAt,
		LastUpdatedAt:   lastUpdatedAt,
		Summary:         draft.Summary,
		Tags:            tags.ParseList(draft.Tags),
		SearchKeywords:  tags.ParseList(draft.SearchKeywords),
		CoverImage:      draft.CoverImage,
		HasCallToAction: draft.HasCallToAction,
	}
}

// readPost loads a content+metadata pair inside txn. A missing half of the
// pair, or metadata that no longer parses, is corruption and surfaces as
// key-not-found; it is never silently repaired.
func readPost(txn *badger.Txn, postsTable, metaTable string, id ident.ID) (*domain.FullPost, error) {
	contentItem, err := txn.Get(rowKey(postsTable, id))
	if err != nil {
		return nil, err
	}
	content, err := contentItem.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	metaItem, err := txn.Get(rowKey(metaTable, id))
	if err != nil {
		return nil, err
	}
	rawMeta, err := metaItem.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var meta domain.PostMetadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, badger.ErrKeyNotFound
	}
	return &domain.FullPost{ID: id.String(), Metadata: meta, Content: string(content)}, nil
}

func readMetadata(txn *badger.Txn, metaTable string, id ident.ID) (domain.PostMetadata, error) {
	item, err := txn.Get(rowKey(metaTable, id))
	if err != nil {
		return domain.PostMetadata{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return domain.PostMetadata{}, err
	}
	var meta domain.PostMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return domain.PostMetadata{}, badger.ErrKeyNotFound
	}
	return meta, nil
}

func writePost(txn *badger.Txn, postsTable, metaTable string, id ident.ID, content string, meta domain.PostMetadata) error {
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := txn.Set(rowKey(postsTable, id), []byte(content)); err != nil {
		return err
	}
	return txn.Set(rowKey(metaTable, id), rawMeta)
}

func notFoundOrStore(err error, notFoundMsg, op string) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NotFound(notFoundMsg)
	}
	return domain.StoreError(op, err)
}

// CreatePending stores a brand new draft in the pending tables and returns
// its freshly generated identifier. Pending posts carry no index entries.
func (d *DB) CreatePending(draft domain.PostDraft) (ident.ID, error) {
	id := ident.New()
	meta := metadataFromDraft(draft, time.Now().UTC(), nil)
	err := d.badger.Update(func(txn *badger.Txn) error {
		return writePost(txn, TablePendingPosts, TablePendingMetadata, id, draft.Content, meta)
	})
	if err != nil {
		return ident.ID{}, domain.StoreError("create pending post", err)
	}
	return id, nil
}

func (d *DB) ReadPending(id ident.ID) (*domain.FullPost, error) {
	var post *domain.FullPost
	err := d.badger.View(func(txn *badger.Txn) error {
		p, err := readPost(txn, TablePendingPosts, TablePendingMetadata, id)
		post = p
		return err
	})
	if err != nil {
		return nil, notFoundOrStore(err, "pending post not found", "read pending post")
	}
	return post, nil
}

// UpdatePending overwrites a pending post. The original creation time is
// preserved from the stored metadata and last_updated_at is set to now.
func (d *DB) UpdatePending(id ident.ID, draft domain.PostDraft) error {
	err := d.badger.Update(func(txn *badger.Txn) error {
		old, err := readMetadata(txn, TablePendingMetadata, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		meta := metadataFromDraft(draft, old.CreatedAt, &now)
		return writePost(txn, TablePendingPosts, TablePendingMetadata, id, draft.Content, meta)
	})
	if err != nil {
		return notFoundOrStore(err, "pending post not found", "update pending post")
	}
	return nil
}

// DeletePending removes a pending post. Deleting an absent id is not an
// error; the caller only needs it gone.
func (d *DB) DeletePending(id ident.ID) error {
	err := d.badger.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(rowKey(TablePendingPosts, id)); err != nil {
			return err
		}
		return txn.Delete(rowKey(TablePendingMetadata, id))
	})
	if err != nil {
		return domain.StoreError("delete pending post", err)
	}
	return nil
}

func (d *DB) ReadPublished(id ident.ID) (*domain.FullPost, error) {
	var post *domain.FullPost
	err := d.badger.View(func(txn *badger.Txn) error {
		p, err := readPost(txn, TablePosts, TableMetadata, id)
		post = p
		return err
	})
	if err != nil {
		return nil, notFoundOrStore(err, "post not found", "read post")
	}
	return post, nil
}

// Publish writes a post into the published tables and builds all its index
// entries in one transaction.
func (d *DB) Publish(id ident.ID, content string, meta domain.PostMetadata) error {
	err := d.badger.Update(func(txn *badger.Txn) error {
		if err := writePost(txn, TablePosts, TableMetadata, id, content, meta); err != nil {
			return err
		}
		return addToIndices(txn, id, meta)
	})
	if err != nil {
		return domain.StoreError("publish post", err)
	}
	return nil
}

// UpdatePublished rewrites a published post and its index entries. The old
// entry set is removed before the new one is added, in the same transaction.
func (d *DB) UpdatePublished(id ident.ID, draft domain.PostDraft) error {
	err := d.badger.Update(func(txn *badger.Txn) error {
		old, err := readMetadata(txn, TableMetadata, id)
		if err != nil {
			return err
		}
		if err := removeFromIndices(txn, id, old); err != nil {
			return err
		}
		now := time.Now().UTC()
		meta := metadataFromDraft(draft, old.CreatedAt, &now)
		if err := writePost(txn, TablePosts, TableMetadata, id, draft.Content, meta); err != nil {
			return err
		}
		return addToIndices(txn, id, meta)
	})
	if err != nil {
		return notFoundOrStore(err, "post not found", "update post")
	}
	return nil
}

// DeletePublished removes a post, its metadata and every index entry derived
// from it. Content rows without readable metadata are still removed, but
// their index entries cannot be located and are left for a future sweep.
func (d *DB) DeletePublished(id ident.ID) error {
	err := d.badger.Update(func(txn *badger.Txn) error {
		meta, err := readMetadata(txn, TableMetadata, id)
		if err == nil {
			if err := removeFromIndices(txn, id, meta); err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Delete(rowKey(TablePosts, id)); err != nil {
			return err
		}
		return txn.Delete(rowKey(TableMetadata, id))
	})
	if err != nil {
		return domain.StoreError("delete post", err)
	}
	return nil
}

// MovePublishedToPending pulls a live post back into the pending tables and
// strips all its index entries, in one transaction. The post disappears from
// public view the moment this commits.
func (d *DB) MovePublishedToPending(id ident.ID) error {
	err := d.badger.Update(func(txn *badger.Txn) error {
		post, err := readPost(txn, TablePosts, TableMetadata, id)
		if err != nil {
			return err
		}
		if err := writePost(txn, TablePendingPosts, TablePendingMetadata, id, post.Content, post.Metadata); err != nil {
			return err
		}
		if err := removeFromIndices(txn, id, post.Metadata); err != nil {
			return err
		}
		if err := txn.Delete(rowKey(TablePosts, id)); err != nil {
			return err
		}
		return txn.Delete(rowKey(TableMetadata, id))
	})
	if err != nil {
		return notFoundOrStore(err, "post not found", "move post to pending")
	}
	return nil
}
