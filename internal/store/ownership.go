package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
)

// Ownership rows are the relational half of every post. Pending posts use
// pending_post_ownership; the row moves to post_ownership at approval and
// stays there for the rest of the post's life, through re-edit cycles.

func (s *Store) AddPendingOwnership(ctx context.Context, postID ident.ID, ownerID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_post_ownership (post_id, owner_user_id)
		VALUES ($1, $2)
	`, postID.String(), ownerID)
	if err != nil {
		return domain.StoreError("add pending ownership", err)
	}
	return nil
}

func (s *Store) PendingOwnerID(ctx context.Context, postID ident.ID) (int64, error) {
	var ownerID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_user_id FROM pending_post_ownership WHERE post_id = $1`,
		postID.String()).Scan(&ownerID)
	if err != nil {
		return 0, notFoundOrStore(err, "pending ownership not found", "lookup pending ownership")
	}
	return ownerID, nil
}

func (s *Store) DeletePendingOwnership(ctx context.Context, postID ident.ID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_post_ownership WHERE post_id = $1`, postID.String())
	if err != nil {
		return domain.StoreError("delete pending ownership", err)
	}
	return nil
}

// EnsureOwnership records the published owner. Insert-if-absent keeps the
// approval flow idempotent: a retry after a partial failure must not error
// and must not reassign the post. The return value reports whether a row was
// actually created, so a compensating delete never removes a pre-existing
// ownership record and its edit log.
func (s *Store) EnsureOwnership(ctx context.Context, postID ident.ID, ownerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO post_ownership (post_id, owner_user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id) DO NOTHING
	`, postID.String(), ownerID)
	if err != nil {
		return false, domain.StoreError("ensure ownership", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) OwnerID(ctx context.Context, postID ident.ID) (int64, error) {
	var ownerID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_user_id FROM post_ownership WHERE post_id = $1`,
		postID.String()).Scan(&ownerID)
	if err != nil {
		return 0, notFoundOrStore(err, "ownership not found", "lookup ownership")
	}
	return ownerID, nil
}

func (s *Store) DeleteOwnership(ctx context.Context, postID ident.ID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM post_ownership WHERE post_id = $1`, postID.String())
	if err != nil {
		return domain.StoreError("delete ownership", err)
	}
	return nil
}

// AppendEditLog adds one entry to a published post's edit history. The row is
// locked while the JSON array is read and rewritten so concurrent edits
// cannot drop entries or reuse an edit number.
func (s *Store) AppendEditLog(ctx context.Context, postID ident.ID, editorUsername string, editedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("begin edit log tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT edit_log FROM post_ownership WHERE post_id = $1 FOR UPDATE`,
		postID.String()).Scan(&raw)
	if err != nil {
		return notFoundOrStore(err, "ownership not found", "read edit log")
	}

	var log []domain.EditLogEntry
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &log); err != nil {
			return domain.StoreError("decode edit log", err)
		}
	}
	log = append(log, domain.EditLogEntry{
		EditNumber:     len(log) + 1,
		EditorUsername: editorUsername,
		EditedAt:       editedAt.UTC(),
	})

	encoded, err := json.Marshal(log)
	if err != nil {
		return domain.StoreError("encode edit log", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE post_ownership SET edit_log = $2 WHERE post_id = $1`,
		postID.String(), string(encoded)); err != nil {
		return domain.StoreError("write edit log", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.StoreError("commit edit log", err)
	}
	return nil
}

// EditLog returns the recorded edit history, oldest first. A post that was
// never re-edited has an empty log, not an error.
func (s *Store) EditLog(ctx context.Context, postID ident.ID) ([]domain.EditLogEntry, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT edit_log FROM post_ownership WHERE post_id = $1`,
		postID.String()).Scan(&raw)
	if err != nil {
		return nil, notFoundOrStore(err, "ownership not found", "read edit log")
	}
	if !raw.Valid || raw.String == "" {
		return []domain.EditLogEntry{}, nil
	}
	var log []domain.EditLogEntry
	if err := json.Unmarshal([]byte(raw.String), &log); err != nil {
		return nil, domain.StoreError("decode edit log", err)
	}
	return log, nil
}

func (s *Store) postIDsByOwner(ctx context.Context, table string, ownerID int64) ([]ident.ID, error) {
	// table is one of two compile-time constants, never user input.
	rows, err := s.db.QueryContext(ctx,
		`SELECT post_id FROM `+table+` WHERE owner_user_id = $1`, ownerID)
	if err != nil {
		return nil, domain.StoreError("list posts by owner", err)
	}
	defer rows.Close()

	ids := make([]ident.ID, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, domain.StoreError("scan post id", err)
		}
		id, err := ident.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list posts by owner", err)
	}
	return ids, nil
}

func (s *Store) PostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error) {
	return s.postIDsByOwner(ctx, "post_ownership", ownerID)
}

func (s *Store) PendingPostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error) {
	return s.postIDsByOwner(ctx, "pending_post_ownership", ownerID)
}
