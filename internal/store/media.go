package store

import (
	"context"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

// Media rows track who uploaded what. The files themselves live in external
// object storage keyed by the attachment id.

func (s *Store) AddMediaAttachment(ctx context.Context, m domain.MediaAttachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_attachments (id, user_id, tags, uploaded_at)
		VALUES ($1, $2, $3, $4)
	`, m.ID, m.UserID, m.Tags, m.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.InvalidInput("attachment already recorded")
		}
		return domain.StoreError("add media attachment", err)
	}
	return nil
}

func (s *Store) MediaByUser(ctx context.Context, userID int64) ([]domain.MediaAttachment, error) {
	return s.queryMedia(ctx, `
		SELECT id, user_id, tags, uploaded_at
		FROM media_attachments WHERE user_id = $1
		ORDER BY uploaded_at DESC
	`, userID)
}

// MediaByTag filters one user's attachments by a substring match on the
// stored tag list.
func (s *Store) MediaByTag(ctx context.Context, userID int64, tag string) ([]domain.MediaAttachment, error) {
	return s.queryMedia(ctx, `
		SELECT id, user_id, tags, uploaded_at
		FROM media_attachments WHERE user_id = $1 AND tags ILIKE '%' || $2 || '%'
		ORDER BY uploaded_at DESC
	`, userID, tag)
}

func (s *Store) queryMedia(ctx context.Context, query string, args ...any) ([]domain.MediaAttachment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError("list media", err)
	}
	defer rows.Close()

	out := make([]domain.MediaAttachment, 0)
	for rows.Next() {
		var m domain.MediaAttachment
		if err := rows.Scan(&m.ID, &m.UserID, &m.Tags, &m.UploadedAt); err != nil {
			return nil, domain.StoreError("scan media attachment", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list media", err)
	}
	return out, nil
}

func (s *Store) DeleteMediaAttachment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM media_attachments WHERE id = $1`, id)
	if err != nil {
		return domain.StoreError("delete media attachment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("attachment not found")
	}
	return nil
}
