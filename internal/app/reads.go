package app

import (
	"context"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/rbac"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// PublishedPost serves a live post, through the cache when one is wired.
func (s *Service) PublishedPost(ctx context.Context, id ident.ID) (*domain.FullPost, error) {
	if s.cache != nil {
		if post, ok := s.cache.Get(ctx, id.String()); ok {
			return post, nil
		}
	}
	post, err := s.content.ReadPublished(id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, post); err != nil {
			s.log.WithError(err).WithField("post_id", id.String()).Warn("cache fill failed")
		}
	}
	return post, nil
}

// PostSummaryByID resolves a raw identifier, typically typed into a search
// box, to a published summary. Malformed input reads as an absent post, not
// as a caller error.
func (s *Service) PostSummaryByID(raw string) (domain.PostSummary, error) {
	id, err := ident.Parse(raw)
	if err != nil {
		return domain.PostSummary{}, domain.NotFound("post not found")
	}
	summaries, err := s.content.PublishedSummariesByIDs([]ident.ID{id})
	if err != nil {
		return domain.PostSummary{}, err
	}
	if len(summaries) == 0 {
		return domain.PostSummary{}, domain.NotFound("post not found")
	}
	return summaries[0], nil
}

// PendingPost serves a queued submission to its owner or to an approver.
func (s *Service) PendingPost(ctx context.Context, user domain.User, id ident.ID) (*domain.FullPost, error) {
	ownerID, err := s.pendingOwner(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != user.ID && !rbac.CanApprove(user) {
		return nil, domain.Forbidden("no permission to view this submission")
	}
	return s.content.ReadPending(id)
}

func (s *Service) LatestPosts(limit, offset int) ([]domain.PostSummary, error) {
	limit, offset = clampPage(limit, offset)
	return s.content.LatestSummaries(limit, offset)
}

func (s *Service) PostsByTag(tag string, limit, offset int) ([]domain.PostSummary, error) {
	limit, offset = clampPage(limit, offset)
	return s.content.SummariesByTag(tag, limit, offset)
}

func (s *Service) PostsByKeyword(keyword string, limit, offset int) ([]domain.PostSummary, error) {
	limit, offset = clampPage(limit, offset)
	return s.content.SummariesByKeyword(keyword, limit, offset)
}

func (s *Service) PostsByTags(tags []string, limit, offset int) ([]domain.PostSummary, error) {
	limit, offset = clampPage(limit, offset)
	return s.content.SummariesByTagIntersection(tags, limit, offset)
}

func (s *Service) SimilarPosts(id ident.ID, limit int) ([]domain.PostSummary, error) {
	limit, _ = clampPage(limit, 0)
	return s.content.SimilarPosts(id, limit)
}

// PendingQueue lists submissions waiting for approval; approvers only.
func (s *Service) PendingQueue(user domain.User, limit, offset int) ([]domain.PostSummary, error) {
	if !rbac.CanApprove(user) {
		return nil, domain.Forbidden("approval rights required")
	}
	limit, offset = clampPage(limit, offset)
	return s.content.PendingSummaries(limit, offset)
}

// PostsByOwner lists a contributor's live posts.
func (s *Service) PostsByOwner(ctx context.Context, ownerID int64) ([]domain.PostSummary, error) {
	ids, err := s.rel.PostIDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.content.PublishedSummariesByIDs(ids)
}

// PendingPostsByOwner lists a contributor's queued submissions.
func (s *Service) PendingPostsByOwner(ctx context.Context, ownerID int64) ([]domain.PostSummary, error) {
	ids, err := s.rel.PendingPostIDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.content.PendingSummariesByIDs(ids)
}

// EditLog returns a published post's re-edit history.
func (s *Service) EditLog(ctx context.Context, id ident.ID) ([]domain.EditLogEntry, error) {
	return s.rel.EditLog(ctx, id)
}

func (s *Service) AvailableTags() ([]string, error) {
	return s.content.AvailableTags()
}

func (s *Service) AddAvailableTag(user domain.User, tag string) error {
	if !rbac.CanManageUsers(user) {
		return domain.Forbidden("admin rights required")
	}
	return s.content.AddAvailableTag(tag)
}

func (s *Service) DeleteAvailableTag(user domain.User, tag string) error {
	if !rbac.CanManageUsers(user) {
		return domain.Forbidden("admin rights required")
	}
	return s.content.DeleteAvailableTag(tag)
}
