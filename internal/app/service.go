// Package app coordinates the two stores. Every post write touches both the
// embedded content store and the contributor database; since no transaction
// spans them, each multi-store operation here writes in a fixed order and
// compensates on partial failure.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/config"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/rbac"
)

const adminPrefixSettingKey = "admin_url_prefix"

// contentStore is the slice of the embedded store the service drives.
type contentStore interface {
	CreatePending(draft domain.PostDraft) (ident.ID, error)
	ReadPending(id ident.ID) (*domain.FullPost, error)
	UpdatePending(id ident.ID, draft domain.PostDraft) error
	DeletePending(id ident.ID) error

	ReadPublished(id ident.ID) (*domain.FullPost, error)
	Publish(id ident.ID, content string, meta domain.PostMetadata) error
	UpdatePublished(id ident.ID, draft domain.PostDraft) error
	DeletePublished(id ident.ID) error
	MovePublishedToPending(id ident.ID) error

	LatestSummaries(limit, offset int) ([]domain.PostSummary, error)
	SummariesByTag(tag string, limit, offset int) ([]domain.PostSummary, error)
	SummariesByKeyword(keyword string, limit, offset int) ([]domain.PostSummary, error)
	SummariesByTagIntersection(tags []string, limit, offset int) ([]domain.PostSummary, error)
	SimilarPosts(id ident.ID, limit int) ([]domain.PostSummary, error)
	PendingSummaries(limit, offset int) ([]domain.PostSummary, error)
	PublishedSummariesByIDs(ids []ident.ID) ([]domain.PostSummary, error)
	PendingSummariesByIDs(ids []ident.ID) ([]domain.PostSummary, error)

	AddAvailableTag(tag string) error
	DeleteAvailableTag(tag string) error
	AvailableTags() ([]string, error)
}

// relationalStore is the slice of the contributor database the service drives.
type relationalStore interface {
	AddPendingOwnership(ctx context.Context, postID ident.ID, ownerID int64) error
	PendingOwnerID(ctx context.Context, postID ident.ID) (int64, error)
	DeletePendingOwnership(ctx context.Context, postID ident.ID) error
	EnsureOwnership(ctx context.Context, postID ident.ID, ownerID int64) (bool, error)
	OwnerID(ctx context.Context, postID ident.ID) (int64, error)
	DeleteOwnership(ctx context.Context, postID ident.ID) error
	AppendEditLog(ctx context.Context, postID ident.ID, editorUsername string, editedAt time.Time) error
	EditLog(ctx context.Context, postID ident.ID) ([]domain.EditLogEntry, error)
	PostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error)
	PendingPostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error)

	ListUsers(ctx context.Context) ([]domain.User, error)
	UserByID(ctx context.Context, id int64) (domain.User, error)
	UpdateUserPermissions(ctx context.Context, u domain.User) error
	DeleteUser(ctx context.Context, userID int64) error

	ReadSetting(ctx context.Context, key string) (string, error)
	WriteSetting(ctx context.Context, key, value string) error
}

// postCache is the optional read-through cache for published posts.
type postCache interface {
	Get(ctx context.Context, postID string) (*domain.FullPost, bool)
	Set(ctx context.Context, post *domain.FullPost) error
	Invalidate(ctx context.Context, postID string) error
}

// searchIndex is the optional external search engine hook.
type searchIndex interface {
	IndexPost(id string, meta domain.PostMetadata)
	RemovePost(id string)
}

type Service struct {
	content contentStore
	rel     relationalStore
	cache   postCache
	search  searchIndex
	prefix  *config.AdminPrefix
	log     *logrus.Logger
}

// NewService wires the orchestrator. cache, search and prefix may be nil.
func NewService(content contentStore, rel relationalStore, cache postCache, search searchIndex, prefix *config.AdminPrefix, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		content: content,
		rel:     rel,
		cache:   cache,
		search:  search,
		prefix:  prefix,
		log:     logger,
	}
}

func validateDraft(draft domain.PostDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return domain.InvalidInput("title is required")
	}
	if strings.TrimSpace(draft.Content) == "" {
		return domain.InvalidInput("content is required")
	}
	return nil
}

// SubmitForApproval stores a new draft in the pending tables and records who
// submitted it. If the ownership write fails the draft is removed again so
// no pending post can exist without a recorded owner.
func (s *Service) SubmitForApproval(ctx context.Context, user domain.User, draft domain.PostDraft) (ident.ID, error) {
	if err := validateDraft(draft); err != nil {
		return ident.ID{}, err
	}

	id, err := s.content.CreatePending(draft)
	if err != nil {
		return ident.ID{}, err
	}
	if err := s.rel.AddPendingOwnership(ctx, id, user.ID); err != nil {
		if delErr := s.content.DeletePending(id); delErr != nil {
			s.log.WithError(delErr).WithField("post_id", id.String()).
				Warn("compensation failed, orphaned pending post remains")
		}
		return ident.ID{}, err
	}
	return id, nil
}

// pendingOwner resolves who owns a pending post. Posts pulled back from the
// published tables keep their original ownership row instead of a pending
// one, so the published record is the fallback.
func (s *Service) pendingOwner(ctx context.Context, id ident.ID) (int64, error) {
	ownerID, err := s.rel.PendingOwnerID(ctx, id)
	if err == nil {
		return ownerID, nil
	}
	if !domain.IsNotFound(err) {
		return 0, err
	}
	return s.rel.OwnerID(ctx, id)
}

// Approve publishes a pending post. The ownership row is ensured before the
// content moves; if the content write then fails, a freshly created row is
// compensated away while a pre-existing one (a re-approved edit, carrying
// the edit log) is left alone. Leftover pending rows after a partial failure
// are harmless: approving again is idempotent.
func (s *Service) Approve(ctx context.Context, approver domain.User, id ident.ID) error {
	if !rbac.CanApprove(approver) {
		return domain.Forbidden("approval rights required")
	}

	post, err := s.content.ReadPending(id)
	if err != nil {
		return err
	}
	ownerID, err := s.pendingOwner(ctx, id)
	if err != nil {
		return err
	}

	created, err := s.rel.EnsureOwnership(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.content.Publish(id, post.Content, post.Metadata); err != nil {
		if created {
			if delErr := s.rel.DeleteOwnership(ctx, id); delErr != nil {
				s.log.WithError(delErr).WithField("post_id", id.String()).
					Warn("compensation failed, orphaned ownership row remains")
			}
		}
		return err
	}

	// Cleanup of the pending side is best effort from here; the post is live.
	if err := s.content.DeletePending(id); err != nil {
		s.log.WithError(err).WithField("post_id", id.String()).Warn("pending post cleanup failed")
	}
	if err := s.rel.DeletePendingOwnership(ctx, id); err != nil {
		s.log.WithError(err).WithField("post_id", id.String()).Warn("pending ownership cleanup failed")
	}

	s.invalidate(ctx, id)
	if s.search != nil {
		s.search.IndexPost(id.String(), post.Metadata)
	}
	return nil
}

// ResubmitForEdit pulls a published post back into the pending queue with the
// edited draft applied. The edit is recorded in the ownership row's log; the
// ownership row itself stays where it is, no pending ownership is created.
func (s *Service) ResubmitForEdit(ctx context.Context, user domain.User, id ident.ID, draft domain.PostDraft) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	ownerID, err := s.rel.OwnerID(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanModifyPublished(user, ownerID == user.ID, rbac.ActionEdit) {
		return domain.Forbidden("no permission to edit this post")
	}

	if err := s.rel.AppendEditLog(ctx, id, user.Username, time.Now().UTC()); err != nil {
		return err
	}
	if err := s.content.MovePublishedToPending(id); err != nil {
		return err
	}
	if err := s.content.UpdatePending(id, draft); err != nil {
		// The post is safely parked in pending with its old content.
		s.log.WithError(err).WithField("post_id", id.String()).Warn("draft not applied after move")
		return err
	}

	s.invalidate(ctx, id)
	if s.search != nil {
		s.search.RemovePost(id.String())
	}
	return nil
}

// UpdatePublished edits a live post in place, without an approval round.
func (s *Service) UpdatePublished(ctx context.Context, user domain.User, id ident.ID, draft domain.PostDraft) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	ownerID, err := s.rel.OwnerID(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanModifyPublished(user, ownerID == user.ID, rbac.ActionEdit) {
		return domain.Forbidden("no permission to edit this post")
	}

	if err := s.content.UpdatePublished(id, draft); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	if s.search != nil {
		if post, err := s.content.ReadPublished(id); err == nil {
			s.search.IndexPost(id.String(), post.Metadata)
		}
	}
	return nil
}

// UpdatePending edits a queued submission. Only the submitter may do this.
func (s *Service) UpdatePending(ctx context.Context, user domain.User, id ident.ID, draft domain.PostDraft) error {
	if err := validateDraft(draft); err != nil {
		return err
	}
	ownerID, err := s.pendingOwner(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanModifyPending(user, ownerID == user.ID, rbac.ActionEdit) {
		return domain.Forbidden("no permission to edit this submission")
	}
	return s.content.UpdatePending(id, draft)
}

// DeletePublished removes a live post from both stores. The ownership row
// goes first: a post without ownership is invisible to permission checks,
// while content without ownership is a harmless orphan the maintenance
// console can sweep if the second write fails.
func (s *Service) DeletePublished(ctx context.Context, user domain.User, id ident.ID) error {
	ownerID, err := s.rel.OwnerID(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanModifyPublished(user, ownerID == user.ID, rbac.ActionDelete) {
		return domain.Forbidden("no permission to delete this post")
	}

	if err := s.rel.DeleteOwnership(ctx, id); err != nil {
		return err
	}
	if err := s.content.DeletePublished(id); err != nil {
		s.log.WithError(err).WithField("post_id", id.String()).
			Warn("content delete failed, orphaned content rows remain")
		return err
	}

	s.invalidate(ctx, id)
	if s.search != nil {
		s.search.RemovePost(id.String())
	}
	return nil
}

// DeletePending withdraws a queued submission.
func (s *Service) DeletePending(ctx context.Context, user domain.User, id ident.ID) error {
	ownerID, err := s.pendingOwner(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanModifyPending(user, ownerID == user.ID, rbac.ActionDelete) {
		return domain.Forbidden("no permission to delete this submission")
	}

	if err := s.content.DeletePending(id); err != nil {
		return err
	}
	if err := s.rel.DeletePendingOwnership(ctx, id); err != nil {
		s.log.WithError(err).WithField("post_id", id.String()).Warn("pending ownership cleanup failed")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id ident.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id.String()); err != nil {
		s.log.WithError(err).WithField("post_id", id.String()).Warn("cache invalidation failed")
	}
}
