// Package search is the facade over Meilisearch with a content-store title
// scan as the fallback, so search keeps answering when the engine is down.
package search

import (
	"github.com/sirupsen/logrus"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
)

// ContentIndex is the slice of the content store the fallback path needs.
type ContentIndex interface {
	SummariesByTitle(query string, limit, offset int) ([]domain.PostSummary, error)
	PublishedSummariesByIDs(ids []ident.ID) ([]domain.PostSummary, error)
}

type Service struct {
	meili   *Meili
	content ContentIndex
	log     *logrus.Logger
}

// NewService creates the search facade. meili may be nil when no engine is
// configured; every query then takes the fallback path.
func NewService(meili *Meili, content ContentIndex, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{meili: meili, content: content, log: logger}
}

// Search returns published posts matching the query. Meilisearch relevance
// order is preserved on the primary path; the fallback orders newest first.
func (s *Service) Search(query string, limit, offset int) ([]domain.PostSummary, error) {
	if s.meili != nil && s.meili.Healthy() {
		summaries, err := s.searchMeili(query, limit, offset)
		if err == nil {
			return summaries, nil
		}
		s.log.WithError(err).Warn("meilisearch query failed, falling back to title scan")
	}
	return s.content.SummariesByTitle(query, limit, offset)
}

func (s *Service) searchMeili(query string, limit, offset int) ([]domain.PostSummary, error) {
	hitIDs, err := s.meili.SearchIDs(query, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]ident.ID, 0, len(hitIDs))
	for _, raw := range hitIDs {
		id, err := ident.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	summaries, err := s.content.PublishedSummariesByIDs(ids)
	if err != nil {
		return nil, err
	}

	// Restore relevance order; index entries whose post has since vanished
	// simply drop out.
	byID := make(map[string]domain.PostSummary, len(summaries))
	for _, summary := range summaries {
		byID[summary.ID] = summary
	}
	ordered := make([]domain.PostSummary, 0, len(summaries))
	for _, raw := range hitIDs {
		if summary, ok := byID[raw]; ok {
			ordered = append(ordered, summary)
		}
	}
	return ordered, nil
}

// IndexPost pushes a published post to the engine, fire-and-forget.
func (s *Service) IndexPost(id string, meta domain.PostMetadata) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := recordFor(id, meta)
	go func() {
		if err := s.meili.IndexPost(rec); err != nil {
			s.log.WithError(err).WithField("post_id", id).Warn("index post")
		}
	}()
}

// RemovePost drops a post from the engine, fire-and-forget.
func (s *Service) RemovePost(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePost(id); err != nil {
			s.log.WithError(err).WithField("post_id", id).Warn("remove post from index")
		}
	}()
}

// ReindexAll pushes every published post to the engine, used at startup.
func (s *Service) ReindexAll(summaries []domain.PostSummary) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records := make([]PostRecord, 0, len(summaries))
	for _, summary := range summaries {
		records = append(records, recordFor(summary.ID, summary.Metadata))
	}
	if err := s.meili.IndexPosts(records); err != nil {
		s.log.WithError(err).Warn("reindex posts")
	}
}

func recordFor(id string, meta domain.PostMetadata) PostRecord {
	return PostRecord{
		ID:       id,
		Title:    meta.Title,
		Summary:  meta.Summary,
		Tags:     meta.Tags,
		Keywords: meta.SearchKeywords,
	}
}
