package app

import (
	"context"
	"testing"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/config"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/kvstore"
)

func newPrefixedService(t *testing.T) (*Service, *fakeRel, *config.AdminPrefix) {
	t.Helper()
	db, err := kvstore.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("open in-memory content store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	prefix, err := config.NewAdminPrefix("admin")
	if err != nil {
		t.Fatalf("new prefix: %v", err)
	}
	rel := newFakeRel()
	return NewService(&flakyContent{DB: db}, rel, nil, nil, prefix, nil), rel, prefix
}

func TestUpdateAdminPrefix(t *testing.T) {
	svc, rel, prefix := newPrefixedService(t)
	ctx := context.Background()

	if err := svc.UpdateAdminPrefix(ctx, contributor, "ops"); !domain.IsForbidden(err) {
		t.Errorf("contributor changed prefix: got %v", err)
	}
	if err := svc.UpdateAdminPrefix(ctx, admin, "bad/prefix"); !domain.IsInvalidInput(err) {
		t.Errorf("invalid prefix accepted: got %v", err)
	}
	if err := svc.UpdateAdminPrefix(ctx, admin, "back-office"); err != nil {
		t.Fatalf("update prefix: %v", err)
	}
	if got := prefix.Get(); got != "back-office" {
		t.Errorf("runtime prefix = %q", got)
	}
	if got := rel.settings[adminPrefixSettingKey]; got != "back-office" {
		t.Errorf("persisted prefix = %q", got)
	}
}

func TestRestoreAdminPrefix(t *testing.T) {
	svc, rel, prefix := newPrefixedService(t)
	ctx := context.Background()

	// Nothing stored: configured default stays.
	if err := svc.RestoreAdminPrefix(ctx); err != nil {
		t.Fatalf("restore without setting: %v", err)
	}
	if got := prefix.Get(); got != "admin" {
		t.Errorf("prefix = %q, want admin", got)
	}

	rel.settings[adminPrefixSettingKey] = "ops"
	if err := svc.RestoreAdminPrefix(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := prefix.Get(); got != "ops" {
		t.Errorf("restored prefix = %q", got)
	}
}

// fakeCache counts hits and invalidations.
type fakeCache struct {
	entries      map[string]*domain.FullPost
	invalidation []string
}

func (f *fakeCache) Get(ctx context.Context, postID string) (*domain.FullPost, bool) {
	p, ok := f.entries[postID]
	return p, ok
}

func (f *fakeCache) Set(ctx context.Context, post *domain.FullPost) error {
	f.entries[post.ID] = post
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, postID string) error {
	f.invalidation = append(f.invalidation, postID)
	delete(f.entries, postID)
	return nil
}

func TestPublishedPostCaching(t *testing.T) {
	db, err := kvstore.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("open in-memory content store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cache := &fakeCache{entries: make(map[string]*domain.FullPost)}
	svc := NewService(&flakyContent{DB: db}, newFakeRel(), cache, nil, nil, nil)
	ctx := context.Background()

	id := submitAndApprove(t, svc, draft("Hot"))
	if len(cache.invalidation) == 0 {
		t.Error("approval did not invalidate the cache")
	}

	if _, err := svc.PublishedPost(ctx, id); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, ok := cache.entries[id.String()]; !ok {
		t.Fatal("read did not fill the cache")
	}

	// A second read is served from the cache even if the store row vanishes.
	if err := db.DeletePublished(id); err != nil {
		t.Fatalf("delete behind the cache: %v", err)
	}
	if _, err := svc.PublishedPost(ctx, id); err != nil {
		t.Errorf("cached read failed: %v", err)
	}
}
