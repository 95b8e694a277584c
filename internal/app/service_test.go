package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/kvstore"
)

// fakeRel is an in-memory relationalStore. Error fields let tests inject
// failures at specific steps.
type fakeRel struct {
	pendingOwners map[ident.ID]int64
	owners        map[ident.ID]int64
	editLogs      map[ident.ID][]domain.EditLogEntry
	users         map[int64]domain.User
	settings      map[string]string

	failAddPendingOwnership error
	failEnsureOwnership     error
}

func newFakeRel() *fakeRel {
	return &fakeRel{
		pendingOwners: make(map[ident.ID]int64),
		owners:        make(map[ident.ID]int64),
		editLogs:      make(map[ident.ID][]domain.EditLogEntry),
		users:         make(map[int64]domain.User),
		settings:      make(map[string]string),
	}
}

func (f *fakeRel) AddPendingOwnership(ctx context.Context, postID ident.ID, ownerID int64) error {
	if f.failAddPendingOwnership != nil {
		return f.failAddPendingOwnership
	}
	f.pendingOwners[postID] = ownerID
	return nil
}

func (f *fakeRel) PendingOwnerID(ctx context.Context, postID ident.ID) (int64, error) {
	if id, ok := f.pendingOwners[postID]; ok {
		return id, nil
	}
	return 0, domain.NotFound("pending ownership not found")
}

func (f *fakeRel) DeletePendingOwnership(ctx context.Context, postID ident.ID) error {
	delete(f.pendingOwners, postID)
	return nil
}

func (f *fakeRel) EnsureOwnership(ctx context.Context, postID ident.ID, ownerID int64) (bool, error) {
	if f.failEnsureOwnership != nil {
		return false, f.failEnsureOwnership
	}
	if _, ok := f.owners[postID]; ok {
		return false, nil
	}
	f.owners[postID] = ownerID
	return true, nil
}

func (f *fakeRel) OwnerID(ctx context.Context, postID ident.ID) (int64, error) {
	if id, ok := f.owners[postID]; ok {
		return id, nil
	}
	return 0, domain.NotFound("ownership not found")
}

func (f *fakeRel) DeleteOwnership(ctx context.Context, postID ident.ID) error {
	delete(f.owners, postID)
	return nil
}

func (f *fakeRel) AppendEditLog(ctx context.Context, postID ident.ID, editorUsername string, editedAt time.Time) error {
	if _, ok := f.owners[postID]; !ok {
		return domain.NotFound("ownership not found")
	}
	log := f.editLogs[postID]
	f.editLogs[postID] = append(log, domain.EditLogEntry{
		EditNumber:     len(log) + 1,
		EditorUsername: editorUsername,
		EditedAt:       editedAt,
	})
	return nil
}

func (f *fakeRel) EditLog(ctx context.Context, postID ident.ID) ([]domain.EditLogEntry, error) {
	if _, ok := f.owners[postID]; !ok {
		return nil, domain.NotFound("ownership not found")
	}
	return f.editLogs[postID], nil
}

func (f *fakeRel) PostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error) {
	var ids []ident.ID
	for id, owner := range f.owners {
		if owner == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeRel) PendingPostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error) {
	var ids []ident.ID
	for id, owner := range f.pendingOwners {
		if owner == ownerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeRel) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeRel) UserByID(ctx context.Context, id int64) (domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return domain.User{}, domain.NotFound("user not found")
}

func (f *fakeRel) UpdateUserPermissions(ctx context.Context, u domain.User) error {
	if _, ok := f.users[u.ID]; !ok {
		return domain.NotFound("user not found")
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeRel) DeleteUser(ctx context.Context, userID int64) error {
	if _, ok := f.users[userID]; !ok {
		return domain.NotFound("user not found")
	}
	delete(f.users, userID)
	return nil
}

func (f *fakeRel) ReadSetting(ctx context.Context, key string) (string, error) {
	if v, ok := f.settings[key]; ok {
		return v, nil
	}
	return "", domain.NotFound("setting not found")
}

func (f *fakeRel) WriteSetting(ctx context.Context, key, value string) error {
	f.settings[key] = value
	return nil
}

// flakyContent wraps the real in-memory content store so single operations
// can be made to fail.
type flakyContent struct {
	*kvstore.DB
	publishErr       error
	deletePendingErr error
}

func (f *flakyContent) Publish(id ident.ID, content string, meta domain.PostMetadata) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	return f.DB.Publish(id, content, meta)
}

func (f *flakyContent) DeletePending(id ident.ID) error {
	if f.deletePendingErr != nil {
		return f.deletePendingErr
	}
	return f.DB.DeletePending(id)
}

func newTestService(t *testing.T) (*Service, *flakyContent, *fakeRel) {
	t.Helper()
	db, err := kvstore.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("open in-memory content store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	content := &flakyContent{DB: db}
	rel := newFakeRel()
	return NewService(content, rel, nil, nil, nil, nil), content, rel
}

var (
	contributor = domain.User{ID: 1, Username: "carol", Role: domain.RoleContributor, IsActive: true, CanEditAndDeleteOwnPosts: true}
	approver    = domain.User{ID: 2, Username: "alice", Role: domain.RoleContributor, IsActive: true, CanApprovePosts: true}
	admin       = domain.User{ID: 3, Username: "root", Role: domain.RoleAdmin, IsActive: true}
)

func draft(title string) domain.PostDraft {
	return domain.PostDraft{
		Title:   title,
		Content: "<p>" + title + "</p>",
		Summary: title + " summary",
		Tags:    "go,systems/storage",
	}
}

func TestSubmitForApproval(t *testing.T) {
	svc, _, rel := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitForApproval(ctx, contributor, draft("Draft"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if owner := rel.pendingOwners[id]; owner != contributor.ID {
		t.Errorf("pending owner = %d, want %d", owner, contributor.ID)
	}
	if _, err := svc.PendingPost(ctx, contributor, id); err != nil {
		t.Errorf("owner cannot read own submission: %v", err)
	}
}

func TestSubmitCompensatesOnOwnershipFailure(t *testing.T) {
	svc, content, rel := newTestService(t)
	rel.failAddPendingOwnership = errors.New("connection refused")

	id, err := svc.SubmitForApproval(context.Background(), contributor, draft("Doomed"))
	if err == nil {
		t.Fatal("expected submit to fail")
	}
	// Nothing may be left behind in either store.
	if len(rel.pendingOwners) != 0 {
		t.Errorf("pending ownership left behind: %v", rel.pendingOwners)
	}
	if _, err := content.ReadPending(id); !domain.IsNotFound(err) {
		t.Errorf("pending post left behind, read: %v", err)
	}
}

func TestSubmitRejectsBlankDraft(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.SubmitForApproval(context.Background(), contributor, domain.PostDraft{Title: " ", Content: "x"}); !domain.IsInvalidInput(err) {
		t.Errorf("blank title: got %v", err)
	}
	if _, err := svc.SubmitForApproval(context.Background(), contributor, domain.PostDraft{Title: "x", Content: ""}); !domain.IsInvalidInput(err) {
		t.Errorf("blank content: got %v", err)
	}
}

func TestApproveLifecycle(t *testing.T) {
	svc, content, rel := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitForApproval(ctx, contributor, draft("Launch"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.Approve(ctx, contributor, id); !domain.IsForbidden(err) {
		t.Fatalf("non-approver approved: %v", err)
	}
	if err := svc.Approve(ctx, approver, id); err != nil {
		t.Fatalf("approve: %v", err)
	}

	post, err := svc.PublishedPost(ctx, id)
	if err != nil {
		t.Fatalf("read published: %v", err)
	}
	if post.Metadata.Title != "Launch" {
		t.Errorf("published title = %q", post.Metadata.Title)
	}

	// Ownership landed on the submitter, not the approver.
	if owner := rel.owners[id]; owner != contributor.ID {
		t.Errorf("owner = %d, want %d", owner, contributor.ID)
	}
	if _, ok := rel.pendingOwners[id]; ok {
		t.Error("pending ownership survived approval")
	}
	if _, err := content.ReadPending(id); !domain.IsNotFound(err) {
		t.Errorf("pending post survived approval: %v", err)
	}

	// Index entries are live.
	got, err := svc.PostsByTag("storage", 10, 0)
	if err != nil {
		t.Fatalf("posts by tag: %v", err)
	}
	if len(got) != 1 || got[0].ID != id.String() {
		t.Errorf("posts by tag = %v", got)
	}
}

func TestApproveCompensatesFreshOwnership(t *testing.T) {
	svc, content, rel := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitForApproval(ctx, contributor, draft("Flaky"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	content.publishErr = errors.New("disk full")
	if err := svc.Approve(ctx, approver, id); err == nil {
		t.Fatal("expected approve to fail")
	}
	if _, ok := rel.owners[id]; ok {
		t.Error("freshly created ownership row was not compensated")
	}
	// The submission is still intact and approvable.
	content.publishErr = nil
	if err := svc.Approve(ctx, approver, id); err != nil {
		t.Fatalf("retry approve: %v", err)
	}
}

func TestApproveKeepsPreexistingOwnershipOnFailure(t *testing.T) {
	svc, content, rel := newTestService(t)
	ctx := context.Background()

	// A re-edited post: pending rows exist, ownership already recorded.
	id, err := svc.SubmitForApproval(ctx, contributor, draft("ReEdit"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rel.owners[id] = contributor.ID
	delete(rel.pendingOwners, id)

	content.publishErr = errors.New("disk full")
	if err := svc.Approve(ctx, approver, id); err == nil {
		t.Fatal("expected approve to fail")
	}
	if _, ok := rel.owners[id]; !ok {
		t.Error("pre-existing ownership row was compensated away")
	}
}

func TestApproveIsIdempotentAfterPartialCleanup(t *testing.T) {
	svc, content, rel := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitForApproval(ctx, contributor, draft("Sticky"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// First approval publishes but fails to clear the pending side.
	content.deletePendingErr = errors.New("timeout")
	if err := svc.Approve(ctx, approver, id); err != nil {
		t.Fatalf("approve with failing cleanup: %v", err)
	}
	if _, err := content.ReadPublished(id); err != nil {
		t.Fatalf("post not published: %v", err)
	}

	// Second approval retries cleanly and changes nothing.
	content.deletePendingErr = nil
	if err := svc.Approve(ctx, approver, id); err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if owner := rel.owners[id]; owner != contributor.ID {
		t.Errorf("owner after re-approve = %d, want %d", owner, contributor.ID)
	}
	if _, err := content.ReadPending(id); !domain.IsNotFound(err) {
		t.Errorf("pending post survived re-approve: %v", err)
	}
}

func submitAndApprove(t *testing.T, svc *Service, d domain.PostDraft) ident.ID {
	t.Helper()
	ctx := context.Background()
	id, err := svc.SubmitForApproval(ctx, contributor, d)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Approve(ctx, approver, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	return id
}

func TestResubmitForEdit(t *testing.T) {
	svc, content, rel := newTestService(t)
	ctx := context.Background()
	id := submitAndApprove(t, svc, draft("V1"))

	if err := svc.ResubmitForEdit(ctx, contributor, id, draft("V2")); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	// Gone from public view, parked in pending with the new draft.
	if _, err := content.ReadPublished(id); !domain.IsNotFound(err) {
		t.Errorf("published post survived resubmit: %v", err)
	}
	pending, err := content.ReadPending(id)
	if err != nil {
		t.Fatalf("read pending: %v", err)
	}
	if pending.Metadata.Title != "V2" {
		t.Errorf("pending title = %q, want V2", pending.Metadata.Title)
	}
	if got, _ := svc.PostsByTag("storage", 10, 0); len(got) != 0 {
		t.Errorf("index entries survived resubmit: %v", got)
	}

	// Ownership record stays, grows a log entry, no pending ownership.
	if _, ok := rel.owners[id]; !ok {
		t.Error("ownership row vanished on resubmit")
	}
	if _, ok := rel.pendingOwners[id]; ok {
		t.Error("resubmit recreated pending ownership")
	}
	log, err := svc.EditLog(ctx, id)
	if err != nil {
		t.Fatalf("edit log: %v", err)
	}
	if len(log) != 1 || log[0].EditorUsername != contributor.Username || log[0].EditNumber != 1 {
		t.Errorf("edit log = %v", log)
	}

	// Re-approval falls back to the published ownership record.
	if err := svc.Approve(ctx, approver, id); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if owner := rel.owners[id]; owner != contributor.ID {
		t.Errorf("owner after re-approve = %d", owner)
	}
}

func TestDeletePendingAfterResubmitKeepsOwnership(t *testing.T) {
	svc, _, rel := newTestService(t)
	ctx := context.Background()
	id := submitAndApprove(t, svc, draft("Withdrawn"))

	if err := svc.ResubmitForEdit(ctx, contributor, id, draft("Withdrawn v2")); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if err := svc.DeletePending(ctx, contributor, id); err != nil {
		t.Fatalf("delete pending: %v", err)
	}

	// Only the pending side disappears; the published ownership record and
	// its edit log survive the withdrawal.
	if owner, ok := rel.owners[id]; !ok || owner != contributor.ID {
		t.Errorf("published ownership lost: %v", rel.owners)
	}
	if len(rel.editLogs[id]) != 1 {
		t.Errorf("edit log = %v", rel.editLogs[id])
	}
	if _, ok := rel.pendingOwners[id]; ok {
		t.Error("pending ownership survived delete")
	}
}

func TestPostSummaryByID(t *testing.T) {
	svc, _, _ := newTestService(t)
	id := submitAndApprove(t, svc, draft("Findable"))

	summary, err := svc.PostSummaryByID(id.String())
	if err != nil {
		t.Fatalf("summary by id: %v", err)
	}
	if summary.ID != id.String() || summary.Metadata.Title != "Findable" {
		t.Errorf("summary = %+v", summary)
	}

	// Garbage and absent ids read the same way: the post is not there.
	if _, err := svc.PostSummaryByID("not-a-real-id"); !domain.IsNotFound(err) {
		t.Errorf("garbage id: got %v", err)
	}
	if _, err := svc.PostSummaryByID(ident.New().String()); !domain.IsNotFound(err) {
		t.Errorf("absent id: got %v", err)
	}
}

func TestResubmitForbiddenForBystander(t *testing.T) {
	svc, _, _ := newTestService(t)
	id := submitAndApprove(t, svc, draft("Guarded"))

	bystander := domain.User{ID: 9, Username: "eve", Role: domain.RoleContributor, IsActive: true, CanEditAndDeleteOwnPosts: true}
	if err := svc.ResubmitForEdit(context.Background(), bystander, id, draft("Hijack")); !domain.IsForbidden(err) {
		t.Errorf("bystander resubmit: got %v", err)
	}
}

func TestUpdatePendingOwnerOnly(t *testing.T) {
	svc, content, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitForApproval(ctx, contributor, draft("Queued"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Even admins may not edit someone else's queued submission.
	if err := svc.UpdatePending(ctx, admin, id, draft("Tampered")); !domain.IsForbidden(err) {
		t.Errorf("admin edit of foreign submission: got %v", err)
	}
	if err := svc.UpdatePending(ctx, contributor, id, draft("Polished")); err != nil {
		t.Fatalf("owner edit: %v", err)
	}
	pending, _ := content.ReadPending(id)
	if pending.Metadata.Title != "Polished" {
		t.Errorf("pending title = %q", pending.Metadata.Title)
	}
}

func TestDeletePublished(t *testing.T) {
	svc, content, rel := newTestService(t)
	ctx := context.Background()
	id := submitAndApprove(t, svc, draft("Removable"))

	bystander := domain.User{ID: 9, Username: "eve", Role: domain.RoleContributor, IsActive: true}
	if err := svc.DeletePublished(ctx, bystander, id); !domain.IsForbidden(err) {
		t.Fatalf("bystander delete: got %v", err)
	}

	if err := svc.DeletePublished(ctx, contributor, id); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, ok := rel.owners[id]; ok {
		t.Error("ownership row survived delete")
	}
	if _, err := content.ReadPublished(id); !domain.IsNotFound(err) {
		t.Errorf("post survived delete: %v", err)
	}
}

func TestDeletePendingByApprover(t *testing.T) {
	svc, content, rel := newTestService(t)
	ctx := context.Background()

	id, err := svc.SubmitForApproval(ctx, contributor, draft("Stale"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.DeletePending(ctx, approver, id); err != nil {
		t.Fatalf("approver delete: %v", err)
	}
	if _, err := content.ReadPending(id); !domain.IsNotFound(err) {
		t.Errorf("pending post survived delete: %v", err)
	}
	if _, ok := rel.pendingOwners[id]; ok {
		t.Error("pending ownership survived delete")
	}
}

func TestPostsByOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	published := submitAndApprove(t, svc, draft("Mine"))
	queued, err := svc.SubmitForApproval(ctx, contributor, draft("Queued"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := svc.PostsByOwner(ctx, contributor.ID)
	if err != nil {
		t.Fatalf("posts by owner: %v", err)
	}
	if len(got) != 1 || got[0].ID != published.String() {
		t.Errorf("posts by owner = %v", got)
	}

	gotPending, err := svc.PendingPostsByOwner(ctx, contributor.ID)
	if err != nil {
		t.Fatalf("pending by owner: %v", err)
	}
	if len(gotPending) != 1 || gotPending[0].ID != queued.String() {
		t.Errorf("pending by owner = %v", gotPending)
	}
}

func TestPendingQueueApproversOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.SubmitForApproval(ctx, contributor, draft("Waiting")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.PendingQueue(contributor, 10, 0); !domain.IsForbidden(err) {
		t.Errorf("contributor read queue: got %v", err)
	}
	got, err := svc.PendingQueue(approver, 10, 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("queue = %v", got)
	}
}

func TestUserAdministration(t *testing.T) {
	svc, _, rel := newTestService(t)
	ctx := context.Background()
	rel.users[admin.ID] = admin
	rel.users[contributor.ID] = contributor

	if _, err := svc.ListUsers(ctx, contributor); !domain.IsForbidden(err) {
		t.Errorf("contributor listed users: got %v", err)
	}

	promoted := contributor
	promoted.CanApprovePosts = true
	if err := svc.UpdateUserPermissions(ctx, admin, promoted); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !rel.users[contributor.ID].CanApprovePosts {
		t.Error("promotion not persisted")
	}

	demotedSelf := admin
	demotedSelf.Role = domain.RoleContributor
	if err := svc.UpdateUserPermissions(ctx, admin, demotedSelf); !domain.IsInvalidInput(err) {
		t.Errorf("self-demotion: got %v", err)
	}
	if err := svc.DeleteUser(ctx, admin, admin.ID); !domain.IsInvalidInput(err) {
		t.Errorf("self-delete: got %v", err)
	}
	if err := svc.DeleteUser(ctx, admin, contributor.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
}
