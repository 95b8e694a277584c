package rbac

import (
	"testing"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

func user(role domain.Role, own, editAny, deleteAny, approve bool) domain.User {
	return domain.User{
		Role:                     role,
		IsActive:                 true,
		CanEditAndDeleteOwnPosts: own,
		CanEditAnyPost:           editAny,
		CanDeleteAnyPost:         deleteAny,
		CanApprovePosts:          approve,
	}
}

func TestCanModifyPublished(t *testing.T) {
	cases := []struct {
		name    string
		user    domain.User
		isOwner bool
		action  Action
		allow   bool
	}{
		{name: "admin edits anything", user: user(domain.RoleAdmin, false, false, false, false), action: ActionEdit, allow: true},
		{name: "admin deletes anything", user: user(domain.RoleAdmin, false, false, false, false), action: ActionDelete, allow: true},
		{name: "owner with own flag edits", user: user(domain.RoleContributor, true, false, false, false), isOwner: true, action: ActionEdit, allow: true},
		{name: "owner with own flag deletes", user: user(domain.RoleContributor, true, false, false, false), isOwner: true, action: ActionDelete, allow: true},
		{name: "owner without own flag", user: user(domain.RoleContributor, false, false, false, false), isOwner: true, action: ActionEdit, allow: false},
		{name: "edit-any on foreign post", user: user(domain.RoleContributor, false, true, false, false), action: ActionEdit, allow: true},
		{name: "edit-any does not delete", user: user(domain.RoleContributor, false, true, false, false), action: ActionDelete, allow: false},
		{name: "delete-any on foreign post", user: user(domain.RoleContributor, false, false, true, false), action: ActionDelete, allow: true},
		{name: "delete-any does not edit", user: user(domain.RoleContributor, false, false, true, false), action: ActionEdit, allow: false},
		{name: "no flags no access", user: user(domain.RoleContributor, false, false, false, false), action: ActionEdit, allow: false},
		{name: "approver flag grants nothing here", user: user(domain.RoleContributor, false, false, false, true), action: ActionDelete, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanModifyPublished(tc.user, tc.isOwner, tc.action); got != tc.allow {
				t.Fatalf("CanModifyPublished(%+v, %v, %q) = %v, want %v", tc.user, tc.isOwner, tc.action, got, tc.allow)
			}
		})
	}
}

func TestCanModifyPending(t *testing.T) {
	cases := []struct {
		name    string
		user    domain.User
		isOwner bool
		action  Action
		allow   bool
	}{
		{name: "owner edits own submission", user: user(domain.RoleContributor, true, false, false, false), isOwner: true, action: ActionEdit, allow: true},
		{name: "admin cannot edit foreign submission", user: user(domain.RoleAdmin, false, false, false, false), action: ActionEdit, allow: false},
		{name: "edit-any does not reach the queue", user: user(domain.RoleContributor, false, true, false, false), action: ActionEdit, allow: false},
		{name: "owner deletes own submission", user: user(domain.RoleContributor, false, false, false, false), isOwner: true, action: ActionDelete, allow: true},
		{name: "admin clears the queue", user: user(domain.RoleAdmin, false, false, false, false), action: ActionDelete, allow: true},
		{name: "approver clears the queue", user: user(domain.RoleContributor, false, false, false, true), action: ActionDelete, allow: true},
		{name: "bystander cannot delete", user: user(domain.RoleContributor, false, true, true, false), action: ActionDelete, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanModifyPending(tc.user, tc.isOwner, tc.action); got != tc.allow {
				t.Fatalf("CanModifyPending(%+v, %v, %q) = %v, want %v", tc.user, tc.isOwner, tc.action, got, tc.allow)
			}
		})
	}
}

func TestCanApprove(t *testing.T) {
	if !CanApprove(user(domain.RoleAdmin, false, false, false, false)) {
		t.Error("admin should approve")
	}
	if !CanApprove(user(domain.RoleContributor, false, false, false, true)) {
		t.Error("approver flag should approve")
	}
	if CanApprove(user(domain.RoleContributor, true, true, true, false)) {
		t.Error("contributor without the flag should not approve")
	}
}
