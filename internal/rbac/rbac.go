// Package rbac decides who may do what to a post. It is pure functions over
// the user's stored flags; nothing here touches a database.
package rbac

import "github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"

type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// CanModifyPublished reports whether u may edit or delete a published post.
// Admins may do anything. Owners need the own-post flag; everyone else needs
// the corresponding any-post flag.
func CanModifyPublished(u domain.User, isOwner bool, action Action) bool {
	if u.IsAdmin() {
		return true
	}
	if isOwner && u.CanEditAndDeleteOwnPosts {
		return true
	}
	switch action {
	case ActionEdit:
		return u.CanEditAnyPost
	case ActionDelete:
		return u.CanDeleteAnyPost
	default:
		return false
	}
}

// CanModifyPending reports whether u may edit or delete a pending post.
// Pending edits are the submitter's alone; deletion is also open to admins
// and approvers so stale submissions can be cleared from the queue.
func CanModifyPending(u domain.User, isOwner bool, action Action) bool {
	switch action {
	case ActionEdit:
		return isOwner
	case ActionDelete:
		return isOwner || u.IsAdmin() || u.CanApprovePosts
	default:
		return false
	}
}

// CanApprove reports whether u may publish pending posts.
func CanApprove(u domain.User) bool {
	return u.IsAdmin() || u.CanApprovePosts
}

// CanManageUsers gates account administration and the maintenance console.
func CanManageUsers(u domain.User) bool {
	return u.IsAdmin()
}
