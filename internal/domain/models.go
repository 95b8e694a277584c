// Package domain holds the models and error taxonomy shared by the content
// store, the contributor store and the services that coordinate them.
package domain

import "time"

// PostMetadata is the sidecar record stored next to every post body. Tags and
// search keywords keep their display casing here; normalization happens only
// when index entries are derived.
type PostMetadata struct {
	Title           string     `json:"title"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUpdatedAt   *time.Time `json:"last_updated_at,omitempty"`
	Summary         string     `json:"summary"`
	Tags            []string   `json:"tags"`
	SearchKeywords  []string   `json:"search_keywords,omitempty"`
	CoverImage      string     `json:"cover_image,omitempty"`
	HasCallToAction *bool      `json:"has_call_to_action,omitempty"`
}

// FullPost is a post body together with its metadata.
type FullPost struct {
	ID       string       `json:"id"`
	Metadata PostMetadata `json:"metadata"`
	Content  string       `json:"content"`
}

// PostSummary is what listing endpoints return: metadata without the body.
type PostSummary struct {
	ID       string       `json:"id"`
	Metadata PostMetadata `json:"metadata"`
}

// PostDraft carries the raw form fields for a create or update. Tags and
// SearchKeywords are comma-separated free text exactly as submitted.
type PostDraft struct {
	Title           string
	Summary         string
	Content         string
	Tags            string
	SearchKeywords  string
	CoverImage      string
	HasCallToAction *bool
}

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleContributor Role = "contributor"
)

// User is a contributor-store account row.
type User struct {
	ID                       int64      `json:"id"`
	Username                 string     `json:"username"`
	PasswordHash             string     `json:"-"`
	Role                     Role       `json:"role"`
	IsActive                 bool       `json:"is_active"`
	CanEditAndDeleteOwnPosts bool       `json:"can_edit_and_delete_own_posts"`
	CanEditAnyPost           bool       `json:"can_edit_any_post"`
	CanDeleteAnyPost         bool       `json:"can_delete_any_post"`
	CanApprovePosts          bool       `json:"can_approve_posts"`
	LastLoginTime            *time.Time `json:"last_login_time,omitempty"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// EditLogEntry records one re-submit-for-edit cycle on a published post.
type EditLogEntry struct {
	EditNumber     int       `json:"edit_number"`
	EditorUsername string    `json:"editor_username"`
	EditedAt       time.Time `json:"edited_at"`
}

// MediaAttachment is the relational row tracking an uploaded file. The blob
// itself lives with an external collaborator; only ownership and tags are
// kept here.
type MediaAttachment struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	Tags       string    `json:"tags"`
	UploadedAt time.Time `json:"uploaded_at"`
}
