// Package dbadmin is the maintenance console backend: a uniform browser over
// the nine tables of both stores, with guarded destructive operations.
package dbadmin

import (
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/kvstore"
)

// Table is a closed enumeration of everything the console can touch. All
// dispatch goes through the spec table below; there is deliberately no way
// to address a table by a free-form string.
type Table int

const (
	TablePosts Table = iota
	TableMetadata
	TablePendingPosts
	TablePendingMetadata
	TableUsers
	TableSettings
	TablePostOwnership
	TablePendingPostOwnership
	TableMediaAttachments
)

type storeKind int

const (
	kindContent storeKind = iota
	kindRelational
)

type tableSpec struct {
	name string
	kind storeKind
	// kvTable is the content-store table name for kindContent entries.
	kvTable string
	// cleanable marks tables whose full contents may be wiped. Core data
	// (posts, metadata, users, settings) never is.
	cleanable bool
	// dependents are tables holding rows tied to a row of this table.
	dependents []Table
	// editable lists the columns UpdateCell will accept.
	editable []string
}

var tableSpecs = map[Table]tableSpec{
	TablePosts: {
		name: "posts", kind: kindContent, kvTable: kvstore.TablePosts,
		dependents: []Table{TableMetadata, TablePostOwnership},
		editable:   []string{"value"},
	},
	TableMetadata: {
		name: "metadata", kind: kindContent, kvTable: kvstore.TableMetadata,
		dependents: []Table{TablePosts, TablePostOwnership},
		editable:   []string{"title", "summary", "tags", "cover_image"},
	},
	TablePendingPosts: {
		name: "pending_posts", kind: kindContent, kvTable: kvstore.TablePendingPosts,
		cleanable:  true,
		dependents: []Table{TablePendingMetadata, TablePendingPostOwnership},
		editable:   []string{"value"},
	},
	TablePendingMetadata: {
		name: "pending_metadata", kind: kindContent, kvTable: kvstore.TablePendingMetadata,
		cleanable:  true,
		dependents: []Table{TablePendingPosts, TablePendingPostOwnership},
		editable:   []string{"title", "summary", "tags", "cover_image"},
	},
	TableUsers: {
		name: "users", kind: kindRelational,
		dependents: []Table{TablePostOwnership, TablePendingPostOwnership, TableMediaAttachments},
		editable:   []string{"username"},
	},
	TableSettings: {
		name: "settings", kind: kindRelational,
		editable: []string{"value"},
	},
	TablePostOwnership: {
		name: "post_ownership", kind: kindRelational,
		cleanable: true,
	},
	TablePendingPostOwnership: {
		name: "pending_post_ownership", kind: kindRelational,
		cleanable: true,
	},
	TableMediaAttachments: {
		name: "media_attachments", kind: kindRelational,
		cleanable: true,
	},
}

// AllTables lists every table in display order.
func AllTables() []Table {
	return []Table{
		TablePosts, TableMetadata, TablePendingPosts, TablePendingMetadata,
		TableUsers, TableSettings, TablePostOwnership,
		TablePendingPostOwnership, TableMediaAttachments,
	}
}

// ParseTable maps a display name back to its enum value. Unknown names are
// invalid input, never a panic.
func ParseTable(name string) (Table, error) {
	for t, spec := range tableSpecs {
		if spec.name == name {
			return t, nil
		}
	}
	return 0, domain.InvalidInput("unknown table: " + name)
}

func (t Table) Name() string {
	return tableSpecs[t].name
}

func (t Table) Cleanable() bool {
	return tableSpecs[t].cleanable
}

func (t Table) EditableColumns() []string {
	return append([]string(nil), tableSpecs[t].editable...)
}

func (t Table) canEdit(column string) bool {
	for _, c := range tableSpecs[t].editable {
		if c == column {
			return true
		}
	}
	return false
}
