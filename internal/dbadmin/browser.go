package dbadmin

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/kvstore"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/rbac"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/tags"
)

const previewLimit = 80

// contentAdmin is the raw-row surface of the content store.
type contentAdmin interface {
	TableRowCount(table string) (int, error)
	TableRows(table string, limit, offset int) ([]kvstore.RawRow, error)
	TableRow(table string, id ident.ID) (kvstore.RawRow, error)
	DeleteTableRows(table string, ids []ident.ID) error
	SetTableRow(table string, id ident.ID, value []byte) error
	CleanTable(table string) (int, error)
}

// relationalAdmin is the raw-row surface of the contributor store, plus the
// owner lookups dependent listing needs.
type relationalAdmin interface {
	AdminColumns(table string) ([]string, error)
	AdminRowCount(ctx context.Context, table string) (int, error)
	AdminRows(ctx context.Context, table string, limit, offset int) ([][]string, error)
	AdminRow(ctx context.Context, table, pk string) ([]string, error)
	AdminDeleteRows(ctx context.Context, table string, pks []string) error
	AdminCleanTable(ctx context.Context, table string) (int, error)
	AdminUpdateCell(ctx context.Context, table, pk, column, value string) error
	PostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error)
	PendingPostIDsByOwner(ctx context.Context, ownerID int64) ([]ident.ID, error)
	MediaByUser(ctx context.Context, userID int64) ([]domain.MediaAttachment, error)
}

type passwordVerifier interface {
	ReverifyPassword(ctx context.Context, userID int64, password string) error
}

type Browser struct {
	content contentAdmin
	rel     relationalAdmin
	auth    passwordVerifier
	log     *logrus.Logger
}

func NewBrowser(content contentAdmin, rel relationalAdmin, auth passwordVerifier, logger *logrus.Logger) *Browser {
	if logger == nil {
		logger = logrus.New()
	}
	return &Browser{content: content, rel: rel, auth: auth, log: logger}
}

// Page is one screen of a table.
type Page struct {
	Table   string     `json:"table"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   int        `json:"total"`
}

// TableStatus is one line of the console overview.
type TableStatus struct {
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	Cleanable bool   `json:"cleanable"`
}

// Dependent describes a row in another table tied to the row being deleted.
type Dependent struct {
	Table   string `json:"table"`
	Key     string `json:"key"`
	Preview string `json:"preview"`
}

func requireAdmin(actor domain.User) error {
	if !rbac.CanManageUsers(actor) {
		return domain.Forbidden("admin rights required")
	}
	return nil
}

// Overview reports row counts for every table.
func (b *Browser) Overview(ctx context.Context, actor domain.User) ([]TableStatus, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	out := make([]TableStatus, 0, len(tableSpecs))
	for _, t := range AllTables() {
		spec := tableSpecs[t]
		var count int
		var err error
		if spec.kind == kindContent {
			count, err = b.content.TableRowCount(spec.kvTable)
		} else {
			count, err = b.rel.AdminRowCount(ctx, spec.name)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, TableStatus{Name: spec.name, Rows: count, Cleanable: spec.cleanable})
	}
	return out, nil
}

// Page returns one screen of rows. Metadata rows are flattened into columns;
// post bodies are truncated to a preview.
func (b *Browser) Page(ctx context.Context, actor domain.User, table Table, limit, offset int) (Page, error) {
	if err := requireAdmin(actor); err != nil {
		return Page{}, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	spec := tableSpecs[table]

	if spec.kind == kindRelational {
		columns, err := b.rel.AdminColumns(spec.name)
		if err != nil {
			return Page{}, err
		}
		rows, err := b.rel.AdminRows(ctx, spec.name, limit, offset)
		if err != nil {
			return Page{}, err
		}
		total, err := b.rel.AdminRowCount(ctx, spec.name)
		if err != nil {
			return Page{}, err
		}
		return Page{Table: spec.name, Columns: columns, Rows: rows, Total: total}, nil
	}

	raws, err := b.content.TableRows(spec.kvTable, limit, offset)
	if err != nil {
		return Page{}, err
	}
	total, err := b.content.TableRowCount(spec.kvTable)
	if err != nil {
		return Page{}, err
	}

	page := Page{Table: spec.name, Total: total}
	if isMetadataTable(table) {
		page.Columns = metadataColumns
		for _, raw := range raws {
			page.Rows = append(page.Rows, flattenMetadata(raw))
		}
	} else {
		page.Columns = []string{"id", "value"}
		for _, raw := range raws {
			page.Rows = append(page.Rows, []string{raw.ID.String(), truncate(string(raw.Value))})
		}
	}
	return page, nil
}

// Row fetches a single row by exact id, shaped like a one-row Page.
func (b *Browser) Row(ctx context.Context, actor domain.User, table Table, key string) (Page, error) {
	if err := requireAdmin(actor); err != nil {
		return Page{}, err
	}
	spec := tableSpecs[table]

	if spec.kind == kindRelational {
		columns, err := b.rel.AdminColumns(spec.name)
		if err != nil {
			return Page{}, err
		}
		cells, err := b.rel.AdminRow(ctx, spec.name, key)
		if err != nil {
			return Page{}, err
		}
		return Page{Table: spec.name, Columns: columns, Rows: [][]string{cells}, Total: 1}, nil
	}

	id, err := ident.Parse(key)
	if err != nil {
		return Page{}, err
	}
	raw, err := b.content.TableRow(spec.kvTable, id)
	if err != nil {
		return Page{}, err
	}
	page := Page{Table: spec.name, Total: 1}
	if isMetadataTable(table) {
		page.Columns = metadataColumns
		page.Rows = [][]string{flattenMetadata(raw)}
	} else {
		page.Columns = []string{"id", "value"}
		page.Rows = [][]string{{raw.ID.String(), truncate(string(raw.Value))}}
	}
	return page, nil
}

var metadataColumns = []string{"id", "title", "summary", "tags", "search_keywords", "cover_image", "created_at"}

func isMetadataTable(t Table) bool {
	return t == TableMetadata || t == TablePendingMetadata
}

func flattenMetadata(raw kvstore.RawRow) []string {
	var meta domain.PostMetadata
	if err := json.Unmarshal(raw.Value, &meta); err != nil {
		return []string{raw.ID.String(), "", truncate(string(raw.Value)), "", "", "", ""}
	}
	return []string{
		raw.ID.String(),
		meta.Title,
		truncate(meta.Summary),
		strings.Join(meta.Tags, ", "),
		strings.Join(meta.SearchKeywords, ", "),
		meta.CoverImage,
		meta.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func truncate(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit] + "…"
}

// Dependents lists rows in other tables tied to the given row, so the
// console can show what a delete would strand.
func (b *Browser) Dependents(ctx context.Context, actor domain.User, table Table, key string) ([]Dependent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if table == TableUsers {
		return b.userDependents(ctx, key)
	}

	out := []Dependent{}
	for _, dep := range tableSpecs[table].dependents {
		d, ok, err := b.dependentRow(ctx, dep, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// dependentRow probes one dependent table for the post id. Absence is not an
// error, just a missing entry.
func (b *Browser) dependentRow(ctx context.Context, dep Table, key string) (Dependent, bool, error) {
	spec := tableSpecs[dep]
	if spec.kind == kindContent {
		id, err := ident.Parse(key)
		if err != nil {
			return Dependent{}, false, err
		}
		raw, err := b.content.TableRow(spec.kvTable, id)
		if domain.IsNotFound(err) {
			return Dependent{}, false, nil
		}
		if err != nil {
			return Dependent{}, false, err
		}
		preview := truncate(string(raw.Value))
		if isMetadataTable(dep) {
			var meta domain.PostMetadata
			if json.Unmarshal(raw.Value, &meta) == nil {
				preview = "Title: " + meta.Title
			}
		}
		return Dependent{Table: spec.name, Key: key, Preview: preview}, true, nil
	}

	cells, err := b.rel.AdminRow(ctx, spec.name, key)
	if domain.IsNotFound(err) {
		return Dependent{}, false, nil
	}
	if err != nil {
		return Dependent{}, false, err
	}
	return Dependent{Table: spec.name, Key: key, Preview: strings.Join(cells, " | ")}, true, nil
}

func (b *Browser) userDependents(ctx context.Context, key string) ([]Dependent, error) {
	userID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, domain.InvalidInput("malformed user id")
	}

	out := []Dependent{}
	published, err := b.rel.PostIDsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range published {
		out = append(out, Dependent{Table: "post_ownership", Key: id.String(), Preview: "owned post"})
	}
	pending, err := b.rel.PendingPostIDsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range pending {
		out = append(out, Dependent{Table: "pending_post_ownership", Key: id.String(), Preview: "owned submission"})
	}
	media, err := b.rel.MediaByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range media {
		out = append(out, Dependent{Table: "media_attachments", Key: m.ID, Preview: "uploaded media"})
	}
	return out, nil
}

// DeleteRows removes the identified rows from one table. Dependents are
// reported, not cascaded; the operator deletes them table by table.
func (b *Browser) DeleteRows(ctx context.Context, actor domain.User, table Table, keys []string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if len(keys) == 0 {
		return domain.InvalidInput("no rows selected")
	}
	spec := tableSpecs[table]

	if spec.kind == kindRelational {
		return b.rel.AdminDeleteRows(ctx, spec.name, keys)
	}

	ids := make([]ident.ID, 0, len(keys))
	for _, key := range keys {
		id, err := ident.Parse(key)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return b.content.DeleteTableRows(spec.kvTable, ids)
}

// DeleteRowWithDependents removes one row together with the dependent rows
// the operator confirmed. Every listed dependent must be declared for the
// main table; an undeclared entry rejects the whole call before any delete
// runs.
func (b *Browser) DeleteRowWithDependents(ctx context.Context, actor domain.User, table Table, key string, deps []Dependent) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	depTables := make([]Table, len(deps))
	for i, dep := range deps {
		depTable, err := ParseTable(dep.Table)
		if err != nil {
			return err
		}
		if !isDeclaredDependent(table, depTable) {
			return domain.InvalidInput("table " + dep.Table + " is not a dependent of " + tableSpecs[table].name)
		}
		depTables[i] = depTable
	}

	if err := b.deleteOne(ctx, table, key); err != nil {
		return err
	}
	for i, dep := range deps {
		if err := b.deleteOne(ctx, depTables[i], dep.Key); err != nil {
			return err
		}
	}
	return nil
}

func isDeclaredDependent(main, dep Table) bool {
	for _, d := range tableSpecs[main].dependents {
		if d == dep {
			return true
		}
	}
	return false
}

func (b *Browser) deleteOne(ctx context.Context, table Table, key string) error {
	spec := tableSpecs[table]
	if spec.kind == kindRelational {
		return b.rel.AdminDeleteRows(ctx, spec.name, []string{key})
	}
	id, err := ident.Parse(key)
	if err != nil {
		return err
	}
	return b.content.DeleteTableRows(spec.kvTable, []ident.ID{id})
}

// CleanTable wipes a cleanable table. The operator must re-enter their
// password; this is the console's most destructive operation.
func (b *Browser) CleanTable(ctx context.Context, actor domain.User, password string, table Table) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if err := b.auth.ReverifyPassword(ctx, actor.ID, password); err != nil {
		return 0, err
	}
	spec := tableSpecs[table]
	if !spec.cleanable {
		return 0, domain.Forbidden("table " + spec.name + " cannot be cleaned")
	}

	var removed int
	var err error
	if spec.kind == kindContent {
		removed, err = b.content.CleanTable(spec.kvTable)
	} else {
		removed, err = b.rel.AdminCleanTable(ctx, spec.name)
	}
	if err != nil {
		return 0, err
	}
	b.log.WithFields(logrus.Fields{
		"table":   spec.name,
		"removed": removed,
		"actor":   actor.Username,
	}).Warn("table cleaned")
	return removed, nil
}

// UpdateCell overwrites one editable cell. Editing a metadata tags cell
// changes the display list only; index entries are derived data maintained
// by the content operations, not by the console.
func (b *Browser) UpdateCell(ctx context.Context, actor domain.User, table Table, key, column, value string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if !table.canEdit(column) {
		return domain.InvalidInput("column " + column + " is not editable")
	}
	spec := tableSpecs[table]

	if spec.kind == kindRelational {
		return b.rel.AdminUpdateCell(ctx, spec.name, key, column, value)
	}

	id, err := ident.Parse(key)
	if err != nil {
		return err
	}
	if !isMetadataTable(table) {
		// Post bodies have a single opaque value column.
		return b.content.SetTableRow(spec.kvTable, id, []byte(value))
	}

	raw, err := b.content.TableRow(spec.kvTable, id)
	if err != nil {
		return err
	}
	var meta domain.PostMetadata
	if err := json.Unmarshal(raw.Value, &meta); err != nil {
		return domain.InvalidInput("metadata row is not valid JSON")
	}
	switch column {
	case "title":
		meta.Title = value
	case "summary":
		meta.Summary = value
	case "tags":
		meta.Tags = tags.ParseList(value)
	case "cover_image":
		meta.CoverImage = value
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return domain.StoreError("encode metadata", err)
	}
	return b.content.SetTableRow(spec.kvTable, id, encoded)
}
