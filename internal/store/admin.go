package store

import (
	"context"
	"strings"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

// Raw row access for the maintenance console. Queries are assembled only
// from the specs below, never from caller strings, so identifier injection
// is impossible by construction.

type tableSpec struct {
	pk      string
	columns []string
}

var relationalTables = map[string]tableSpec{
	"users": {pk: "id", columns: []string{
		"id", "username", "role", "is_active",
		"can_edit_and_delete_own_posts", "can_edit_any_post",
		"can_delete_any_post", "can_approve_posts", "last_login_time"}},
	"post_ownership":         {pk: "post_id", columns: []string{"post_id", "owner_user_id", "edit_log"}},
	"pending_post_ownership": {pk: "post_id", columns: []string{"post_id", "owner_user_id"}},
	"settings":               {pk: "key", columns: []string{"key", "value"}},
	"media_attachments":      {pk: "id", columns: []string{"id", "user_id", "tags", "uploaded_at"}},
}

func specFor(table string) (tableSpec, error) {
	spec, ok := relationalTables[table]
	if !ok {
		return tableSpec{}, domain.InvalidInput("unknown table: " + table)
	}
	return spec, nil
}

// AdminColumns returns the display columns of a browsable relational table.
func (s *Store) AdminColumns(table string) ([]string, error) {
	spec, err := specFor(table)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), spec.columns...), nil
}

func (s *Store) AdminRowCount(ctx context.Context, table string) (int, error) {
	if _, err := specFor(table); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return 0, domain.StoreError("count table rows", err)
	}
	return count, nil
}

// AdminRows pages through a table in reverse primary-key order and renders
// every cell as text, NULLs as empty strings.
func (s *Store) AdminRows(ctx context.Context, table string, limit, offset int) ([][]string, error) {
	spec, err := specFor(table)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + castColumns(spec.columns) + ` FROM ` + table +
		` ORDER BY ` + spec.pk + ` DESC LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, domain.StoreError("scan table rows", err)
	}
	defer rows.Close()

	out := make([][]string, 0, limit)
	for rows.Next() {
		row, err := scanTextRow(rows, len(spec.columns))
		if err != nil {
			return nil, domain.StoreError("scan table row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("scan table rows", err)
	}
	return out, nil
}

// AdminRow fetches one row by its primary key value.
func (s *Store) AdminRow(ctx context.Context, table, pk string) ([]string, error) {
	spec, err := specFor(table)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + castColumns(spec.columns) + ` FROM ` + table +
		` WHERE ` + spec.pk + `::TEXT = $1`
	row, err := scanTextRow(s.db.QueryRowContext(ctx, query, pk), len(spec.columns))
	if err != nil {
		return nil, notFoundOrStore(err, "row not found", "read table row")
	}
	return row, nil
}

// AdminDeleteRows removes the identified rows in one transaction; if any
// delete trips a constraint the whole batch rolls back.
func (s *Store) AdminDeleteRows(ctx context.Context, table string, pks []string) error {
	spec, err := specFor(table)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("begin delete tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `DELETE FROM ` + table + ` WHERE ` + spec.pk + `::TEXT = $1`
	for _, pk := range pks {
		if _, err := tx.ExecContext(ctx, query, pk); err != nil {
			if isForeignKeyViolation(err) {
				return domain.InvalidInput("row is still referenced")
			}
			return domain.StoreError("delete table row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.StoreError("commit delete", err)
	}
	return nil
}

// AdminCleanTable empties a table and reports how many rows went.
func (s *Store) AdminCleanTable(ctx context.Context, table string) (int, error) {
	if _, err := specFor(table); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, domain.InvalidInput("table rows are still referenced")
		}
		return 0, domain.StoreError("clean table", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AdminUpdateCell overwrites one column of one row. Which columns may be
// edited at all is the console's decision; the store only refuses columns
// that do not exist.
func (s *Store) AdminUpdateCell(ctx context.Context, table, pk, column, value string) error {
	spec, err := specFor(table)
	if err != nil {
		return err
	}
	valid := false
	for _, c := range spec.columns {
		if c == column {
			valid = true
			break
		}
	}
	if !valid {
		return domain.InvalidInput("unknown column: " + column)
	}
	query := `UPDATE ` + table + ` SET ` + column + ` = $1 WHERE ` + spec.pk + `::TEXT = $2`
	res, err := s.db.ExecContext(ctx, query, value, pk)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.InvalidInput("value collides with an existing row")
		}
		return domain.StoreError("update table cell", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("row not found")
	}
	return nil
}

func castColumns(columns []string) string {
	cast := make([]string, len(columns))
	for i, c := range columns {
		cast[i] = c + `::TEXT`
	}
	return strings.Join(cast, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTextRow(row rowScanner, n int) ([]string, error) {
	cells := make([]*string, n)
	dest := make([]any, n)
	for i := range cells {
		dest[i] = &cells[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i, c := range cells {
		if c != nil {
			out[i] = *c
		}
	}
	return out, nil
}
