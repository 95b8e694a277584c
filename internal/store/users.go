package store

import (
	"context"
	"time"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

const userColumns = `id, username, password_hash, role, is_active,
	can_edit_and_delete_own_posts, can_edit_any_post, can_delete_any_post,
	can_approve_posts, last_login_time`

type userScanner interface {
	Scan(dest ...any) error
}

func scanUser(row userScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.CanEditAndDeleteOwnPosts, &u.CanEditAnyPost, &u.CanDeleteAnyPost,
		&u.CanApprovePosts, &u.LastLoginTime)
	return u, err
}

// CreateUser inserts an account with the given, already hashed, password.
// A taken username surfaces as invalid input, not a store failure.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (username, password_hash, role, is_active,
			can_edit_and_delete_own_posts, can_edit_any_post,
			can_delete_any_post, can_approve_posts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	created, err := scanUser(s.db.QueryRowContext(ctx, query,
		u.Username, u.PasswordHash, u.Role, u.IsActive,
		u.CanEditAndDeleteOwnPosts, u.CanEditAnyPost,
		u.CanDeleteAnyPost, u.CanApprovePosts))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.InvalidInput("username already taken")
		}
		return domain.User{}, domain.StoreError("insert user", err)
	}
	return created, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return domain.User{}, notFoundOrStore(err, "user not found", "lookup user")
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, notFoundOrStore(err, "user not found", "lookup user")
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, domain.StoreError("list users", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, domain.StoreError("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list users", err)
	}
	return users, nil
}

// UpdateUserPermissions rewrites the per-user capability flags and role.
func (s *Store) UpdateUserPermissions(ctx context.Context, u domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET role = $2, is_active = $3,
			can_edit_and_delete_own_posts = $4, can_edit_any_post = $5,
			can_delete_any_post = $6, can_approve_posts = $7
		WHERE id = $1
	`, u.ID, u.Role, u.IsActive, u.CanEditAndDeleteOwnPosts,
		u.CanEditAnyPost, u.CanDeleteAnyPost, u.CanApprovePosts)
	if err != nil {
		return domain.StoreError("update user permissions", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return domain.StoreError("update password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}

func (s *Store) RecordLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_time = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return domain.StoreError("record login", err)
	}
	return nil
}

// DeleteUser removes an account. Accounts still owning posts are protected by
// the ownership foreign keys; the constraint error is reported as invalid
// input so the console can explain it.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.InvalidInput("user still owns posts or media")
		}
		return domain.StoreError("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}
