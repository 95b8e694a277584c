package authpw

import (
	"context"
	"testing"
	"time"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

type mockUserStore struct {
	users  map[int64]domain.User
	byName map[string]int64
	nextID int64
	logins map[int64]time.Time
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:  make(map[int64]domain.User),
		byName: make(map[string]int64),
		nextID: 1,
		logins: make(map[int64]time.Time),
	}
}

func (m *mockUserStore) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	if id, ok := m.byName[username]; ok {
		return m.users[id], nil
	}
	return domain.User{}, domain.NotFound("user not found")
}

func (m *mockUserStore) UserByID(ctx context.Context, id int64) (domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return domain.User{}, domain.NotFound("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if _, ok := m.byName[u.Username]; ok {
		return domain.User{}, domain.InvalidInput("username already taken")
	}
	u.ID = m.nextID
	m.nextID++
	m.users[u.ID] = u
	m.byName[u.Username] = u.ID
	return u, nil
}

func (m *mockUserStore) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	u, ok := m.users[userID]
	if !ok {
		return domain.NotFound("user not found")
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *mockUserStore) RecordLogin(ctx context.Context, userID int64, at time.Time) error {
	m.logins[userID] = at
	return nil
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockUserStore())

	t.Run("successful create", func(t *testing.T) {
		u, err := svc.CreateUser(ctx, "alice", "password123", domain.RoleContributor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.ID == 0 {
			t.Error("expected id to be assigned")
		}
		if u.PasswordHash == "password123" || u.PasswordHash == "" {
			t.Error("password was not hashed")
		}
		if !u.IsActive || !u.CanEditAndDeleteOwnPosts {
			t.Error("expected default flags to be set")
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		if _, err := svc.CreateUser(ctx, "alice", "password123", domain.RoleContributor); !domain.IsInvalidInput(err) {
			t.Errorf("got %v, want invalid-input", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		if _, err := svc.CreateUser(ctx, "bob", "short", domain.RoleContributor); !domain.IsInvalidInput(err) {
			t.Errorf("got %v, want invalid-input", err)
		}
	})

	t.Run("missing username", func(t *testing.T) {
		if _, err := svc.CreateUser(ctx, "", "password123", domain.RoleContributor); !domain.IsInvalidInput(err) {
			t.Errorf("got %v, want invalid-input", err)
		}
	})
}

func TestVerifyCredentials(t *testing.T) {
	ctx := context.Background()
	mock := newMockUserStore()
	svc := NewService(mock)

	created, err := svc.CreateUser(ctx, "alice", "password123", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	t.Run("successful sign in", func(t *testing.T) {
		u, err := svc.VerifyCredentials(ctx, "alice", "password123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.Username != "alice" || u.Role != domain.RoleAdmin {
			t.Errorf("got user %+v", u)
		}
		if _, ok := mock.logins[created.ID]; !ok {
			t.Error("last login was not recorded")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := svc.VerifyCredentials(ctx, "alice", "wrongpassword"); !domain.IsInvalidCredentials(err) {
			t.Errorf("got %v, want invalid-credentials", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, err := svc.VerifyCredentials(ctx, "nobody", "password123"); !domain.IsInvalidCredentials(err) {
			t.Errorf("got %v, want invalid-credentials", err)
		}
	})

	t.Run("deactivated account", func(t *testing.T) {
		u := mock.users[created.ID]
		u.IsActive = false
		mock.users[created.ID] = u
		defer func() {
			u.IsActive = true
			mock.users[created.ID] = u
		}()

		if _, err := svc.VerifyCredentials(ctx, "alice", "password123"); !domain.IsInvalidCredentials(err) {
			t.Errorf("got %v, want invalid-credentials", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := svc.VerifyCredentials(ctx, "", ""); !domain.IsInvalidCredentials(err) {
			t.Errorf("got %v, want invalid-credentials", err)
		}
	})
}

func TestReverifyPassword(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockUserStore())

	u, err := svc.CreateUser(ctx, "alice", "password123", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := svc.ReverifyPassword(ctx, u.ID, "password123"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := svc.ReverifyPassword(ctx, u.ID, "wrong"); !domain.IsInvalidCredentials(err) {
		t.Errorf("got %v, want invalid-credentials", err)
	}
	if err := svc.ReverifyPassword(ctx, 9999, "password123"); !domain.IsNotFound(err) {
		t.Errorf("got %v, want not-found", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockUserStore())

	u, err := svc.CreateUser(ctx, "alice", "password123", domain.RoleContributor)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "newpassword456"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.VerifyCredentials(ctx, "alice", "password123"); err == nil {
		t.Error("old password still accepted")
	}
	if _, err := svc.VerifyCredentials(ctx, "alice", "newpassword456"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	if err := svc.ChangePassword(ctx, u.ID, "short"); !domain.IsInvalidInput(err) {
		t.Errorf("got %v, want invalid-input", err)
	}
}
