package app

import (
	"context"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/config"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/rbac"
)

// Account administration and runtime settings. Everything here is gated on
// admin rights.

func (s *Service) ListUsers(ctx context.Context, actor domain.User) ([]domain.User, error) {
	if !rbac.CanManageUsers(actor) {
		return nil, domain.Forbidden("admin rights required")
	}
	return s.rel.ListUsers(ctx)
}

// UpdateUserPermissions rewrites another account's role and capability
// flags. Admins cannot strip their own admin role; someone else has to,
// so the system cannot lock itself out.
func (s *Service) UpdateUserPermissions(ctx context.Context, actor domain.User, updated domain.User) error {
	if !rbac.CanManageUsers(actor) {
		return domain.Forbidden("admin rights required")
	}
	if actor.ID == updated.ID && updated.Role != domain.RoleAdmin {
		return domain.InvalidInput("cannot remove your own admin role")
	}
	switch updated.Role {
	case domain.RoleAdmin, domain.RoleContributor:
	default:
		return domain.InvalidInput("unknown role: " + string(updated.Role))
	}
	return s.rel.UpdateUserPermissions(ctx, updated)
}

func (s *Service) DeleteUser(ctx context.Context, actor domain.User, userID int64) error {
	if !rbac.CanManageUsers(actor) {
		return domain.Forbidden("admin rights required")
	}
	if actor.ID == userID {
		return domain.InvalidInput("cannot delete your own account")
	}
	return s.rel.DeleteUser(ctx, userID)
}

// UpdateAdminPrefix swaps the maintenance console mount point and persists
// it, so the prefix survives restarts.
func (s *Service) UpdateAdminPrefix(ctx context.Context, actor domain.User, prefix string) error {
	if !rbac.CanManageUsers(actor) {
		return domain.Forbidden("admin rights required")
	}
	if err := config.ValidateAdminPrefix(prefix); err != nil {
		return err
	}
	if err := s.rel.WriteSetting(ctx, adminPrefixSettingKey, prefix); err != nil {
		return err
	}
	if s.prefix != nil {
		return s.prefix.Set(prefix)
	}
	return nil
}

// RestoreAdminPrefix loads the persisted console prefix at startup. A store
// without the setting keeps the configured default.
func (s *Service) RestoreAdminPrefix(ctx context.Context) error {
	if s.prefix == nil {
		return nil
	}
	stored, err := s.rel.ReadSetting(ctx, adminPrefixSettingKey)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		return err
	}
	return s.prefix.Set(stored)
}
