package service

import (
	"context"
	"fmt"

	"vetorial-dashboard/internal/access"
	"vetorial-dashboard/internal/domain"

	"go.uber.org/zap"
)

// AccessibleLocalities 用户信息（含派生的 AssignedLocalities）与可见范围
func (d *Dashboard) AccessibleLocalities(ctx context.Context, userID string) (*domain.User, access.Scope, error) {
	return d.access.AssignedLocalities(ctx, userID)
}

// GrantAccess 管理员为用户授权一个辖区（辖区须已存在）
func (d *Dashboard) GrantAccess(ctx context.Context, actorID, userID, localityName string) error {
	localityID, err := d.adminLocality(ctx, actorID, userID, localityName)
	if err != nil {
		return err
	}
	if err := d.store.Grants.GrantAccess(ctx, userID, localityID); err != nil {
		return err
	}
	d.logger.Info("Access granted",
		zap.String("actor_id", actorID),
		zap.String("user_id", userID),
		zap.String("locality", localityName),
	)
	return nil
}

// RevokeAccess 管理员撤销授权
func (d *Dashboard) RevokeAccess(ctx context.Context, actorID, userID, localityName string) error {
	localityID, err := d.adminLocality(ctx, actorID, userID, localityName)
	if err != nil {
		return err
	}
	if err := d.store.Grants.RevokeAccess(ctx, userID, localityID); err != nil {
		return err
	}
	d.logger.Info("Access revoked",
		zap.String("actor_id", actorID),
		zap.String("user_id", userID),
		zap.String("locality", localityName),
	)
	return nil
}

// AccessLevels 管理员查看可分配的访问级别（授权界面的下拉选项）
func (d *Dashboard) AccessLevels(ctx context.Context, actorID string) ([]domain.AccessLevel, error) {
	if !d.access.HasPermission(ctx, actorID, domain.PermissionAdmin) {
		return nil, fmt.Errorf("admin: %w", ErrForbidden)
	}
	if d.store == nil || d.store.AccessLevels == nil {
		return nil, ErrStoreUnavailable
	}
	levels, err := d.store.AccessLevels.ListAccessLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list access levels: %w", err)
	}
	return levels, nil
}

func (d *Dashboard) adminLocality(ctx context.Context, actorID, userID, localityName string) (string, error) {
	if !d.access.HasPermission(ctx, actorID, domain.PermissionAdmin) {
		return "", fmt.Errorf("admin: %w", ErrForbidden)
	}
	if d.store == nil || d.store.Grants == nil || d.store.Localities == nil || d.store.Users == nil {
		return "", ErrStoreUnavailable
	}
	if _, err := d.store.Users.GetUser(ctx, userID); err != nil {
		return "", err
	}
	loc, err := d.store.Localities.GetLocalityByName(ctx, localityName)
	if err != nil {
		return "", err
	}
	return loc.ID, nil
}
