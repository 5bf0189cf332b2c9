package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabsdata/tabsdata/internal/domain"
)

// AssignPermission grants perm to roleID. Inserting the same
// (role, permission) pair twice is a no-op.
func (s *PostgresStore) AssignPermission(ctx context.Context, roleID string, perm domain.Permission) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("role id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_kind, collection_id, all_collections, user_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`, roleID, int(perm.Kind), perm.CollectionID, perm.All, perm.UserID)
	if err != nil {
		return fmt.Errorf("assign permission to role %s: %w", roleID, err)
	}
	return nil
}

// RevokePermission removes perm from roleID.
func (s *PostgresStore) RevokePermission(ctx context.Context, roleID string, perm domain.Permission) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1 AND permission_kind = $2 AND collection_id = $3 AND all_collections = $4 AND user_id = $5
	`, roleID, int(perm.Kind), perm.CollectionID, perm.All, perm.UserID)
	if err != nil {
		return fmt.Errorf("revoke permission from role %s: %w", roleID, err)
	}
	return nil
}

// RolePermissions loads the full permission set granted to roleID. This
// backs step 4 of the authorization algorithm (spec §4.9): "load the
// role's permission set via the authorization context."
func (s *PostgresStore) RolePermissions(ctx context.Context, roleID string) ([]domain.Permission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT permission_kind, collection_id, all_collections, user_id
		FROM role_permissions
		WHERE role_id = $1
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("load role permissions for %s: %w", roleID, err)
	}
	defer rows.Close()

	var perms []domain.Permission
	for rows.Next() {
		var kind int
		var p domain.Permission
		if err := rows.Scan(&kind, &p.CollectionID, &p.All, &p.UserID); err != nil {
			return nil, fmt.Errorf("scan role permission: %w", err)
		}
		p.Kind = domain.PermissionKind(kind)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
