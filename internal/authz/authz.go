// Package authz implements the authorization gate (spec component C9):
// given a request context and a declared scope, it decides whether the
// caller's role carries a permission that satisfies the operation's
// declared requirement sets.
package authz

import (
	"context"
	"fmt"

	"github.com/tabsdata/tabsdata/internal/domain"
	"github.com/tabsdata/tabsdata/internal/logging"
)

// RoleStore loads the permission set granted to a role. Satisfied by
// *store.PostgresStore.
type RoleStore interface {
	RolePermissions(ctx context.Context, roleID string) ([]domain.Permission, error)
}

// Request carries the caller identity an operation is authorized for.
type Request struct {
	UserID string
	RoleID string
}

// Authorizer evaluates requirement sets against a request's role.
type Authorizer struct {
	roles RoleStore
}

// New creates an Authorizer backed by roles.
func New(roles RoleStore) *Authorizer {
	return &Authorizer{roles: roles}
}

// Check runs spec §4.9's six-step algorithm: union the requirement sets
// against scope, augment with collection wildcards, short-circuit on an
// empty union, then test the role's permission set, then the requester
// fallback, failing with *UnAuthorized only once all of those are spent.
func (a *Authorizer) Check(ctx context.Context, req Request, scope domain.Scope, requirements ...domain.Requirement) error {
	required, err := domain.RequiredPermissions(scope, requirements...)
	if err != nil {
		return err
	}

	if len(required) == 0 {
		return nil
	}

	granted, err := a.roles.RolePermissions(ctx, req.RoleID)
	if err != nil {
		return fmt.Errorf("load role permissions: %w", err)
	}
	if domain.HasAny(granted, required) {
		return nil
	}

	requester := domain.Permission{Kind: domain.PermUser, UserID: req.UserID}
	for _, p := range required {
		if p == requester {
			return nil
		}
	}

	logging.Op().Warn("authorization denied",
		"user_id", req.UserID,
		"role_id", req.RoleID,
		"scope", scope.String(),
	)
	return &domain.UnAuthorized{Scope: scope.String()}
}
