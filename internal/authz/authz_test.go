package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/tabsdata/tabsdata/internal/domain"
)

type fakeRoleStore struct {
	perms map[string][]domain.Permission
}

func (f *fakeRoleStore) RolePermissions(_ context.Context, roleID string) ([]domain.Permission, error) {
	return f.perms[roleID], nil
}

func TestCheck_EmptyRequirementsAuthorizesUnconditionally(t *testing.T) {
	az := New(&fakeRoleStore{})
	err := az.Check(context.Background(), Request{UserID: "u1", RoleID: "none"}, domain.CollectionScope("sales"))
	if err != nil {
		t.Fatalf("expected nil error for empty requirement set, got %v", err)
	}
}

func TestCheck_WildcardGrantsSpecificCollection(t *testing.T) {
	store := &fakeRoleStore{perms: map[string][]domain.Permission{
		"admin-role": {{Kind: domain.PermCollectionRead, All: true}},
	}}
	az := New(store)
	err := az.Check(context.Background(), Request{UserID: "u1", RoleID: "admin-role"},
		domain.CollectionScope("sales"),
		domain.Requirement{AnyOf: []domain.PermissionKind{domain.PermCollectionRead}},
	)
	if err != nil {
		t.Fatalf("expected wildcard CollectionRead(All) to satisfy CollectionRead(sales), got %v", err)
	}
}

func TestCheck_SpecificGrantDoesNotSatisfyOtherCollection(t *testing.T) {
	store := &fakeRoleStore{perms: map[string][]domain.Permission{
		"r1": {{Kind: domain.PermCollectionRead, CollectionID: "marketing"}},
	}}
	az := New(store)
	err := az.Check(context.Background(), Request{UserID: "u1", RoleID: "r1"},
		domain.CollectionScope("sales"),
		domain.Requirement{AnyOf: []domain.PermissionKind{domain.PermCollectionRead}},
	)
	var unauth *domain.UnAuthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected UnAuthorized, got %v", err)
	}
}

func TestCheck_RequesterFallback(t *testing.T) {
	az := New(&fakeRoleStore{})
	err := az.Check(context.Background(), Request{UserID: "u42", RoleID: "no-perms"},
		domain.UserScope("u42"),
		domain.Requirement{AnyOf: []domain.PermissionKind{domain.PermUser}},
	)
	if err != nil {
		t.Fatalf("expected requester fallback to authorize own user scope, got %v", err)
	}
}

func TestCheck_RequesterFallbackDoesNotLeakToOtherUsers(t *testing.T) {
	az := New(&fakeRoleStore{})
	err := az.Check(context.Background(), Request{UserID: "u1", RoleID: "no-perms"},
		domain.UserScope("u99"),
		domain.Requirement{AnyOf: []domain.PermissionKind{domain.PermUser}},
	)
	var unauth *domain.UnAuthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected UnAuthorized when requester differs from scope user, got %v", err)
	}
}

func TestCheck_InvalidScopePropagates(t *testing.T) {
	az := New(&fakeRoleStore{})
	err := az.Check(context.Background(), Request{UserID: "u1", RoleID: "r1"},
		domain.SystemScope(),
		domain.Requirement{AnyOf: []domain.PermissionKind{domain.PermCollectionRead}},
	)
	var invalid *domain.InvalidAuthzScope
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidAuthzScope, got %v", err)
	}
}

func TestCheck_CollectionAllScopeRejected(t *testing.T) {
	az := New(&fakeRoleStore{})
	err := az.Check(context.Background(), Request{UserID: "u1", RoleID: "r1"},
		domain.AllCollectionsScope(),
		domain.Requirement{AnyOf: []domain.PermissionKind{domain.PermCollectionRead}},
	)
	var cannotBeAll *domain.AuthEntityCannotBeAll
	if !errors.As(err, &cannotBeAll) {
		t.Fatalf("expected AuthEntityCannotBeAll, got %v", err)
	}
}

func TestCheck_AnyOfSatisfiedByOneKind(t *testing.T) {
	store := &fakeRoleStore{perms: map[string][]domain.Permission{
		"dev": {{Kind: domain.PermCollectionDev, CollectionID: "sales"}},
	}}
	az := New(store)
	err := az.Check(context.Background(), Request{UserID: "u1", RoleID: "dev"},
		domain.CollectionScope("sales"),
		domain.Requirement{AnyOf: []domain.PermissionKind{domain.PermCollectionAdmin, domain.PermCollectionDev}},
	)
	if err != nil {
		t.Fatalf("expected any_of match on CollectionDev, got %v", err)
	}
}
