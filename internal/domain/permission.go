package domain

import "fmt"

// ScopeKind identifies which generic an authorization Scope belongs to.
type ScopeKind int

const (
	ScopeSystem ScopeKind = iota
	ScopeCollection
	ScopeUser
	ScopeSystemUser
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeSystem:
		return "system"
	case ScopeCollection:
		return "collection"
	case ScopeUser:
		return "user"
	case ScopeSystemUser:
		return "system_user"
	default:
		return "unknown"
	}
}

// Scope is the resource an authorization check is performed against. It is
// a closed tagged union: System, Collection(id | all), User(id) or
// SystemUser(id).
type Scope struct {
	Kind           ScopeKind
	CollectionID   string
	AllCollections bool
	UserID         string
}

func SystemScope() Scope { return Scope{Kind: ScopeSystem} }

func CollectionScope(id string) Scope {
	return Scope{Kind: ScopeCollection, CollectionID: id}
}

func AllCollectionsScope() Scope {
	return Scope{Kind: ScopeCollection, AllCollections: true}
}

func UserScope(id string) Scope { return Scope{Kind: ScopeUser, UserID: id} }

func SystemUserScope(id string) Scope { return Scope{Kind: ScopeSystemUser, UserID: id} }

func (s Scope) String() string {
	switch s.Kind {
	case ScopeSystem:
		return "System"
	case ScopeCollection:
		if s.AllCollections {
			return "Collection(All)"
		}
		return fmt.Sprintf("Collection(On(%s))", s.CollectionID)
	case ScopeUser:
		return fmt.Sprintf("User(On(%s))", s.UserID)
	case ScopeSystemUser:
		return fmt.Sprintf("SystemUser(On(%s))", s.UserID)
	default:
		return "Scope(?)"
	}
}

// PermissionKind enumerates the members of the Permission tagged union.
type PermissionKind int

const (
	PermSysAdmin PermissionKind = iota
	PermSecAdmin
	PermCollectionAdmin
	PermCollectionDev
	PermCollectionExec
	PermCollectionRead
	PermCollectionReadAll
	PermUser
)

func (k PermissionKind) generic() ScopeKind {
	switch k {
	case PermSysAdmin, PermSecAdmin:
		return ScopeSystem
	case PermCollectionAdmin, PermCollectionDev, PermCollectionExec, PermCollectionRead, PermCollectionReadAll:
		return ScopeCollection
	case PermUser:
		return ScopeUser
	default:
		return ScopeSystem
	}
}

func (k PermissionKind) String() string {
	switch k {
	case PermSysAdmin:
		return "SysAdmin"
	case PermSecAdmin:
		return "SecAdmin"
	case PermCollectionAdmin:
		return "CollectionAdmin"
	case PermCollectionDev:
		return "CollectionDev"
	case PermCollectionExec:
		return "CollectionExec"
	case PermCollectionRead:
		return "CollectionRead"
	case PermCollectionReadAll:
		return "CollectionReadAll"
	case PermUser:
		return "User"
	default:
		return "Permission(?)"
	}
}

// Permission is a concrete grant: a kind plus the scope data it carries.
// Collection-scoped kinds carry either a specific CollectionID or the All
// wildcard; User carries a UserID.
type Permission struct {
	Kind         PermissionKind
	CollectionID string
	All          bool
	UserID       string
}

func (p Permission) String() string {
	switch p.Kind.generic() {
	case ScopeCollection:
		if p.All {
			return fmt.Sprintf("%s(All)", p.Kind)
		}
		return fmt.Sprintf("%s(On(%s))", p.Kind, p.CollectionID)
	case ScopeUser:
		return fmt.Sprintf("%s(On(%s))", p.Kind, p.UserID)
	default:
		return p.Kind.String()
	}
}

// Requirement declares the set of permission kinds any one of which
// satisfies an authorization check at a given scope.
type Requirement struct {
	AnyOf []PermissionKind
}

// InvalidAuthzScope is returned when a Requirement's kinds do not apply to
// the generic of the Scope being checked (a programmer error: the caller
// built a Requirement for the wrong kind of resource).
type InvalidAuthzScope struct {
	Kind  PermissionKind
	Scope Scope
}

func (e *InvalidAuthzScope) Error() string {
	return fmt.Sprintf("permission %s does not apply to scope %s", e.Kind, e.Scope)
}

// AuthEntityCannotBeAll is returned when a Collection-scoped requirement is
// checked against the Collection(All) wildcard scope itself: "all
// collections" is not a concrete resource that can be authorized against.
type AuthEntityCannotBeAll struct {
	Scope Scope
}

func (e *AuthEntityCannotBeAll) Error() string {
	return fmt.Sprintf("scope %s cannot be the wildcard entity for an authorization check", e.Scope)
}

// UnAuthorized is returned when none of the required permissions, their
// wildcard augmentations, nor the requester fallback grant access.
type UnAuthorized struct {
	Scope string
}

func (e *UnAuthorized) Error() string {
	return fmt.Sprintf("not authorized for %s", e.Scope)
}

// buildPermission projects a requirement kind onto a concrete scope,
// producing the Permission instance that would satisfy it.
func buildPermission(kind PermissionKind, scope Scope) (Permission, error) {
	if kind.generic() != scope.Kind && !(kind.generic() == ScopeUser && scope.Kind == ScopeSystemUser) {
		return Permission{}, &InvalidAuthzScope{Kind: kind, Scope: scope}
	}
	switch kind.generic() {
	case ScopeSystem:
		return Permission{Kind: kind}, nil
	case ScopeCollection:
		if scope.AllCollections {
			return Permission{}, &AuthEntityCannotBeAll{Scope: scope}
		}
		return Permission{Kind: kind, CollectionID: scope.CollectionID}, nil
	case ScopeUser:
		return Permission{Kind: kind, UserID: scope.UserID}, nil
	default:
		return Permission{}, &InvalidAuthzScope{Kind: kind, Scope: scope}
	}
}

// RequiredPermissions unions the any_of(scope) permission sets declared by
// each requirement and augments it with the Collection(All) wildcard for
// every concrete Collection permission, per the authorization algorithm in
// §4.9. Returns an empty slice and a nil error when the union is empty
// (meaning: no requirement applies, so the check authorizes unconditionally).
func RequiredPermissions(scope Scope, requirements ...Requirement) ([]Permission, error) {
	seen := make(map[Permission]struct{})
	var union []Permission
	add := func(p Permission) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		union = append(union, p)
	}

	for _, req := range requirements {
		for _, kind := range req.AnyOf {
			perm, err := buildPermission(kind, scope)
			if err != nil {
				return nil, err
			}
			add(perm)
		}
	}

	augmented := make([]Permission, 0, len(union))
	augmented = append(augmented, union...)
	for _, p := range union {
		if p.Kind.generic() == ScopeCollection && !p.All {
			augmented = append(augmented, Permission{Kind: p.Kind, All: true})
		}
	}
	return augmented, nil
}

// HasAny reports whether granted contains at least one permission from
// required (equality on Kind/CollectionID/All/UserID).
func HasAny(granted []Permission, required []Permission) bool {
	set := make(map[Permission]struct{}, len(granted))
	for _, g := range granted {
		set[g] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
