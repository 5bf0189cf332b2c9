// Package sqlbuilder implements the typed SQL query builder (spec
// component C8): given a DAO's table/column metadata, it emits
// parameterized SQL fragments for insert, lookup, update, delete, and
// keyset-paginated listing, including the historical "latest versions"
// CTE the version resolver and catalog joins depend on.
package sqlbuilder

import sq "github.com/Masterminds/squirrel"

// dialect is shared by every statement this package builds: Postgres
// positional placeholders throughout.
var dialect = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Condition is one "column = value" element of a WHERE group.
type Condition struct {
	Column string
	Value  any
}

// Group is a set of Conditions combined with AND.
type Group []Condition

// Groups is a set of Group combined with OR. An empty Groups is a
// programming error for find_by/update_all_by: WhereClause injects
// "1 = 0" so the caller never accidentally matches every row.
type Groups []Group

// WhereClause builds the OR-of-ANDs predicate described in spec §4.8.
func WhereClause(groups Groups) sq.Sqlizer {
	if len(groups) == 0 {
		return sq.Expr("1 = 0")
	}
	or := make(sq.Or, 0, len(groups))
	for _, g := range groups {
		and := make(sq.And, 0, len(g))
		for _, c := range g {
			and = append(and, sq.Eq{c.Column: c.Value})
		}
		or = append(or, and)
	}
	return or
}
