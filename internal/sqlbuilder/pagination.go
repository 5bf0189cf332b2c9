package sqlbuilder

import (
	sq "github.com/Masterminds/squirrel"
)

// Direction selects which way a keyset page moves relative to the
// cursor: Next walks toward newer/larger values, Previous toward
// older/smaller ones.
type Direction int

const (
	Next Direction = iota
	Previous
)

// Cursor is the keyset position a page continues from: a value on the
// ordered field plus a tie-breaking natural id, per spec §4.8's
// "(field OP v) OR (field = v AND natural OP id)" pattern.
type Cursor struct {
	Field        string
	Value        any
	NaturalField string
	NaturalValue any
}

// ListParams controls one page of a list_by query.
type ListParams struct {
	OrderField string
	NaturalKey string
	After      *Cursor
	Direction  Direction
	Limit      uint64
}

func (d Direction) op() string {
	if d == Next {
		return ">"
	}
	return "<"
}

// keysetWhere combines the where groups (when any) with the cursor
// condition (when present); with neither, it matches every row.
func keysetWhere(where Groups, after *Cursor, dir Direction) sq.Sqlizer {
	base := sq.And{}
	if len(where) > 0 {
		base = append(base, WhereClause(where))
	}
	if after == nil {
		return base
	}
	op := dir.op()
	cursorCond := sq.Or{
		sq.Expr(after.Field+" "+op+" ?", after.Value),
		sq.And{
			sq.Eq{after.Field: after.Value},
			sq.Expr(after.NaturalField+" "+op+" ?", after.NaturalValue),
		},
	}
	return append(base, cursorCond)
}

// ListBy composes the WHERE/ORDER BY/LIMIT of a paginated listing. When
// params.Direction is Previous, both the natural and explicit orders
// are inverted for the query itself; Reversed reports that the caller
// must reverse the returned rows before handing them back, so results
// are always delivered in the caller's requested direction.
func ListBy(dao Dao, where Groups, params ListParams) (query string, args []any, reversed bool, err error) {
	orderOp := "ASC"
	if params.Direction == Previous {
		orderOp = "DESC"
	}
	q := dialect.Select(dao.Columns()...).
		From(dao.Table()).
		Where(keysetWhere(where, params.After, params.Direction)).
		OrderBy(params.OrderField+" "+orderOp, params.NaturalKey+" "+orderOp)
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	query, args, err = q.ToSql()
	return query, args, params.Direction == Previous, err
}

// Reverse returns a new slice with rows in reverse order, for callers
// that received reversed=true from ListBy.
func Reverse[T any](rows []T) []T {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}
