package sqlbuilder

import (
	"fmt"
	"time"
)

// StateSet constrains the type parameter S used by ListByAt and
// ListVersionsByAt to a closed set of state-value constants declared
// alongside the caller's Dao (mirroring the source's compile-time
// selection of which state values are valid for a given query).
type StateSet interface {
	~string
}

// ListByAt composes a list_by query additionally restricted to rows
// whose version-key was live at a given historical instant and whose
// state is one of states.
func ListByAt[S StateSet](dao Dao, states []S, at time.Time, where Groups, params ListParams) (query string, args []any, reversed bool, err error) {
	stateValues := make([]any, len(states))
	for i, s := range states {
		stateValues[i] = string(s)
	}
	extended := append(Groups{}, where...)
	q := dialect.Select(dao.Columns()...).
		From(dao.Table()).
		Where(keysetWhere(extended, params.After, params.Direction)).
		Where("triggered_on <= ?", at).
		Where("status = ANY(?)", stateValues)
	orderOp := "ASC"
	if params.Direction == Previous {
		orderOp = "DESC"
	}
	q = q.OrderBy(params.OrderField+" "+orderOp, params.NaturalKey+" "+orderOp)
	if params.Limit > 0 {
		q = q.Limit(params.Limit)
	}
	query, args, err = q.ToSql()
	return query, args, params.Direction == Previous, err
}

// latestVersionsCTE ranks rows per version-key (partitioned by
// table_id, ordered newest-first) and keeps rank 1: the "active as of"
// view every version-scoped read joins against.
const latestVersionsCTE = `
WITH LATEST_VERSIONS_CTE AS (
	SELECT *, ROW_NUMBER() OVER (PARTITION BY table_id ORDER BY triggered_on DESC) AS rnk
	FROM %s
	WHERE triggered_on <= $1 AND status = ANY($2)
)
SELECT %s FROM LATEST_VERSIONS_CTE WHERE rnk = 1
`

// ListVersionsByAt wraps the table in LATEST_VERSIONS_CTE and selects
// the rank-1 row per table_id, additionally filtering by the supplied
// WHERE groups. Unlike ListByAt, callers use this when they want
// exactly the active version per key rather than every historical row
// since the cutoff.
func ListVersionsByAt[S StateSet](dao Dao, states []S, at time.Time, where Groups) (query string, args []any, err error) {
	stateValues := make([]string, len(states))
	for i, s := range states {
		stateValues[i] = string(s)
	}
	base := fmt.Sprintf(latestVersionsCTE, dao.Table(), columnList(dao.Columns()))
	args = []any{at, stateValues}
	if len(where) > 0 {
		filterClause, filterArgs, err := WhereClause(where).ToSql()
		if err != nil {
			return "", nil, err
		}
		base += " AND " + rebind(filterClause, 2)
		args = append(args, filterArgs...)
	}
	return base, args, nil
}

func columnList(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// rebind shifts a squirrel-produced "?" placeholder string's implicit
// Postgres ordinal start by offset, since it is spliced after params
// already bound to $1/$2 above.
func rebind(clause string, offset int) string {
	out := make([]byte, 0, len(clause)+offset*2)
	n := offset
	for i := 0; i < len(clause); i++ {
		if clause[i] == '?' {
			n++
			out = append(out, []byte(fmt.Sprintf("$%d", n))...)
			continue
		}
		out = append(out, clause[i])
	}
	return string(out)
}
