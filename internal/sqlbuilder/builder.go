package sqlbuilder

// Dao describes the table and column metadata the builder needs to
// assemble statements for one entity. Implementations are small value
// types declared alongside their domain struct (e.g. dataVersionDao).
type Dao interface {
	Table() string
	Columns() []string
}

// Insert emits a parameterized INSERT for dao, with values keyed by
// column name.
func Insert(dao Dao, values map[string]any) (string, []any, error) {
	return dialect.Insert(dao.Table()).SetMap(values).ToSql()
}

// SelectBy emits a SELECT of dao's columns restricted to a single
// AND-combined condition group, expecting at most one row.
func SelectBy(dao Dao, where Group) (string, []any, error) {
	return dialect.Select(dao.Columns()...).
		From(dao.Table()).
		Where(WhereClause(Groups{where})).
		ToSql()
}

// FindBy emits a SELECT restricted to an OR-of-ANDs condition set.
func FindBy(dao Dao, where Groups) (string, []any, error) {
	return dialect.Select(dao.Columns()...).
		From(dao.Table()).
		Where(WhereClause(where)).
		ToSql()
}

// UpdateBy emits an UPDATE setting the given columns, restricted to an
// OR-of-ANDs condition set.
func UpdateBy(dao Dao, set map[string]any, where Groups) (string, []any, error) {
	q := dialect.Update(dao.Table())
	for col, val := range set {
		q = q.Set(col, val)
	}
	return q.Where(WhereClause(where)).ToSql()
}

// DeleteBy emits a DELETE restricted to an OR-of-ANDs condition set.
func DeleteBy(dao Dao, where Groups) (string, []any, error) {
	return dialect.Delete(dao.Table()).
		Where(WhereClause(where)).
		ToSql()
}
