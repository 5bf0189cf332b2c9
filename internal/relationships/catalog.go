package relationships

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tabsdata/tabsdata/internal/domain"
)

// PoolCatalog resolves table references against the shared Postgres
// pool. It is the production Catalog implementation; tests substitute
// a map-backed fake instead.
type PoolCatalog struct {
	Pool *pgxpool.Pool
}

// LookupTables batches all distinct collections referenced and joins
// collections/datasets/tables in a single query per collection name
// set, matching the extractor's one-shot resolution step (spec §4.7
// step 3).
func (c *PoolCatalog) LookupTables(ctx context.Context, refs []domain.TableRef) (map[domain.TableRef]CatalogEntry, error) {
	collections := make(map[string]struct{})
	for _, r := range refs {
		collections[r.Collection] = struct{}{}
	}
	names := make([]string, 0, len(collections))
	for c := range collections {
		names = append(names, c)
	}

	rows, err := c.Pool.Query(ctx, `
		SELECT co.name, co.id, d.name, d.id, t.name, t.private
		FROM tables t
		JOIN collections co ON co.id = t.collection_id
		JOIN datasets d ON d.id = t.dataset_id
		WHERE co.name = ANY($1)
	`, names)
	if err != nil {
		return nil, fmt.Errorf("query tables catalog: %w", err)
	}
	defer rows.Close()

	byRef := make(map[domain.TableRef]CatalogEntry)
	for rows.Next() {
		var e CatalogEntry
		var collectionName string
		if err := rows.Scan(&collectionName, &e.CollectionID, &e.DatasetName, &e.DatasetID, &e.Table, &e.Private); err != nil {
			return nil, fmt.Errorf("scan table catalog row: %w", err)
		}
		e.CollectionName = collectionName
		byRef[domain.TableRef{Collection: collectionName, Table: e.Table}] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make(map[domain.TableRef]CatalogEntry, len(refs))
	for _, r := range refs {
		if e, ok := byRef[r]; ok {
			result[r] = e
		}
	}
	return result, nil
}
