package versionresolver

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tabsdata/tabsdata/internal/domain"
)

// PoolStore implements Store against the shared Postgres pool.
type PoolStore struct {
	Pool *pgxpool.Pool
}

func scanDataVersion(rows pgx.Rows) (domain.DataVersion, error) {
	var dv domain.DataVersion
	err := rows.Scan(&dv.ID, &dv.TableID, &dv.TriggeredOn, &dv.Status)
	return dv, err
}

func (s *PoolStore) Newest(ctx context.Context, table string, at time.Time) (*domain.DataVersion, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, table_id, triggered_on, status FROM data_versions
		WHERE table_id = $1 AND status = 'active' AND triggered_on <= $2
		ORDER BY triggered_on DESC LIMIT 1
	`, table, at)
	var dv domain.DataVersion
	if err := row.Scan(&dv.ID, &dv.TableID, &dv.TriggeredOn, &dv.Status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query newest data version: %w", err)
	}
	return &dv, nil
}

func (s *PoolStore) AtOffset(ctx context.Context, table string, at time.Time, offset int) (*domain.DataVersion, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, table_id, triggered_on, status FROM data_versions
		WHERE table_id = $1 AND status = 'active' AND triggered_on <= $2
		ORDER BY triggered_on DESC OFFSET $3 LIMIT 1
	`, table, at, offset)
	var dv domain.DataVersion
	if err := row.Scan(&dv.ID, &dv.TableID, &dv.TriggeredOn, &dv.Status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query data version at offset %d: %w", offset, err)
	}
	return &dv, nil
}

func (s *PoolStore) ByID(ctx context.Context, table string, ids []string) (map[string]domain.DataVersion, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, table_id, triggered_on, status FROM data_versions
		WHERE table_id = $1 AND id = ANY($2)
	`, table, ids)
	if err != nil {
		return nil, fmt.Errorf("query data versions by id: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.DataVersion, len(ids))
	for rows.Next() {
		dv, err := scanDataVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data version: %w", err)
		}
		out[dv.ID] = dv
	}
	return out, rows.Err()
}

func (s *PoolStore) WindowFromNewest(ctx context.Context, table string, at time.Time, from, to int) ([]domain.DataVersion, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, table_id, triggered_on, status FROM data_versions
		WHERE table_id = $1 AND status = 'active' AND triggered_on <= $2
		ORDER BY triggered_on DESC OFFSET $3 LIMIT $4
	`, table, at, from, to-from+1)
	if err != nil {
		return nil, fmt.Errorf("query data version window: %w", err)
	}
	defer rows.Close()

	var out []domain.DataVersion
	for rows.Next() {
		dv, err := scanDataVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data version: %w", err)
		}
		out = append(out, dv)
	}
	return out, rows.Err()
}

func (s *PoolStore) RelativeOffset(ctx context.Context, table string, at time.Time, id string) (int, bool, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM data_versions newer
		JOIN data_versions target ON target.id = $2 AND target.table_id = $1
		WHERE newer.table_id = $1 AND newer.status = 'active' AND newer.triggered_on <= $3
		  AND newer.triggered_on > target.triggered_on
	`, table, id, at)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, false, fmt.Errorf("query relative offset: %w", err)
	}

	exists := s.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM data_versions WHERE id = $1 AND table_id = $2)`, id, table)
	var ok bool
	if err := exists.Scan(&ok); err != nil {
		return 0, false, fmt.Errorf("check fixed version existence: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	return -count, true, nil
}
