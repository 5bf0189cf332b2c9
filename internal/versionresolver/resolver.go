// Package versionresolver implements the version resolver (spec
// component C6): it turns a (table_id, versions, triggered_on)
// fingerprint into the data versions the caller actually meant,
// following the None/Single/List/Range semantics of domain.Versions.
package versionresolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tabsdata/tabsdata/internal/domain"
)

// Store is the persistence surface the resolver needs. A production
// Resolver is backed by *PoolStore (pgx); tests substitute a fake.
type Store interface {
	// Newest returns the newest active version of table at or before at,
	// or nil if none exists.
	Newest(ctx context.Context, table string, at time.Time) (*domain.DataVersion, error)
	// AtOffset returns the (offset+1)-th newest active version at or
	// before at (offset 0 = newest), or nil if history is shorter.
	AtOffset(ctx context.Context, table string, at time.Time, offset int) (*domain.DataVersion, error)
	// ByID batches a lookup of specific version ids. Missing ids are
	// simply absent from the result map.
	ByID(ctx context.Context, table string, ids []string) (map[string]domain.DataVersion, error)
	// WindowFromNewest returns active versions at or before at, ordered
	// newest-first, skipping `from` positions and returning up to
	// `from`-to `to` inclusive (from <= to, both >= 0).
	WindowFromNewest(ctx context.Context, table string, at time.Time, from, to int) ([]domain.DataVersion, error)
	// RelativeOffset returns the Head offset (<= 0, 0 = newest) of a
	// Fixed version id within table's active history at or before at.
	RelativeOffset(ctx context.Context, table string, at time.Time, id string) (int, bool, error)
}

// Resolver implements the C6 algorithm over a Store.
type Resolver struct {
	store Store
}

func New(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve dispatches on versions.Kind and returns a result slice whose
// length invariant is documented per-case in spec §4.6/§8.
func (r *Resolver) Resolve(ctx context.Context, table string, versions domain.Versions, at time.Time) ([]*domain.DataVersion, error) {
	switch versions.Kind {
	case domain.VersionsNone:
		v, err := r.store.Newest(ctx, table, at)
		if err != nil {
			return nil, err
		}
		return []*domain.DataVersion{v}, nil

	case domain.VersionsSingle:
		return r.resolveSingle(ctx, table, versions.Value, at)

	case domain.VersionsList:
		return r.resolveList(ctx, table, versions.List, at)

	case domain.VersionsRange:
		return r.resolveRange(ctx, table, versions.From, versions.To, at)

	default:
		return nil, fmt.Errorf("unknown versions kind %v", versions.Kind)
	}
}

func (r *Resolver) resolveSingle(ctx context.Context, table string, v domain.Version, at time.Time) ([]*domain.DataVersion, error) {
	switch v.Kind {
	case domain.VersionHead:
		dv, err := r.store.AtOffset(ctx, table, at, -v.K)
		if err != nil {
			return nil, err
		}
		return []*domain.DataVersion{dv}, nil
	default: // Fixed
		rows, err := r.store.ByID(ctx, table, []string{v.ID})
		if err != nil {
			return nil, err
		}
		dv, ok := rows[v.ID]
		if !ok {
			return nil, &FixedTableDataVersionsNotFound{IDs: []string{v.ID}}
		}
		return []*domain.DataVersion{&dv}, nil
	}
}

func (r *Resolver) resolveList(ctx context.Context, table string, versions []domain.Version, at time.Time) ([]*domain.DataVersion, error) {
	var fixedIDs []string
	minOffset, maxOffset := 0, 0
	hasHead := false
	for _, v := range versions {
		if v.Kind == domain.VersionFixed {
			fixedIDs = append(fixedIDs, v.ID)
			continue
		}
		offset := -v.K
		if !hasHead || offset < minOffset {
			minOffset = offset
		}
		if !hasHead || offset > maxOffset {
			maxOffset = offset
		}
		hasHead = true
	}

	fixedRows := map[string]domain.DataVersion{}
	if len(fixedIDs) > 0 {
		rows, err := r.store.ByID(ctx, table, fixedIDs)
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, id := range fixedIDs {
			if dv, ok := rows[id]; ok {
				fixedRows[id] = dv
			} else {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return nil, &FixedTableDataVersionsNotFound{IDs: missing}
		}
	}

	headByOffset := map[int]domain.DataVersion{}
	if hasHead {
		window, err := r.store.WindowFromNewest(ctx, table, at, minOffset, maxOffset)
		if err != nil {
			return nil, err
		}
		for i, dv := range window {
			headByOffset[minOffset+i] = dv
		}
	}

	return reconstructList(versions, fixedRows, headByOffset), nil
}

// reconstructList rebuilds the position-preserving result vector from
// the two batched lookups. A head offset beyond the fetched window
// yields nil at that position, never an error.
func reconstructList(versions []domain.Version, fixedRows map[string]domain.DataVersion, headByOffset map[int]domain.DataVersion) []*domain.DataVersion {
	out := make([]*domain.DataVersion, len(versions))
	for i, v := range versions {
		if v.Kind == domain.VersionFixed {
			if dv, ok := fixedRows[v.ID]; ok {
				cp := dv
				out[i] = &cp
			}
			continue
		}
		if dv, ok := headByOffset[-v.K]; ok {
			cp := dv
			out[i] = &cp
		}
	}
	return out
}

func (r *Resolver) resolveRange(ctx context.Context, table string, from, to domain.Version, at time.Time) ([]*domain.DataVersion, error) {
	var missing []string
	var nf *FixedTableDataVersionsNotFound
	fromRel, err := r.relativeOffset(ctx, table, from, at)
	if errors.As(err, &nf) {
		missing = append(missing, nf.IDs...)
	} else if err != nil {
		return nil, err
	}
	toRel, err := r.relativeOffset(ctx, table, to, at)
	if errors.As(err, &nf) {
		missing = append(missing, nf.IDs...)
	} else if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, &FixedTableDataVersionsNotFound{IDs: missing}
	}
	if fromRel > toRel {
		return []*domain.DataVersion{}, nil
	}

	window, err := r.store.WindowFromNewest(ctx, table, at, -toRel, -fromRel)
	if err != nil {
		return nil, err
	}
	return reconstructRange(window, toRel-fromRel+1), nil
}

// relativeOffset resolves an endpoint to its Head-style offset (<= 0,
// 0 = newest). A missing Fixed endpoint yields
// FixedTableDataVersionsNotFound; resolveRange aggregates both
// endpoints' misses into one such error.
func (r *Resolver) relativeOffset(ctx context.Context, table string, v domain.Version, at time.Time) (int, error) {
	if v.Kind == domain.VersionHead {
		return v.K, nil
	}
	offset, ok, err := r.store.RelativeOffset(ctx, table, at, v.ID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &FixedTableDataVersionsNotFound{IDs: []string{v.ID}}
	}
	return offset, nil
}

// reconstructRange reverses WindowFromNewest's newest-first rows into
// chronological (oldest-first) order and pads the tail with nil when
// fewer rows exist than the requested span.
func reconstructRange(window []domain.DataVersion, want int) []*domain.DataVersion {
	out := make([]*domain.DataVersion, want)
	n := len(window)
	for i := 0; i < n && i < want; i++ {
		cp := window[n-1-i]
		out[i] = &cp
	}
	return out
}
