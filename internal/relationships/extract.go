package relationships

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabsdata/tabsdata/internal/domain"
)

// CatalogEntry is one row of the tables catalog relevant to resolution.
type CatalogEntry struct {
	CollectionName string
	CollectionID   string
	DatasetName    string
	DatasetID      string
	Table          string
	Private        bool
}

// Catalog loads table metadata by (collection, table) pairs. Satisfied
// by a thin wrapper over *store.PostgresStore.
type Catalog interface {
	LookupTables(ctx context.Context, refs []domain.TableRef) (map[domain.TableRef]CatalogEntry, error)
}

// TablesNotFound is returned when a dependency or trigger references a
// table absent from the catalog.
type TablesNotFound struct {
	Refs []domain.TableRef
}

func (e *TablesNotFound) Error() string {
	names := make([]string, len(e.Refs))
	for i, r := range e.Refs {
		names[i] = refString(r)
	}
	return fmt.Sprintf("tables not found: %s", strings.Join(names, ", "))
}

// PrivateTableError is returned when a private table (name starting
// with "_") is referenced from outside its own collection.
type PrivateTableError struct {
	Ref             domain.TableRef
	OwnCollection   string
	UsingCollection string
}

func (e *PrivateTableError) Error() string {
	return fmt.Sprintf("table %s is private to collection %s, cannot be referenced from %s",
		e.Ref.Table, e.OwnCollection, e.UsingCollection)
}

func refString(r domain.TableRef) string {
	if r.Collection == "" {
		return r.Table
	}
	return r.Collection + "/" + r.Table
}

// Extract runs spec §4.7's derivation and resolution: parse dependency
// and trigger descriptors, derive implicit triggers when none were
// declared explicitly, load the tables catalog, and enforce the
// private-table same-collection rule. ownCollection is the function's
// own collection, substituted for any descriptor that omits one.
func Extract(ctx context.Context, catalog Catalog, ownCollection string, dependencyDescriptors, triggerDescriptors []string, explicitTriggers bool, produces []domain.TableRef) ([]domain.ResolvedRef, []domain.ResolvedRef, error) {
	deps := make([]domain.Dependency, 0, len(dependencyDescriptors))
	for _, d := range dependencyDescriptors {
		parsed, err := ParseDependency(d)
		if err != nil {
			return nil, nil, err
		}
		parsed.Ref = qualify(parsed.Ref, ownCollection)
		deps = append(deps, parsed)
	}

	var triggers []domain.TriggerDescriptor
	if explicitTriggers {
		for _, t := range triggerDescriptors {
			parsed, err := ParseTrigger(t)
			if err != nil {
				return nil, nil, err
			}
			parsed.Ref = qualify(parsed.Ref, ownCollection)
			triggers = append(triggers, parsed)
		}
	} else {
		triggers = deriveTriggers(deps, produces)
	}

	allRefs := make([]domain.TableRef, 0, len(deps)+len(triggers))
	for _, d := range deps {
		allRefs = append(allRefs, d.Ref)
	}
	for _, t := range triggers {
		allRefs = append(allRefs, t.Ref)
	}

	entries, err := catalog.LookupTables(ctx, allRefs)
	if err != nil {
		return nil, nil, fmt.Errorf("load tables catalog: %w", err)
	}

	var missing []domain.TableRef
	for _, ref := range allRefs {
		if _, ok := entries[ref]; !ok {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &TablesNotFound{Refs: missing}
	}

	for _, ref := range allRefs {
		entry := entries[ref]
		if strings.HasPrefix(entry.Table, "_") && entry.CollectionName != ownCollection {
			return nil, nil, &PrivateTableError{Ref: ref, OwnCollection: entry.CollectionName, UsingCollection: ownCollection}
		}
	}

	resolvedDeps := make([]domain.ResolvedRef, 0, len(deps))
	for _, d := range deps {
		entry := entries[d.Ref]
		resolvedDeps = append(resolvedDeps, resolve(entry, d.Versions))
	}
	resolvedTriggers := make([]domain.ResolvedRef, 0, len(triggers))
	for _, t := range triggers {
		entry := entries[t.Ref]
		resolvedTriggers = append(resolvedTriggers, resolve(entry, domain.Versions{}))
	}
	return resolvedDeps, resolvedTriggers, nil
}

func qualify(ref domain.TableRef, ownCollection string) domain.TableRef {
	if ref.Collection == "" {
		ref.Collection = ownCollection
	}
	return ref
}

func resolve(entry CatalogEntry, versions domain.Versions) domain.ResolvedRef {
	return domain.ResolvedRef{
		CollectionName: entry.CollectionName,
		CollectionID:   entry.CollectionID,
		DatasetName:    entry.DatasetName,
		DatasetID:      entry.DatasetID,
		Table:          entry.Table,
		Versions:       versions,
	}
}

// deriveTriggers drops version info from dependencies, removes any
// entry whose table the function itself produces, then deduplicates,
// preserving first-seen order (spec §4.7 step 2).
func deriveTriggers(deps []domain.Dependency, produces []domain.TableRef) []domain.TriggerDescriptor {
	produced := make(map[domain.TableRef]struct{}, len(produces))
	for _, p := range produces {
		produced[p] = struct{}{}
	}

	seen := make(map[domain.TableRef]struct{})
	var triggers []domain.TriggerDescriptor
	for _, d := range deps {
		if _, ok := produced[d.Ref]; ok {
			continue
		}
		if _, ok := seen[d.Ref]; ok {
			continue
		}
		seen[d.Ref] = struct{}{}
		triggers = append(triggers, domain.TriggerDescriptor{Ref: d.Ref})
	}
	return triggers
}
