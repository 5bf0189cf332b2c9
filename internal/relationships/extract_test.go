package relationships

import (
	"context"
	"errors"
	"testing"

	"github.com/tabsdata/tabsdata/internal/domain"
)

type fakeCatalog struct {
	entries map[domain.TableRef]CatalogEntry
}

func (f *fakeCatalog) LookupTables(_ context.Context, refs []domain.TableRef) (map[domain.TableRef]CatalogEntry, error) {
	out := make(map[domain.TableRef]CatalogEntry)
	for _, r := range refs {
		if e, ok := f.entries[r]; ok {
			out[r] = e
		}
	}
	return out, nil
}

func TestParseVersions(t *testing.T) {
	tests := []struct {
		syntax string
		want   domain.Versions
	}{
		{"HEAD", domain.SingleVersion(domain.Head(0))},
		{"HEAD~1", domain.SingleVersion(domain.Head(-1))},
		{"id:abc123", domain.SingleVersion(domain.Fixed("abc123"))},
		{"HEAD,HEAD~1", domain.ListVersions([]domain.Version{domain.Head(0), domain.Head(-1)})},
		{"HEAD~3..HEAD", domain.RangeVersions(domain.Head(-3), domain.Head(0))},
	}
	for _, tt := range tests {
		t.Run(tt.syntax, func(t *testing.T) {
			got, err := ParseVersions(tt.syntax)
			if err != nil {
				t.Fatalf("ParseVersions(%q) error = %v", tt.syntax, err)
			}
			if got.Kind != tt.want.Kind {
				t.Fatalf("ParseVersions(%q) kind = %v, want %v", tt.syntax, got.Kind, tt.want.Kind)
			}
		})
	}
}

func TestParseDependency(t *testing.T) {
	dep, err := ParseDependency("sales/orders@HEAD~1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep.Ref.Collection != "sales" || dep.Ref.Table != "orders" {
		t.Fatalf("unexpected ref: %+v", dep.Ref)
	}
	if dep.Versions.Kind != domain.VersionsSingle || dep.Versions.Value != domain.Head(-1) {
		t.Fatalf("unexpected versions: %+v", dep.Versions)
	}
}

func TestParseDependency_DefaultsCollection(t *testing.T) {
	dep, err := ParseDependency("orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dep.Ref.Collection != "" {
		t.Fatalf("expected empty collection before qualification, got %q", dep.Ref.Collection)
	}
}

func TestParseTrigger_RejectsVersions(t *testing.T) {
	_, err := ParseTrigger("sales/orders@HEAD")
	var invalid *InvalidDescriptorError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDescriptorError, got %v", err)
	}
}

func TestExtract_ImplicitTriggersDerivedFromDependencies(t *testing.T) {
	catalog := &fakeCatalog{entries: map[domain.TableRef]CatalogEntry{
		{Collection: "sales", Table: "orders"}:  {CollectionName: "sales", CollectionID: "c1", DatasetName: "ds", DatasetID: "d1", Table: "orders"},
		{Collection: "sales", Table: "summary"}: {CollectionName: "sales", CollectionID: "c1", DatasetName: "ds", DatasetID: "d1", Table: "summary"},
	}}
	produces := []domain.TableRef{{Collection: "sales", Table: "summary"}}
	deps, triggers, err := Extract(context.Background(), catalog, "sales",
		[]string{"orders", "summary@HEAD"}, nil, false, produces)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(deps))
	}
	if len(triggers) != 1 || triggers[0].Table != "orders" {
		t.Fatalf("expected derived trigger on orders only (own table excluded), got %+v", triggers)
	}
}

func TestExtract_ExplicitEmptyTriggersOverridesDerivation(t *testing.T) {
	catalog := &fakeCatalog{entries: map[domain.TableRef]CatalogEntry{
		{Collection: "sales", Table: "orders"}: {CollectionName: "sales", CollectionID: "c1", Table: "orders"},
	}}
	_, triggers, err := Extract(context.Background(), catalog, "sales",
		[]string{"orders"}, []string{}, true, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(triggers) != 0 {
		t.Fatalf("expected no triggers when explicit list is empty, got %+v", triggers)
	}
}

func TestExtract_MissingTableFails(t *testing.T) {
	catalog := &fakeCatalog{entries: map[domain.TableRef]CatalogEntry{}}
	_, _, err := Extract(context.Background(), catalog, "sales", []string{"orders"}, nil, false, nil)
	var notFound *TablesNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected TablesNotFound, got %v", err)
	}
}

func TestExtract_PrivateTableCrossCollectionFails(t *testing.T) {
	catalog := &fakeCatalog{entries: map[domain.TableRef]CatalogEntry{
		{Collection: "marketing", Table: "_internal"}: {CollectionName: "marketing", CollectionID: "c2", Table: "_internal"},
	}}
	_, _, err := Extract(context.Background(), catalog, "sales", []string{"marketing/_internal"}, nil, false, nil)
	var private *PrivateTableError
	if !errors.As(err, &private) {
		t.Fatalf("expected PrivateTableError, got %v", err)
	}
}

func TestExtract_PrivateTableSameCollectionAllowed(t *testing.T) {
	catalog := &fakeCatalog{entries: map[domain.TableRef]CatalogEntry{
		{Collection: "sales", Table: "_internal"}: {CollectionName: "sales", CollectionID: "c1", Table: "_internal"},
	}}
	deps, _, err := Extract(context.Background(), catalog, "sales", []string{"_internal"}, nil, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(deps))
	}
}
