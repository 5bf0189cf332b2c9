package sqlbuilder

import (
	"strings"
	"testing"
	"time"
)

type dataVersionDao struct{}

func (dataVersionDao) Table() string     { return "data_versions" }
func (dataVersionDao) Columns() []string { return []string{"id", "table_id", "triggered_on", "status"} }

func TestFindBy_EmptyGroupsInjectsGuard(t *testing.T) {
	query, args, err := FindBy(dataVersionDao{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "1 = 0") {
		t.Fatalf("expected guard clause in %q", query)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestFindBy_OrOfAnds(t *testing.T) {
	query, args, err := FindBy(dataVersionDao{}, Groups{
		{{Column: "table_id", Value: "t1"}, {Column: "status", Value: "active"}},
		{{Column: "table_id", Value: "t2"}, {Column: "status", Value: "active"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Count(query, "OR") != 1 {
		t.Fatalf("expected exactly one OR in %q", query)
	}
	if strings.Count(query, "AND") != 2 {
		t.Fatalf("expected two ANDs (one per group) in %q", query)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 bound args, got %d", len(args))
	}
}

func TestListBy_KeysetCursorNext(t *testing.T) {
	query, args, reversed, err := ListBy(dataVersionDao{}, nil, ListParams{
		OrderField: "triggered_on",
		NaturalKey: "id",
		After:      &Cursor{Field: "triggered_on", Value: time.Unix(100, 0), NaturalField: "id", NaturalValue: "v1"},
		Direction:  Next,
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reversed {
		t.Fatalf("expected reversed=false for Next direction")
	}
	if !strings.Contains(query, "ORDER BY triggered_on ASC, id ASC") {
		t.Fatalf("expected ascending order in %q", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 bound args (value, value, natural), got %d: %v", len(args), args)
	}
}

func TestListBy_PreviousReversesOrderAndFlagsReversed(t *testing.T) {
	query, _, reversed, err := ListBy(dataVersionDao{}, nil, ListParams{
		OrderField: "triggered_on",
		NaturalKey: "id",
		Direction:  Previous,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reversed {
		t.Fatalf("expected reversed=true for Previous direction")
	}
	if !strings.Contains(query, "ORDER BY triggered_on DESC, id DESC") {
		t.Fatalf("expected descending order in %q", query)
	}
}

func TestReverse(t *testing.T) {
	got := Reverse([]int{1, 2, 3})
	want := []int{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Reverse() = %v, want %v", got, want)
		}
	}
}

func TestListVersionsByAt_IncludesCTE(t *testing.T) {
	query, args, err := ListVersionsByAt(dataVersionDao{}, []string{"active"}, time.Unix(200, 0), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(query, "LATEST_VERSIONS_CTE") {
		t.Fatalf("expected CTE name in %q", query)
	}
	if !strings.Contains(query, "rnk = 1") {
		t.Fatalf("expected rank filter in %q", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 base args (at, states), got %d", len(args))
	}
}
