package query

import "testing"

func TestTermBuilder(t *testing.T) {
	q := NewTerm("title", "hello")
	if q.Field != "title" || q.Value != "hello" {
		t.Fatalf("NewTerm = %+v", q)
	}
	if q.Boost() != 1.0 {
		t.Fatalf("default Boost() = %v, want 1.0", q.Boost())
	}
	q.WithBoost(2.5)
	if q.Boost() != 2.5 {
		t.Fatalf("Boost() after WithBoost = %v, want 2.5", q.Boost())
	}
}

func TestPhraseBuilder(t *testing.T) {
	q := NewPhrase("body", []string{"quick", "brown", "fox"})
	if len(q.Terms) != 3 || q.Slop != 0 {
		t.Fatalf("NewPhrase = %+v", q)
	}
	q.WithSlop(2)
	if q.Slop != 2 {
		t.Fatalf("Slop after WithSlop = %d, want 2", q.Slop)
	}
}

func TestBoolBuilderAccumulatesClauses(t *testing.T) {
	must := NewTerm("a", "1")
	should := NewTerm("b", "2")
	mustNot := NewTerm("c", "3")
	filter := NewTerm("d", "4")

	q := NewBool().AddMust(must).AddShould(should).AddMustNot(mustNot).AddFilter(filter)
	if len(q.Must) != 1 || q.Must[0] != Query(must) {
		t.Fatalf("Must = %+v", q.Must)
	}
	if len(q.Should) != 1 || len(q.MustNot) != 1 || len(q.Filter) != 1 {
		t.Fatalf("Bool clauses = %+v", q)
	}
	if q.MinimumShouldMatch != 1 {
		t.Fatalf("default MinimumShouldMatch = %d, want 1", q.MinimumShouldMatch)
	}
	q.WithMinimumShouldMatch(2)
	if q.MinimumShouldMatch != 2 {
		t.Fatalf("MinimumShouldMatch after With = %d, want 2", q.MinimumShouldMatch)
	}
}

func TestRangeBuilderNumeric(t *testing.T) {
	q := NewRange("price").WithGte(10).WithLt(100)
	if q.IsDate {
		t.Fatal("numeric range should not set IsDate")
	}
	if q.Gte == nil || *q.Gte != 10 {
		t.Fatalf("Gte = %v, want 10", q.Gte)
	}
	if q.Lt == nil || *q.Lt != 100 {
		t.Fatalf("Lt = %v, want 100", q.Lt)
	}
	if q.Gt != nil || q.Lte != nil {
		t.Fatal("unset bounds should remain nil")
	}
}

func TestRangeBuilderDate(t *testing.T) {
	q := NewRange("created").WithDateGte(1000).WithDateLte(2000)
	if !q.IsDate {
		t.Fatal("date range should set IsDate")
	}
	if q.DateGte == nil || *q.DateGte != 1000 {
		t.Fatalf("DateGte = %v, want 1000", q.DateGte)
	}
	if q.DateLte == nil || *q.DateLte != 2000 {
		t.Fatalf("DateLte = %v, want 2000", q.DateLte)
	}
}

func TestPrefixAndWildcardBuilders(t *testing.T) {
	p := NewPrefix("title", "hel")
	if p.Field != "title" || p.Prefix != "hel" {
		t.Fatalf("NewPrefix = %+v", p)
	}
	w := NewWildcard("title", "h*o")
	if w.Pattern != "h*o" {
		t.Fatalf("NewWildcard = %+v", w)
	}
}

func TestFuzzyBuilderDefaultsAndOverrides(t *testing.T) {
	f := NewFuzzy("title", "kitten")
	if f.MaxEditDistance != 1 {
		t.Fatalf("default MaxEditDistance = %d, want 1", f.MaxEditDistance)
	}
	f.WithMaxEditDistance(2).WithPrefixLength(3)
	if f.MaxEditDistance != 2 || f.PrefixLength != 3 {
		t.Fatalf("Fuzzy after With* = %+v", f)
	}
}

func TestMatchAllHasUnitBoost(t *testing.T) {
	q := NewMatchAll()
	if q.Boost() != 1.0 {
		t.Fatalf("MatchAll Boost() = %v, want 1.0", q.Boost())
	}
}
