package jsonvalue

import "testing"

func TestParsePathSegmentKinds(t *testing.T) {
	p := ParsePath("orders[].items.*._keys")
	want := []SegmentKind{SegArray, SegKey, SegWildcard, SegKeys}
	if len(p.Segments) != len(want) {
		t.Fatalf("got %d segments, want %d", len(p.Segments), len(want))
	}
	for i, k := range want {
		if p.Segments[i].Kind != k {
			t.Fatalf("segment %d kind = %v, want %v", i, p.Segments[i].Kind, k)
		}
	}
	if p.Segments[0].Name != "orders" {
		t.Fatalf("array segment name = %q, want orders", p.Segments[0].Name)
	}
}

func TestMatchesAnyLeafMatch(t *testing.T) {
	paths := ParsePaths([]string{"users.name", "users.email"})
	if !MatchesAny(paths, []string{"users", "name"}) {
		t.Fatalf("expected leaf match for users.name")
	}
	if MatchesAny(paths, []string{"users", "secret"}) {
		t.Fatalf("expected no match for users.secret")
	}
}

func TestIsPrefixOfAny(t *testing.T) {
	paths := ParsePaths([]string{"a.b.c"})
	if !IsPrefixOfAny(paths, []string{"a"}) {
		t.Fatalf("expected a to be a viable prefix")
	}
	if !IsPrefixOfAny(paths, []string{"a", "b"}) {
		t.Fatalf("expected a.b to be a viable prefix")
	}
	if IsPrefixOfAny(paths, []string{"x"}) {
		t.Fatalf("expected x to not be a viable prefix")
	}
}

func TestBareKeysMatchesRoot(t *testing.T) {
	paths := ParsePaths([]string{"_keys"})
	if !MatchesAny(paths, nil) {
		t.Fatalf("expected bare _keys to match at root depth")
	}
	if MatchesAny(paths, []string{"a"}) {
		t.Fatalf("expected bare _keys to not match below root")
	}
}

func TestNestedKeysMatchesAtFieldDepth(t *testing.T) {
	paths := ParsePaths([]string{"meta._keys"})
	if MatchesAny(paths, nil) {
		t.Fatalf("expected meta._keys to not match at root")
	}
	if !IsPrefixOfAny(paths, nil) {
		t.Fatalf("expected root to be a viable prefix of meta._keys")
	}
	if !MatchesAny(paths, []string{"meta"}) {
		t.Fatalf("expected meta._keys to match at depth 1 (meta)")
	}
	if MatchesAny(paths, []string{"other"}) {
		t.Fatalf("expected meta._keys to not match sibling field")
	}
}

func TestWildcardMatchesEveryKey(t *testing.T) {
	paths := ParsePaths([]string{"*.id"})
	if !MatchesAny(paths, []string{"users", "id"}) {
		t.Fatalf("expected wildcard to match users.id")
	}
	if !MatchesAny(paths, []string{"orders", "id"}) {
		t.Fatalf("expected wildcard to match orders.id")
	}
	if MatchesAny(paths, []string{"orders", "total"}) {
		t.Fatalf("expected no match for orders.total")
	}
}
