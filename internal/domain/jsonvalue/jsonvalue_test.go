package jsonvalue

import "testing"

func TestParsePreservesObjectKeyOrder(t *testing.T) {
	v, err := Parse([]byte(`{"z":1,"a":2,"m":3}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if v.Kind != KindObject {
		t.Fatalf("Kind = %v, want KindObject", v.Kind)
	}
	keys := v.Object.Keys()
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestMarshalRoundTripsNestedStructure(t *testing.T) {
	raw := `{"name":"x","tags":["a","b"],"meta":{"count":3,"ok":true,"nil":null}}`
	v, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	v2, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	name, _ := v2.Object.Get("name")
	if name.String != "x" {
		t.Fatalf("name = %q, want x", name.String)
	}
	meta, _ := v2.Object.Get("meta")
	count, _ := meta.Object.Get("count")
	if count.Number.String() != "3" {
		t.Fatalf("count = %q, want 3", count.Number.String())
	}
}

func TestNumberPreservesPrecision(t *testing.T) {
	v, err := Parse([]byte(`{"big":123456789012345678}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	big, _ := v.Object.Get("big")
	if big.Number.String() != "123456789012345678" {
		t.Fatalf("big = %q, want exact digits preserved", big.Number.String())
	}
}
