package upstream

import "testing"

func TestSpecValidate(t *testing.T) {
	cases := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"valid", Spec{Name: "fs", Command: "npx"}, false},
		{"valid with underscores and dashes", Spec{Name: "my_fs-01", Command: "npx"}, false},
		{"empty name", Spec{Name: "", Command: "npx"}, true},
		{"space in name", Spec{Name: "my fs", Command: "npx"}, true},
		{"missing command", Spec{Name: "fs"}, true},
		{"name too long", Spec{Name: stringOfLen(101), Command: "npx"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
