package normalize

import "testing"

func TestEmail(t *testing.T) {
	in := "  John.DOE@Example.COM  "
	want := "john.doe@example.com"
	got := Email(in)
	if got != want {
		t.Fatalf("Normalize.Email(%q) = %q, want %q", in, got, want)
	}
}

func TestUsername(t *testing.T) {
	cases := map[string]string{
		"  Ada   Lovelace ": "Ada Lovelace",
		"bob":               "bob",
		"   ":               "",
	}
	for in, want := range cases {
		if got := Username(in); got != want {
			t.Fatalf("Normalize.Username(%q) = %q, want %q", in, got, want)
		}
	}
}
