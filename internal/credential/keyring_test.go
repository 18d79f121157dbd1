package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestResolve(t *testing.T) {
	t.Parallel()
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "slack", Data: []byte("xoxb-123")}})
	r := NewResolverFor(ring)

	cases := []struct {
		in, want string
		wantErr  bool
	}{
		{"plain-token", "plain-token", false},
		{"  spaced ", "spaced", false},
		{"", "", false},
		{"keyring:slack", "xoxb-123", false},
		{"keyring: slack ", "xoxb-123", false},
		{"keyring:missing", "", true},
		{"keyring:", "", true},
	}
	for _, tc := range cases {
		got, err := r.Resolve(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("Resolve(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveOpenFailure(t *testing.T) {
	t.Parallel()
	calls := 0
	want := errors.New("no backend")
	r := &Resolver{open: func() (keyring.Keyring, error) {
		calls++
		return nil, want
	}}
	if v, err := r.Resolve("literal"); err != nil || v != "literal" {
		t.Fatalf("literal should not open keyring: %q %v", v, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := r.Resolve("keyring:x"); !errors.Is(err, want) {
			t.Fatalf("err = %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("open called %d times", calls)
	}
}
