package authz

import "testing"

type ownedBy struct {
	id int64
	ok bool
}

func (o ownedBy) Owner() (int64, bool) { return o.id, o.ok }

func TestPrivilegedRequiresBothFlags(t *testing.T) {
	cases := []struct {
		name string
		p    Principal
		want bool
	}{
		{"regular", Principal{ID: 1}, false},
		{"staff only", Principal{ID: 1, Staff: true}, false},
		{"superuser only", Principal{ID: 1, Superuser: true}, false},
		{"staff and superuser", Principal{ID: 1, Staff: true, Superuser: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Privileged(tc.p); got != tc.want {
				t.Fatalf("Privileged(%+v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name   string
		p      Principal
		entity Owned
		want   Decision
	}{
		{"owner", Principal{ID: 7}, ownedBy{id: 7, ok: true}, Allow},
		{"foreign owner", Principal{ID: 7}, ownedBy{id: 8, ok: true}, Deny},
		{"broken chain", Principal{ID: 7}, ownedBy{ok: false}, Deny},
		{"privileged bypasses ownership", Principal{ID: 99, Staff: true, Superuser: true}, ownedBy{id: 7, ok: true}, Allow},
		{"privileged bypasses broken chain", Principal{ID: 99, Staff: true, Superuser: true}, ownedBy{ok: false}, Allow},
		{"staff alone does not bypass", Principal{ID: 99, Staff: true}, ownedBy{id: 7, ok: true}, Deny},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.p, tc.entity); got != tc.want {
				t.Fatalf("Authorize(%+v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}
