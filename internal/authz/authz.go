// Package authz implements the ownership policy that gates every read and
// mutation: a principal may touch a record only when the record's root
// project belongs to them, unless the principal is privileged.
package authz

type Decision int

const (
	Deny Decision = iota
	Allow
)

// Principal is the authenticated user a request acts as.
type Principal struct {
	ID        int64
	Staff     bool
	Superuser bool
}

// Owned is implemented by entities whose root-project owner can be resolved
// by walking parent links (task -> project, subtask -> task -> project).
// ok is false when the chain could not be resolved.
type Owned interface {
	Owner() (id int64, ok bool)
}

// Privileged reports whether the principal bypasses ownership checks
// entirely. Both flags are required.
func Privileged(p Principal) bool {
	return p.Staff && p.Superuser
}

// Authorize decides whether the principal may act on the entity. A broken
// ownership chain denies: an orphaned record is invisible to everyone but
// privileged principals.
func Authorize(p Principal, entity Owned) Decision {
	if Privileged(p) {
		return Allow
	}
	owner, ok := entity.Owner()
	if !ok || owner != p.ID {
		return Deny
	}
	return Allow
}
