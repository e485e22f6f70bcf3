package access

// PermissionSet is an ordered, duplicate-free sequence of permissions.
// Insertion order is kept because the fallback redirect picks the first
// permission that maps to a route.
type PermissionSet struct {
	items []Permission
}

// NewPermissionSet builds a set from perms, keeping the first occurrence of duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s = s.add(p)
	}
	return s
}

func (s PermissionSet) add(p Permission) PermissionSet {
	if p == "" || s.Contains(p) {
		return s
	}
	items := make([]Permission, len(s.items), len(s.items)+1)
	copy(items, s.items)
	return PermissionSet{items: append(items, p)}
}

// Contains reports whether p is in the set.
func (s PermissionSet) Contains(p Permission) bool {
	for _, item := range s.items {
		if item == p {
			return true
		}
	}
	return false
}

// Len returns the number of permissions.
func (s PermissionSet) Len() int {
	return len(s.items)
}

// Slice returns a copy of the permissions in insertion order.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, len(s.items))
	copy(out, s.items)
	return out
}

// Strings returns the permission keys in insertion order.
func (s PermissionSet) Strings() []string {
	out := make([]string, len(s.items))
	for i, p := range s.items {
		out[i] = string(p)
	}
	return out
}
