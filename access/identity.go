package access

import "encoding/json"

// Identity store keys written by the login flow and read by the gate.
const (
	KeyAuthToken       = "authToken"
	KeyUserRole        = "userRole"
	KeyUserPermissions = "userPermissions"
)

// Identity is a consistent snapshot of the authenticated user, read in a single
// store access. The zero value is an anonymous visitor.
type Identity struct {
	AuthToken   string
	Role        Role
	Permissions PermissionSet
}

// NewIdentity builds an identity, dropping permissions unless role is admin.
func NewIdentity(token string, role Role, perms PermissionSet) Identity {
	if role != RoleAdmin {
		perms = PermissionSet{}
	}
	return Identity{
		AuthToken:   token,
		Role:        role,
		Permissions: perms,
	}
}

// HasToken reports whether an auth token is present. The token is not validated.
func (i Identity) HasToken() bool {
	return i.AuthToken != ""
}

// HasRole reports whether a known role is present.
func (i Identity) HasRole() bool {
	return i.Role != ""
}

// Record holds the raw values stored under the identity keys.
// UserPermissions is the JSON-encoded list of permission keys.
type Record struct {
	AuthToken       string
	UserRole        string
	UserPermissions string
}

// RecordFromMap reads a Record from a key/value view of the store.
func RecordFromMap(values map[string]string) Record {
	return Record{
		AuthToken:       values[KeyAuthToken],
		UserRole:        values[KeyUserRole],
		UserPermissions: values[KeyUserPermissions],
	}
}

// Map returns the record as key/value pairs, omitting empty values.
func (r Record) Map() map[string]string {
	out := make(map[string]string, 3)
	if r.AuthToken != "" {
		out[KeyAuthToken] = r.AuthToken
	}
	if r.UserRole != "" {
		out[KeyUserRole] = r.UserRole
	}
	if r.UserPermissions != "" {
		out[KeyUserPermissions] = r.UserPermissions
	}
	return out
}

// NewRecord encodes an identity for storage.
func NewRecord(token string, role Role, perms []Permission) Record {
	rec := Record{
		AuthToken: token,
		UserRole:  string(role),
	}
	if role == RoleAdmin && len(perms) > 0 {
		rec.UserPermissions = EncodePermissions(perms)
	}
	return rec
}

// EncodePermissions renders permissions as a JSON list.
func EncodePermissions(perms []Permission) string {
	keys := make([]string, len(perms))
	for i, p := range perms {
		keys[i] = string(p)
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeIdentity is the read boundary of the identity store. It never fails:
// an unknown role becomes no role, an undecodable permission list becomes an
// empty set and unknown permission keys are dropped.
func DecodeIdentity(rec Record) Identity {
	role, _ := ParseRole(rec.UserRole)

	var perms PermissionSet
	if role == RoleAdmin {
		perms = DecodePermissions(rec.UserPermissions)
	}

	return NewIdentity(rec.AuthToken, role, perms)
}

// DecodePermissions parses a JSON list of permission keys. Malformed input
// yields an empty set.
func DecodePermissions(raw string) PermissionSet {
	if raw == "" {
		return PermissionSet{}
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return PermissionSet{}
	}

	perms := make([]Permission, 0, len(keys))
	for _, key := range keys {
		if p, ok := ParsePermission(key); ok {
			perms = append(perms, p)
		}
	}
	return NewPermissionSet(perms...)
}
