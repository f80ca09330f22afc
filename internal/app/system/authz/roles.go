package authz

import (
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/normalize"
	"github.com/dalemusser/admitdesk/internal/domain/models"
)

// HasAnyRole reports whether the caller has any of the given roles.
// Returns false if the caller is not signed in.
func HasAnyRole(r *http.Request, roles ...models.Role) bool {
	role, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if string(role) == normalize.Role(string(want)) {
			return true
		}
	}
	return false
}

// CanWriteConversation reports whether the caller may post into the
// conversation of principal target: their own, or any as a superadmin.
func CanWriteConversation(r *http.Request, target string) bool {
	role, id, ok := UserCtx(r)
	if !ok || target == "" {
		return false
	}
	return role == models.RoleSuperadmin || id.ID == target
}
