// Package authz answers "who is asking" for handlers that sit behind the
// gate middleware.
package authz

import (
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/domain/models"
)

// UserCtx returns the caller's role and identity and whether they are signed
// in with a resolved role. A session that is still resolving or has failed
// reports ok=false.
func UserCtx(r *http.Request) (role models.Role, id identity.Identity, ok bool) {
	s := auth.CurrentState(r)
	if !s.SignedIn() {
		return "", identity.Identity{}, false
	}
	return s.Role, *s.Identity, true
}

// IsSuperAdmin reports whether the caller is a signed-in superadmin.
func IsSuperAdmin(r *http.Request) bool {
	return auth.CurrentState(r).IsSuperadmin()
}

// ViewerID returns the caller's principal id, or "".
func ViewerID(r *http.Request) string {
	_, id, ok := UserCtx(r)
	if !ok {
		return ""
	}
	return id.ID
}
