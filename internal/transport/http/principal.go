package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/coreframe/coreframe/internal/identity"
	"github.com/coreframe/coreframe/internal/platform/httpx"
	"github.com/coreframe/coreframe/internal/shared"
)

// PrincipalResolver resolves the acting identity.Principal for an inbound
// request. Authentication/session issuance is out of scope (spec §1): the
// transport layer only needs a principal already established upstream, so
// production wiring and tests each supply their own resolver.
type PrincipalResolver interface {
	Resolve(r *http.Request) (identity.Principal, error)
}

// PrincipalResolverFunc adapts a plain function to a PrincipalResolver.
type PrincipalResolverFunc func(r *http.Request) (identity.Principal, error)

// Resolve calls f.
func (f PrincipalResolverFunc) Resolve(r *http.Request) (identity.Principal, error) { return f(r) }

// HeaderPrincipalResolver trusts an upstream gateway to have already
// authenticated the caller and to forward the resulting identity as
// headers: X-Principal-ID (required UUID) and zero or more
// X-Team-Membership headers of the form "team_id:role_id" (spec §3
// Principal's team_memberships; enabled and non-expiring, since a header
// carries no timestamp).
type HeaderPrincipalResolver struct{}

// Resolve implements PrincipalResolver.
func (HeaderPrincipalResolver) Resolve(r *http.Request) (identity.Principal, error) {
	raw := r.Header.Get("X-Principal-ID")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	var memberships []identity.TeamMembership
	for _, entry := range r.Header.Values("X-Team-Membership") {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		teamID, terr := uuid.Parse(strings.TrimSpace(parts[0]))
		roleID, rerr := uuid.Parse(strings.TrimSpace(parts[1]))
		if terr != nil || rerr != nil {
			continue
		}
		memberships = append(memberships, identity.TeamMembership{TeamID: teamID, RoleID: roleID, Enabled: true})
	}
	return identity.SimplePrincipal{PrincipalID: id, Memberships: memberships}, nil
}

// PrincipalMiddleware resolves the acting principal via resolver and
// attaches it to the request context (shared.ContextWithPrincipal). A
// resolver error fails the request with 401; a nil principal is left for
// each handler to reject, since some routes may allow anonymous access in
// the future.
func PrincipalMiddleware(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolver.Resolve(r)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "could not resolve principal")
				return
			}
			if principal != nil {
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}
