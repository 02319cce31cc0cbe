package permission

import (
	"context"

	"github.com/coreframe/coreframe/internal/identity"
)

// Predicate is a transport-agnostic description of the restriction a `list`
// operation must apply to cover rules (a), (b), (d)-(i) of spec §4.B. It
// deliberately does NOT expand rule (j) (reference inheritance) — that is
// the documented limitation of §9: list results are a conservative
// superset, and callers that need exact semantics post-filter through
// Check.
type Predicate struct {
	// AllowAll is true for ROOT: no restriction applies.
	AllowAll bool
	// Principal is the querying principal's ID (rule g).
	Principal UUID
	// ExcludeCreatedBy lists principals whose records must never appear
	// (ROOT-owned records, rule d).
	ExcludeCreatedBy []UUID
	// SystemOwnerViewOnly lists principals (SYSTEM, TEMPLATE) whose records
	// are visible at level <= the level being filtered for, without an
	// ownership/grant match (rules e, f).
	SystemOwnerViewOnly []UUID
	// TeamIDs lists every team the principal can reach via an
	// enabled, non-expired membership whose role dominates the floor role
	// for the requested level (rule h), already hierarchy-expanded.
	TeamIDs []UUID
	// GrantedResourceIDs lists resource IDs for which an explicit,
	// non-expired grant targeting the principal (or its teams/roles) covers
	// the requested level (rule i).
	GrantedResourceIDs []UUID
	// Level is the access level the predicate was built for, so a Store can
	// decide whether SystemOwnerViewOnly applies (only for level <= VIEW,
	// except full access for the system principals themselves).
	Level AccessLevel
}

// Filter builds the conservative-superset Predicate for principal at level
// against kind (spec §4.B operation 2).
func (e *Engine) Filter(ctx context.Context, principal identity.Principal, kind string, level AccessLevel) (Predicate, error) {
	pid := principal.ID()
	if e.SystemIDs.IsRoot(pid) {
		return Predicate{AllowAll: true, Principal: pid, Level: level}, nil
	}

	pred := Predicate{
		Principal:           pid,
		ExcludeCreatedBy:    []UUID{e.SystemIDs.Root},
		SystemOwnerViewOnly: []UUID{e.SystemIDs.System, e.SystemIDs.Template},
		Level:               level,
	}

	floorRole, ok := e.Hierarchy.RoleByName(RoleFloor(level))
	if ok {
		seen := map[UUID]struct{}{}
		for _, m := range principal.TeamMemberships() {
			if !m.Active(e.now()) {
				continue
			}
			if !e.Hierarchy.RoleDominates(m.RoleID, floorRole.ID) {
				continue
			}
			for _, ancestor := range e.Hierarchy.TeamAncestors(m.TeamID) {
				if _, dup := seen[ancestor]; dup {
					continue
				}
				seen[ancestor] = struct{}{}
				pred.TeamIDs = append(pred.TeamIDs, ancestor)
			}
		}
	}

	ids, err := e.grantedResourceIDs(ctx, principal, kind, level)
	if err != nil {
		return Predicate{}, err
	}
	pred.GrantedResourceIDs = ids

	return pred, nil
}

// grantedResourceIDs is a best-effort helper: production stores typically
// implement this restriction directly in SQL against the grants table
// rather than materializing IDs in Go; it is provided so a Store without
// its own grants join can still honor rule (i) via the returned Predicate.
func (e *Engine) grantedResourceIDs(ctx context.Context, principal identity.Principal, kind string, level AccessLevel) ([]UUID, error) {
	lister, ok := e.Grants.(interface {
		GrantsForSubjectKind(ctx context.Context, kind string, principal identity.Principal) ([]Grant, error)
	})
	if !ok {
		return nil, nil
	}
	grants, err := lister.GrantsForSubjectKind(ctx, kind, principal)
	if err != nil {
		return nil, err
	}
	now := e.now()
	var ids []UUID
	for _, g := range grants {
		if !g.Active(now) || !g.Allows(level) {
			continue
		}
		if !e.subjectMatches(principal, g.Subject, principal.ID()) {
			continue
		}
		ids = append(ids, g.ResourceID)
	}
	return ids, nil
}
