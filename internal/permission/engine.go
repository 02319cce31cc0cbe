package permission

import (
	"context"
	"errors"
	"time"

	"github.com/coreframe/coreframe/internal/identity"
)

// DeniedReason classifies why Check returned a denial.
type DeniedReason string

const (
	ReasonNone            DeniedReason = ""
	ReasonNotFound        DeniedReason = "not_found"
	ReasonSystemProtected DeniedReason = "system_protected"
	ReasonDenied          DeniedReason = "denied"
)

// Decision is the outcome of Check or CanCreate.
type Decision struct {
	Granted bool
	Reason  DeniedReason
}

func granted() Decision { return Decision{Granted: true} }
func denied(r DeniedReason) Decision { return Decision{Granted: false, Reason: r} }

// ErrCycle indicates a permission-reference cycle was detected while
// resolving reference inheritance (spec §4.B rule j "cycle detection by
// visited-set").
var ErrCycle = errors.New("permission: reference cycle detected")

// Clock is injectable for deterministic tests of expiry rules.
type Clock func() time.Time

// Engine evaluates the permission rule chain of spec §4.B.
type Engine struct {
	SystemIDs   identity.SystemIDs
	Hierarchy   *identity.Hierarchy
	Records     RecordLookup
	Grants      GrantStore
	Kinds       KindRegistry
	Now         Clock
}

// NewEngine constructs an Engine. now defaults to time.Now.
func NewEngine(sysIDs identity.SystemIDs, hierarchy *identity.Hierarchy, records RecordLookup, grants GrantStore, kinds KindRegistry) *Engine {
	return &Engine{SystemIDs: sysIDs, Hierarchy: hierarchy, Records: records, Grants: grants, Kinds: kinds, Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Check implements the rule chain (a)-(k) of spec §4.B, in order, returning
// on the first granting or terminally-denying rule.
func (e *Engine) Check(ctx context.Context, principal identity.Principal, kind string, id UUID, level AccessLevel) (Decision, error) {
	return e.check(ctx, principal, kind, id, level, map[refKey]struct{}{})
}

type refKey struct {
	kind string
	id   UUID
}

func (e *Engine) check(ctx context.Context, principal identity.Principal, kind string, id UUID, level AccessLevel, visited map[refKey]struct{}) (Decision, error) {
	pid := principal.ID()

	// (a) ROOT bypasses every check.
	if e.SystemIDs.IsRoot(pid) {
		return granted(), nil
	}

	record, ok, err := e.Records.Lookup(ctx, kind, id)
	if err != nil {
		return Decision{}, err
	}
	// (b) missing or soft-deleted, and principal isn't ROOT -> NotFound.
	if !ok || record.DeletedAt != nil {
		return denied(ReasonNotFound), nil
	}

	// (c) system kind, level above VIEW, principal not ROOT/SYSTEM -> denied.
	if policy, known := e.Kinds.Policy(kind); known && policy.System && level > View && !e.SystemIDs.IsSystem(pid) {
		return denied(ReasonSystemProtected), nil
	}

	// (d) created by ROOT and principal isn't ROOT -> denied.
	if e.SystemIDs.IsRoot(record.CreatedBy) {
		return denied(ReasonDenied), nil
	}

	// (e) created by SYSTEM.
	if e.SystemIDs.IsSystem(record.CreatedBy) {
		if level <= View {
			return granted(), nil
		}
		if e.SystemIDs.IsSystem(pid) {
			return granted(), nil
		}
		return denied(ReasonDenied), nil
	}

	// (f) created by TEMPLATE.
	if e.SystemIDs.IsTemplate(record.CreatedBy) {
		if templateBypassLevels[level] {
			return granted(), nil
		}
		if e.SystemIDs.IsSystem(pid) {
			return granted(), nil
		}
		return denied(ReasonDenied), nil
	}

	// (g) direct ownership.
	if record.UserID != nil && *record.UserID == pid {
		return granted(), nil
	}

	// (h) team membership with hierarchy + role dominance.
	if record.TeamID != nil {
		if e.teamGrants(principal, *record.TeamID, level) {
			return granted(), nil
		}
	}

	// (i) explicit, non-expired Permission grant.
	grantDecision, err := e.grantDecision(ctx, principal, kind, id, level)
	if err != nil {
		return Decision{}, err
	}
	if grantDecision {
		return granted(), nil
	}

	// (j) reference inheritance: ANY reference granting yields Granted.
	if len(record.References) > 0 {
		key := refKey{kind: kind, id: id}
		if _, seen := visited[key]; seen {
			return Decision{}, ErrCycle
		}
		visited[key] = struct{}{}
		for _, ref := range record.References {
			decision, err := e.check(ctx, principal, ref.Kind, ref.ID, level, visited)
			if err != nil {
				if errors.Is(err, ErrCycle) {
					continue
				}
				return Decision{}, err
			}
			if decision.Granted {
				return granted(), nil
			}
		}
	}

	// (k) otherwise denied.
	return denied(ReasonDenied), nil
}

// teamGrants implements rule (h): the principal belongs, via a non-expired
// enabled membership, to a team whose hierarchy contains record's team, and
// the principal's role in the nearest such membership dominates the floor
// role for level.
func (e *Engine) teamGrants(principal identity.Principal, recordTeam UUID, level AccessLevel) bool {
	floorRole, ok := e.Hierarchy.RoleByName(RoleFloor(level))
	if !ok {
		return false
	}
	now := e.now()
	var best *identity.TeamMembership
	for i := range principal.TeamMemberships() {
		m := principal.TeamMemberships()[i]
		if !m.Active(now) {
			continue
		}
		if !e.Hierarchy.TeamContains(m.TeamID, recordTeam) {
			continue
		}
		if best == nil {
			best = &m
			continue
		}
		// nearest ancestor: shorter chain from membership team to record team wins.
		if len(e.Hierarchy.TeamAncestors(m.TeamID)) < len(e.Hierarchy.TeamAncestors(best.TeamID)) {
			best = &m
		}
	}
	if best == nil {
		return false
	}
	return e.Hierarchy.RoleDominates(best.RoleID, floorRole.ID)
}

// grantDecision implements rule (i), applying the expires-earliest-first
// tie-break so the strongest still-valid grant wins.
func (e *Engine) grantDecision(ctx context.Context, principal identity.Principal, kind string, id UUID, level AccessLevel) (bool, error) {
	grants, err := e.Grants.GrantsFor(ctx, kind, id)
	if err != nil {
		return false, err
	}
	now := e.now()
	pid := principal.ID()
	for _, g := range grants {
		if !g.Active(now) {
			continue
		}
		if !e.subjectMatches(principal, g.Subject, pid) {
			continue
		}
		if g.Allows(level) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) subjectMatches(principal identity.Principal, subject Subject, pid UUID) bool {
	switch subject.Kind {
	case SubjectUser:
		return subject.ID == pid
	case SubjectTeam:
		for _, m := range principal.TeamMemberships() {
			if m.Active(e.now()) && m.TeamID == subject.ID {
				return true
			}
		}
		return false
	case SubjectRole:
		for _, m := range principal.TeamMemberships() {
			if m.Active(e.now()) && e.Hierarchy.RoleDominates(m.RoleID, subject.ID) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
