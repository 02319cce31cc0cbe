package permission

import (
	"context"

	"github.com/coreframe/coreframe/internal/identity"
)

// CanCreate implements spec §4.B's creation check. Unlike Check, reference
// inheritance here requires ALL declared references to grant access (the
// documented resolution of the ANY-vs-ALL ambiguity, spec §9): the single
// create_permission_reference must grant EDIT, every remaining reference
// must grant at least VIEW.
func (e *Engine) CanCreate(ctx context.Context, principal identity.Principal, kind string, draft Draft) (Decision, error) {
	pid := principal.ID()
	if e.SystemIDs.IsRoot(pid) {
		return granted(), nil
	}

	if policy, known := e.Kinds.Policy(kind); known && policy.System && !e.SystemIDs.IsSystem(pid) {
		return denied(ReasonSystemProtected), nil
	}

	for name, ref := range draft.References {
		level := View
		if name == draft.CreateReference {
			level = Edit
		}
		decision, err := e.Check(ctx, principal, ref.Kind, ref.ID, level)
		if err != nil {
			return Decision{}, err
		}
		if !decision.Granted {
			return denied(ReasonDenied), nil
		}
	}

	policy, _ := e.Kinds.Policy(kind)

	if policy.UserScoped {
		if draft.UserID != nil && *draft.UserID == pid {
			return granted(), nil
		}
		if !policy.TeamScoped {
			return denied(ReasonDenied), nil
		}
	}

	if policy.TeamScoped {
		if draft.TeamID == nil {
			return denied(ReasonDenied), nil
		}
		if e.teamGrants(principal, *draft.TeamID, Edit) {
			return granted(), nil
		}
		return denied(ReasonDenied), nil
	}

	if !policy.UserScoped {
		// Kind carries no ownership trait of its own; access is governed
		// entirely by the reference chain checked above, which already passed.
		return granted(), nil
	}

	return denied(ReasonDenied), nil
}

// CanGrant implements the delegation rule of spec §4.B: a principal may
// create a Permission grant on (kind, id) only if it already has SHARE
// access there; global (subject-less) grants require ROOT/SYSTEM and are
// modeled by callers checking IsSystemPrincipal before calling CanGrant.
func (e *Engine) CanGrant(ctx context.Context, principal identity.Principal, kind string, id UUID) (bool, error) {
	decision, err := e.Check(ctx, principal, kind, id, Share)
	if err != nil {
		return false, err
	}
	return decision.Granted, nil
}
