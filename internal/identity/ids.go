package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// UUID is the identifier type shared by principals, teams, roles and every
// managed entity in the system.
type UUID = uuid.UUID

// SystemIDs holds the three distinguished principals resolved once from
// configuration at process startup (spec §3, §4.A).
type SystemIDs struct {
	Root     UUID
	System   UUID
	Template UUID
}

// SystemIDSource supplies the raw configuration values; satisfied by
// *app.Config without internal/identity importing internal/app.
type SystemIDSource interface {
	SystemIDValues() (root, system, template string)
}

// LoadSystemIDs parses and validates the three fixed principal IDs.
func LoadSystemIDs(src SystemIDSource) (SystemIDs, error) {
	root, system, template := src.SystemIDValues()
	ids := SystemIDs{}
	var err error
	if ids.Root, err = uuid.Parse(root); err != nil {
		return SystemIDs{}, fmt.Errorf("identity: parse ROOT_ID: %w", err)
	}
	if ids.System, err = uuid.Parse(system); err != nil {
		return SystemIDs{}, fmt.Errorf("identity: parse SYSTEM_ID: %w", err)
	}
	if ids.Template, err = uuid.Parse(template); err != nil {
		return SystemIDs{}, fmt.Errorf("identity: parse TEMPLATE_ID: %w", err)
	}
	if ids.Root == ids.System || ids.Root == ids.Template || ids.System == ids.Template {
		return SystemIDs{}, fmt.Errorf("identity: ROOT_ID, SYSTEM_ID and TEMPLATE_ID must be distinct")
	}
	return ids, nil
}

// IsRoot reports whether id is the ROOT principal.
func (s SystemIDs) IsRoot(id UUID) bool { return id == s.Root }

// IsSystem reports whether id is the SYSTEM principal.
func (s SystemIDs) IsSystem(id UUID) bool { return id == s.System }

// IsTemplate reports whether id is the TEMPLATE principal.
func (s SystemIDs) IsTemplate(id UUID) bool { return id == s.Template }

// IsSystemPrincipal reports whether id is any of ROOT, SYSTEM or TEMPLATE.
func (s SystemIDs) IsSystemPrincipal(id UUID) bool {
	return s.IsRoot(id) || s.IsSystem(id) || s.IsTemplate(id)
}
