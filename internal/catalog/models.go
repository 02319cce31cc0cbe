// Package catalog is a demonstration vertical exercising the generic
// entity pipeline end to end: a system-scoped Provider, a user-owned
// Project that references it, and a team-owned Conversation that
// references a Project (spec §8 walkthrough scenarios).
package catalog

import (
	"github.com/coreframe/coreframe/internal/entity"
)

// Provider is a system-managed integration endpoint. Only ROOT/SYSTEM may
// create or mutate providers (spec §3 invariant 2).
type Provider struct {
	entity.Base
	Name       string
	APIBaseURL string
}

func (p *Provider) Base_() *entity.Base { return &p.Base }

// Project belongs to a single user and references the Provider it talks to.
type Project struct {
	entity.Base
	Name       string
	ProviderID entity.UUID
}

func (p *Project) Base_() *entity.Base { return &p.Base }

// Conversation belongs to a team and references the Project it was started
// under, so a stranger to the Project cannot see its Conversations either
// (spec §4.B reference-aware inheritance).
type Conversation struct {
	entity.Base
	Title     string
	ProjectID entity.UUID
	Archived  bool
}

func (c *Conversation) Base_() *entity.Base { return &c.Base }
