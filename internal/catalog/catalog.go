package catalog

import (
	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/permission"
)

// Kind names, used both as entity.Description.Kind and as the permission
// engine's kind registry keys.
const (
	KindProvider     = "provider"
	KindProject      = "project"
	KindConversation = "conversation"
)

// Catalog wires the three demonstration kinds against a shared entity
// registry, permission engine and Beginner (spec §8 walkthrough scenarios).
type Catalog struct {
	Providers     *entity.Manager[Provider, *Provider]
	Projects      *entity.Manager[Project, *Project]
	Conversations *entity.Manager[Conversation, *Conversation]
}

// Stores groups the persistence backends each kind needs. Tests and
// cmd/server both pass entity.NewMemoryStore[...] for each; this module
// ships no pgx-backed implementation of entity.Store.
type Stores struct {
	Providers     entity.Store[Provider, *Provider]
	Projects      entity.Store[Project, *Project]
	Conversations entity.Store[Conversation, *Conversation]
}

// New builds the three managers and registers their record lookups and kind
// policies against registry/kinds, so cross-kind reference checks resolve.
func New(stores Stores, sessions entity.Beginner, engine *permission.Engine, registry *entity.Registry, kinds *permission.StaticKindRegistry, hooks *entity.HookRegistry, validator *entity.Validator) *Catalog {
	providerDesc := entity.Description{
		Kind:   KindProvider,
		Policy: permission.KindPolicy{System: true},
		Fields: []entity.FieldSpec{
			{Name: "Name", Sortable: true, Filterable: true},
			{Name: "APIBaseURL", Filterable: false},
		},
	}
	// Project declares no CreateReference: its "provider" reference only
	// needs to grant View (spec §4.B "creation check" ALL-resolution), since
	// providers are read-only catalog data to ordinary users.
	projectDesc := entity.Description{
		Kind:   KindProject,
		Policy: permission.KindPolicy{UserScoped: true},
		Fields: []entity.FieldSpec{
			{Name: "Name", Sortable: true, Filterable: true},
		},
		Relations: []entity.RelationSpec{
			{Name: "provider", Kind: KindProvider},
		},
	}
	conversationDesc := entity.Description{
		Kind:            KindConversation,
		Policy:          permission.KindPolicy{TeamScoped: true},
		CreateReference: "project",
		Fields: []entity.FieldSpec{
			{Name: "Title", Sortable: true, Filterable: true},
			{Name: "Archived", Filterable: true},
		},
		Relations: []entity.RelationSpec{
			{Name: "project", Kind: KindProject},
		},
	}

	kinds.Register(KindProvider, providerDesc.Policy)
	kinds.Register(KindProject, projectDesc.Policy)
	kinds.Register(KindConversation, conversationDesc.Policy)

	// "active" expands to a single Archived equality clause (active=true ->
	// Archived=false, active=false -> Archived=true), so search
	// callers can ask for conversations by a high-level name instead of
	// knowing the underlying field (spec §4.C search transformers).
	conversationTransforms := entity.NewSearchTransformerRegistry()
	conversationTransforms.Register("active", func(value any) []entity.Clause {
		want, _ := value.(bool)
		return []entity.Clause{{Field: "Archived", Op: entity.OpEq, Value: !want}}
	})

	c := &Catalog{
		Providers:     entity.NewManager[Provider, *Provider](providerDesc, stores.Providers, sessions, engine, registry, hooks, validator, nil),
		Projects:      entity.NewManager[Project, *Project](projectDesc, stores.Projects, sessions, engine, registry, hooks, validator, nil),
		Conversations: entity.NewManager[Conversation, *Conversation](conversationDesc, stores.Conversations, sessions, engine, registry, hooks, validator, conversationTransforms),
	}

	registry.Register(KindProvider, c.Providers.RecordLookup())
	registry.Register(KindProject, c.Projects.RecordLookup())
	registry.Register(KindConversation, c.Conversations.RecordLookup())

	registry.RegisterRaw(KindProvider, c.Providers.RawLookup())
	registry.RegisterRaw(KindProject, c.Projects.RawLookup())
	registry.RegisterRaw(KindConversation, c.Conversations.RawLookup())

	return c
}

// ProviderReference builds the permission.Reference a new Project's draft
// carries so a Project may be found from its Provider's access grants.
func ProviderReference(id entity.UUID) permission.Reference {
	return permission.Reference{Kind: KindProvider, ID: id}
}

// ProjectReference builds the permission.Reference a new Conversation's
// draft must carry to satisfy its declared "project" CreateReference.
func ProjectReference(id entity.UUID) permission.Reference {
	return permission.Reference{Kind: KindProject, ID: id}
}
