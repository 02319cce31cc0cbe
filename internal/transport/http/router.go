package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/coreframe/coreframe/internal/catalog"
)

// MountCatalog wires the demonstration catalog vertical's REST resources
// under r (spec §8 walkthrough scenarios): providers, projects and
// conversations, each exercising the full generic pipeline.
func MountCatalog(r chi.Router, c *catalog.Catalog) {
	r.Route("/providers", NewResource("provider", "providers", c.Providers).Mount)
	r.Route("/projects", NewResource("project", "projects", c.Projects).Mount)
	r.Route("/conversations", NewResource("conversation", "conversations", c.Conversations).Mount)
}
