// Package surface implements the Outer Tool Surface: the three
// RPC-callable operations (deliberate, query_decisions,
// analyze_decisions) a JSON-RPC stdio server or any other transport
// dispatches into. The transport itself is out of
// scope; this package only validates requests, calls into the engine
// and decision graph, and shapes responses.
package surface

import (
	"github.com/blueman82/go-counsel/pkg/deliberation"
	"github.com/blueman82/go-counsel/pkg/graph"
	"github.com/blueman82/go-counsel/pkg/similarity"
)

// Surface wires the engine and decision-graph store behind the three
// external operations.
type Surface struct {
	Engine *deliberation.Engine
	Store  graph.Store
	Sim    *similarity.Service

	// AllowedBackends is the backend-id allow-set for deliberate's
	// participant validation.
	AllowedBackends map[string]bool

	// KnownModels, keyed by backend id, is used only to produce
	// warnings for unrecognized models; absence of an entry means
	// "no known list", which never warns.
	KnownModels map[string][]string

	// ResponseRoundCap is how many trailing rounds of full_debate are
	// returned inline; earlier rounds stay on disk in the transcript.
	ResponseRoundCap int
}

// New constructs a Surface with the documented defaults applied.
func New(engine *deliberation.Engine, store graph.Store, sim *similarity.Service, allowedBackends map[string]bool, knownModels map[string][]string) *Surface {
	return &Surface{
		Engine:           engine,
		Store:            store,
		Sim:              sim,
		AllowedBackends:  allowedBackends,
		KnownModels:      knownModels,
		ResponseRoundCap: 3,
	}
}
