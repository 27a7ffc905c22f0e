package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"effectcraft/internal/apply"
	"effectcraft/internal/effect"
	"effectcraft/internal/passive"
	"effectcraft/internal/reconcile"
	"effectcraft/internal/world"
)

// Deps carries the collaborators the tool handlers call into.
type Deps struct {
	World      world.World
	Resolver   *effect.Resolver
	Applier    apply.Applier
	Reconciler *reconcile.Reconciler
	Guard      *passive.Guard
}

type Server struct {
	deps Deps
	mcp  *sdk.Server
}

func NewServer(deps Deps, version string) *Server {
	s := &Server{
		deps: deps,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "effectcraft",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
