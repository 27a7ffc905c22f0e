package main

import (
	"context"

	"github.com/spf13/cobra"

	"effectcraft/internal/mcp"
	"effectcraft/internal/passive"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	server := mcp.NewServer(mcp.Deps{
		World:      a.world,
		Resolver:   a.resolver,
		Applier:    a.applier,
		Reconciler: a.rec,
		Guard:      passive.NewGuard(),
	}, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
