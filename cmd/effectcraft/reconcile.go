package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"effectcraft/internal/effect"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <actor-id>",
		Short: "Reconcile an actor's granted items with its effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(args[0])
		},
	}
	return cmd
}

func runReconcile(actorID string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	actor := a.world.Actor(actorID)
	if actor == nil {
		return fmt.Errorf("actor %s not found", actorID)
	}

	if err := a.rec.Reconcile(ctx, actor); err != nil {
		return err
	}

	actor = a.world.Actor(actorID)
	managed := 0
	for i := range actor.Items {
		if _, ok := actor.Items[i].Flags.Get(a.cfg.Namespace, effect.FlagItemKey); ok {
			managed++
		}
	}
	fmt.Fprintf(os.Stdout, "Reconciled %s: %d items, %d managed.\n", actorID, len(actor.Items), managed)
	return nil
}
