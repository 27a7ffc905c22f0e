package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state <actor-id>",
		Short: "Compute an actor's derived state with filtered effects applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(args[0])
		},
	}
	return cmd
}

func runState(actorID string) error {
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

	clone := actor.Clone()
	clone.Derived = nil
	if err := a.applier(ctx, clone); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s (%s)\n", actor.Name, actor.Type)

	fmt.Fprintln(os.Stdout, "Effects:")
	for _, wrapped := range a.resolver.ActorEffects(clone) {
		record := wrapped.Snapshot()
		if record == nil {
			continue
		}
		status := "active"
		if !wrapped.IsEnabled() {
			status = "inactive"
		}
		fmt.Fprintf(os.Stdout, "  - %s [%s] (%s)\n", record.Label, record.ID, status)
	}

	system := clone.Derived
	if len(system) == 0 {
		system = clone.System
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, system, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "Derived system:")
	fmt.Fprintln(os.Stdout, pretty.String())
	return nil
}
