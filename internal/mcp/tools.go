package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"effectcraft/internal/effect"
	"effectcraft/internal/passive"
	"effectcraft/internal/world"
)

type GetActorStateInput struct {
	ActorID string `json:"actor_id" jsonschema:"actor id"`
}

type ActorStateOutput struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	System        json.RawMessage `json:"system"`
	ActiveEffects []string        `json:"active_effects"`
}

type ListEffectsInput struct {
	ActorID string `json:"actor_id" jsonschema:"actor id"`
}

type EffectOutput struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Icon     string         `json:"icon,omitempty"`
	Origin   string         `json:"origin,omitempty"`
	Disabled bool           `json:"disabled"`
	Enabled  bool           `json:"enabled"`
	Passive  bool           `json:"passive"`
	Filter   map[string]any `json:"filter,omitempty"`
	Grants   int            `json:"grants"`
}

type ListEffectsOutput struct {
	Effects []EffectOutput `json:"effects"`
}

type SetEffectFilterInput struct {
	ActorID  string         `json:"actor_id" jsonschema:"actor id"`
	EffectID string         `json:"effect_id" jsonschema:"native or passive effect id"`
	Filter   map[string]any `json:"filter,omitempty" jsonschema:"filter document, omit to clear"`
}

type SetEffectFilterOutput struct {
	Filter map[string]any `json:"filter,omitempty"`
}

type AddItemGrantInput struct {
	ActorID  string         `json:"actor_id" jsonschema:"actor id"`
	EffectID string         `json:"effect_id" jsonschema:"granting effect id"`
	Item     map[string]any `json:"item,omitempty" jsonschema:"inline item document"`
	Pack     string         `json:"pack,omitempty" jsonschema:"compendium pack id"`
	Ref      string         `json:"ref,omitempty" jsonschema:"compendium entry id"`
	Type     string         `json:"type,omitempty" jsonschema:"item type for a compendium reference"`
}

type GrantOutput struct {
	GrantID int    `json:"grant_id"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
}

type RemoveItemGrantInput struct {
	ActorID  string `json:"actor_id" jsonschema:"actor id"`
	EffectID string `json:"effect_id" jsonschema:"granting effect id"`
	GrantID  int    `json:"grant_id" jsonschema:"grant id to remove"`
}

type RemoveItemGrantOutput struct {
	Remaining int `json:"remaining"`
}

type ChangeInput struct {
	Key      string `json:"key" jsonschema:"dotted attribute path"`
	Value    string `json:"value" jsonschema:"change value"`
	Mode     int    `json:"mode" jsonschema:"0 custom, 1 multiply, 2 add, 3 downgrade, 4 upgrade, 5 override"`
	Priority int    `json:"priority,omitempty" jsonschema:"application priority, defaults to mode*10"`
}

type PassiveEffectInput struct {
	ParentKind string         `json:"parent_kind" jsonschema:"Actor or Item"`
	ParentID   string         `json:"parent_id" jsonschema:"owning entity id"`
	EffectID   string         `json:"effect_id,omitempty" jsonschema:"required for update and delete"`
	Label      string         `json:"label,omitempty"`
	Icon       string         `json:"icon,omitempty"`
	Origin     string         `json:"origin,omitempty"`
	Disabled   bool           `json:"disabled,omitempty"`
	Transfer   bool           `json:"transfer,omitempty"`
	Changes    []ChangeInput  `json:"changes,omitempty"`
	Filter     map[string]any `json:"filter,omitempty"`
}

type PassiveEffectOutput struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Origin string `json:"origin,omitempty"`
}

type DeletePassiveEffectOutput struct {
	Deleted string `json:"deleted"`
}

type ReconcileActorInput struct {
	ActorID string `json:"actor_id" jsonschema:"actor id"`
}

type ReconcileActorOutput struct {
	Items   int `json:"items"`
	Managed int `json:"managed"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_actor_state",
		Description: "Compute an actor's derived state with filtered effects applied",
	}, s.handleGetActorState)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_effects",
		Description: "List every effect bearing on an actor, native and passive",
	}, s.handleListEffects)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "set_effect_filter",
		Description: "Validate and store an effect's activation filter",
	}, s.handleSetEffectFilter)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "add_item_grant",
		Description: "Attach an item grant to an effect, inline or by compendium reference",
	}, s.handleAddItemGrant)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "remove_item_grant",
		Description: "Remove an item grant from an effect",
	}, s.handleRemoveItemGrant)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_passive_effect",
		Description: "Create a passive effect on an actor or item",
	}, s.handleCreatePassiveEffect)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "update_passive_effect",
		Description: "Replace a passive effect's data, keeping its id",
	}, s.handleUpdatePassiveEffect)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "delete_passive_effect",
		Description: "Delete a passive effect",
	}, s.handleDeletePassiveEffect)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "reconcile_actor",
		Description: "Reconcile an actor's granted items with its effects",
	}, s.handleReconcileActor)
}

func (s *Server) requireActor(id string) (*world.Actor, error) {
	if id == "" {
		return nil, fmt.Errorf("actor_id is required")
	}
	actor := s.deps.World.Actor(id)
	if actor == nil {
		return nil, fmt.Errorf("actor %s not found", id)
	}
	return actor, nil
}

// wrapEffect resolves an effect id against the actor, trying the native
// collection first and falling back to the passive store.
func (s *Server) wrapEffect(actor *world.Actor, effectID string) (*effect.Wrapped, error) {
	if effectID == "" {
		return nil, fmt.Errorf("effect_id is required")
	}
	parent := effect.ParentRef{Actor: actor}
	ref := effect.EffectRef{PassiveID: effectID}
	if actor.EffectByID(effectID) != nil {
		ref = effect.EffectRef{NativeID: effectID}
	}
	wrapped, err := s.deps.Resolver.Wrap(parent, ref)
	if err != nil {
		return nil, err
	}
	if wrapped.Snapshot() == nil {
		return nil, fmt.Errorf("effect %s not found on actor %s", effectID, actor.ID)
	}
	return wrapped, nil
}

func (s *Server) handleGetActorState(ctx context.Context, req *sdk.CallToolRequest, input GetActorStateInput) (*sdk.CallToolResult, ActorStateOutput, error) {
	actor, err := s.requireActor(input.ActorID)
	if err != nil {
		return nil, ActorStateOutput{}, err
	}

	clone := actor.Clone()
	clone.Derived = nil
	if err := s.deps.Applier(ctx, clone); err != nil {
		return nil, ActorStateOutput{}, err
	}

	var active []string
	for _, wrapped := range s.deps.Resolver.ActorEffects(clone) {
		if wrapped.IsEnabled() {
			active = append(active, wrapped.ID())
		}
	}

	system := clone.Derived
	if len(system) == 0 {
		system = clone.System
	}
	return nil, ActorStateOutput{
		ID:            actor.ID,
		Name:          actor.Name,
		Type:          actor.Type,
		System:        system,
		ActiveEffects: active,
	}, nil
}

func (s *Server) handleListEffects(ctx context.Context, req *sdk.CallToolRequest, input ListEffectsInput) (*sdk.CallToolResult, ListEffectsOutput, error) {
	actor, err := s.requireActor(input.ActorID)
	if err != nil {
		return nil, ListEffectsOutput{}, err
	}

	native := len(actor.Effects)
	output := make([]EffectOutput, 0, native)
	for i, wrapped := range s.deps.Resolver.ActorEffects(actor) {
		record := wrapped.Snapshot()
		if record == nil {
			continue
		}
		output = append(output, EffectOutput{
			ID:       record.ID,
			Label:    record.Label,
			Icon:     record.Icon,
			Origin:   record.Origin,
			Disabled: record.Disabled,
			Enabled:  wrapped.IsEnabled(),
			Passive:  i >= native,
			Filter:   wrapped.ReadFilter().Normalized(),
			Grants:   len(wrapped.Grants()),
		})
	}
	return nil, ListEffectsOutput{Effects: output}, nil
}

func (s *Server) handleSetEffectFilter(ctx context.Context, req *sdk.CallToolRequest, input SetEffectFilterInput) (*sdk.CallToolResult, SetEffectFilterOutput, error) {
	actor, err := s.requireActor(input.ActorID)
	if err != nil {
		return nil, SetEffectFilterOutput{}, err
	}
	wrapped, err := s.wrapEffect(actor, input.EffectID)
	if err != nil {
		return nil, SetEffectFilterOutput{}, err
	}

	var raw any
	if input.Filter != nil {
		raw = input.Filter
	}
	if err := wrapped.WriteFilter(ctx, raw); err != nil {
		return nil, SetEffectFilterOutput{}, err
	}
	return nil, SetEffectFilterOutput{Filter: wrapped.ReadFilter().Normalized()}, nil
}

func (s *Server) handleAddItemGrant(ctx context.Context, req *sdk.CallToolRequest, input AddItemGrantInput) (*sdk.CallToolResult, GrantOutput, error) {
	actor, err := s.requireActor(input.ActorID)
	if err != nil {
		return nil, GrantOutput{}, err
	}
	wrapped, err := s.wrapEffect(actor, input.EffectID)
	if err != nil {
		return nil, GrantOutput{}, err
	}

	switch {
	case input.Ref != "" && input.Item != nil:
		return nil, GrantOutput{}, fmt.Errorf("pass either an inline item or a compendium reference, not both")
	case input.Ref != "":
		grant, err := wrapped.AddReference(ctx, input.Pack, input.Ref, input.Type)
		if err != nil {
			return nil, GrantOutput{}, err
		}
		return nil, GrantOutput{GrantID: grant.ID, Name: grant.Name, Type: grant.Type}, nil
	case input.Item != nil:
		data, err := json.Marshal(input.Item)
		if err != nil {
			return nil, GrantOutput{}, err
		}
		var item world.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, GrantOutput{}, fmt.Errorf("item is not a valid item document: %w", err)
		}
		grant, err := wrapped.AddItem(ctx, item)
		if err != nil {
			return nil, GrantOutput{}, err
		}
		return nil, GrantOutput{GrantID: grant.ID, Name: grant.Name, Type: grant.Type}, nil
	default:
		return nil, GrantOutput{}, fmt.Errorf("an inline item or a compendium ref is required")
	}
}

func (s *Server) handleRemoveItemGrant(ctx context.Context, req *sdk.CallToolRequest, input RemoveItemGrantInput) (*sdk.CallToolResult, RemoveItemGrantOutput, error) {
	actor, err := s.requireActor(input.ActorID)
	if err != nil {
		return nil, RemoveItemGrantOutput{}, err
	}
	wrapped, err := s.wrapEffect(actor, input.EffectID)
	if err != nil {
		return nil, RemoveItemGrantOutput{}, err
	}

	if err := wrapped.DeleteItems(ctx, []int{input.GrantID}); err != nil {
		return nil, RemoveItemGrantOutput{}, err
	}
	return nil, RemoveItemGrantOutput{Remaining: len(wrapped.Grants())}, nil
}

func (s *Server) passiveStore(kind, id string) (*passive.Store, error) {
	switch kind {
	case world.KindActor, "actor":
		kind = world.KindActor
	case world.KindItem, "item":
		kind = world.KindItem
	default:
		return nil, fmt.Errorf("parent_kind must be Actor or Item, got %q", kind)
	}
	return passive.NewStore(s.deps.World, s.deps.Resolver.Namespace, kind, id, s.deps.Guard)
}

func effectFromInput(input PassiveEffectInput) (world.Effect, error) {
	record := world.Effect{
		Label:    input.Label,
		Icon:     input.Icon,
		Origin:   input.Origin,
		Disabled: input.Disabled,
	}
	if input.Transfer {
		transfer := true
		record.Transfer = &transfer
	}
	for _, change := range input.Changes {
		record.Changes = append(record.Changes, world.Change{
			Key:      change.Key,
			Value:    change.Value,
			Mode:     world.ChangeMode(change.Mode),
			Priority: change.Priority,
		})
	}
	if input.Filter != nil {
		data, err := json.Marshal(input.Filter)
		if err != nil {
			return world.Effect{}, err
		}
		record.Filter = data
	}
	return record, nil
}

func (s *Server) handleCreatePassiveEffect(ctx context.Context, req *sdk.CallToolRequest, input PassiveEffectInput) (*sdk.CallToolResult, PassiveEffectOutput, error) {
	store, err := s.passiveStore(input.ParentKind, input.ParentID)
	if err != nil {
		return nil, PassiveEffectOutput{}, err
	}
	record, err := effectFromInput(input)
	if err != nil {
		return nil, PassiveEffectOutput{}, err
	}
	created, err := store.Create(ctx, record)
	if err != nil {
		return nil, PassiveEffectOutput{}, err
	}
	return nil, PassiveEffectOutput{ID: created.ID, Label: created.Label, Origin: created.Origin}, nil
}

func (s *Server) handleUpdatePassiveEffect(ctx context.Context, req *sdk.CallToolRequest, input PassiveEffectInput) (*sdk.CallToolResult, PassiveEffectOutput, error) {
	store, err := s.passiveStore(input.ParentKind, input.ParentID)
	if err != nil {
		return nil, PassiveEffectOutput{}, err
	}
	record, err := effectFromInput(input)
	if err != nil {
		return nil, PassiveEffectOutput{}, err
	}
	updated, err := store.Update(ctx, input.EffectID, record)
	if err != nil {
		return nil, PassiveEffectOutput{}, err
	}
	return nil, PassiveEffectOutput{ID: updated.ID, Label: updated.Label, Origin: updated.Origin}, nil
}

func (s *Server) handleDeletePassiveEffect(ctx context.Context, req *sdk.CallToolRequest, input PassiveEffectInput) (*sdk.CallToolResult, DeletePassiveEffectOutput, error) {
	store, err := s.passiveStore(input.ParentKind, input.ParentID)
	if err != nil {
		return nil, DeletePassiveEffectOutput{}, err
	}
	if err := store.Delete(ctx, input.EffectID); err != nil {
		return nil, DeletePassiveEffectOutput{}, err
	}
	return nil, DeletePassiveEffectOutput{Deleted: input.EffectID}, nil
}

func (s *Server) handleReconcileActor(ctx context.Context, req *sdk.CallToolRequest, input ReconcileActorInput) (*sdk.CallToolResult, ReconcileActorOutput, error) {
	actor, err := s.requireActor(input.ActorID)
	if err != nil {
		return nil, ReconcileActorOutput{}, err
	}
	if err := s.deps.Reconciler.Reconcile(ctx, actor); err != nil {
		return nil, ReconcileActorOutput{}, err
	}

	actor = s.deps.World.Actor(input.ActorID)
	managed := 0
	namespace := s.deps.Resolver.Namespace
	for i := range actor.Items {
		if _, ok := actor.Items[i].Flags.Get(namespace, effect.FlagItemKey); ok {
			managed++
		}
	}
	return nil, ReconcileActorOutput{Items: len(actor.Items), Managed: managed}, nil
}
