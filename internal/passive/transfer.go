package passive

import (
	"context"
	"fmt"

	"effectcraft/internal/filter"
	"effectcraft/internal/world"
)

// Guard blocks re-entrant transfer recomputation. Writing the materialized
// list back onto the parent fires another actor update, which would
// recompute the same list forever without this.
type Guard struct {
	active map[string]bool
}

func NewGuard() *Guard {
	return &Guard{active: make(map[string]bool)}
}

func (g *Guard) enter(key string) bool {
	if g == nil {
		return true
	}
	if g.active[key] {
		return false
	}
	g.active[key] = true
	return true
}

func (g *Guard) leave(key string) {
	if g != nil {
		delete(g.active, key)
	}
}

// Transferred rebuilds the actor's effective passive-effect set: its own
// records (origin absent or pointing at the actor itself) plus every
// transferring passive effect of its owned items, re-keyed with a
// composite id and an origin rewritten to the owning item.
func Transferred(actor *world.Actor, namespace string) []world.Effect {
	flag := DecodeFlag(actor.Flags, namespace)
	parentOrigin := actor.OriginRef()

	var effects []world.Effect
	for _, effect := range flag.PassiveEffects {
		if effect.Origin == "" || effect.Origin == parentOrigin {
			effects = append(effects, effect)
		}
	}

	for i := range actor.Items {
		item := &actor.Items[i]
		itemFlag := DecodeFlag(item.Flags, namespace)
		for _, effect := range itemFlag.PassiveEffects {
			if !effect.Transfers() {
				continue
			}
			transferred := effect.Clone()
			transferred.ID = fmt.Sprintf("%s.%s.%s.%s", parentOrigin, OwnedItemCollection, item.ID, effect.ID)
			transferred.Origin = fmt.Sprintf("%s.%s.%s", parentOrigin, OwnedItemCollection, item.ID)
			effects = append(effects, transferred)
		}
	}

	return effects
}

// SyncTransferred overwrites the actor's materialized passive-effect list
// with the recomputed transfer set. The guard makes the write a fixed
// point: a recomputation triggered by this write is skipped.
func (s *Store) SyncTransferred(ctx context.Context) error {
	if s.kind != world.KindActor {
		return fmt.Errorf("transfer composition requires an actor parent, got %s", s.kind)
	}

	key := s.kind + "." + s.id
	if !s.guard.enter(key) {
		return nil
	}
	defer s.guard.leave(key)

	actor := s.w.Actor(s.id)
	if actor == nil {
		return fmt.Errorf("parent actor %s not found", s.id)
	}

	flag := DecodeFlag(actor.Flags, s.namespace)
	flag.PassiveEffects = Transferred(actor, s.namespace)
	return s.write(ctx, flag)
}

func validFilter(raw []byte) error {
	if _, err := filter.ParseJSON(raw); err != nil {
		return err
	}
	return nil
}
