package effect

import (
	"effectcraft/internal/passive"
	"effectcraft/internal/world"
)

// ActorEffects returns a wrapper for every effect currently bearing on the
// actor: native records first, then passive ones composed from the actor's
// own store and the transferring effects of its items.
func (r *Resolver) ActorEffects(actor *world.Actor) []*Wrapped {
	parent := ParentRef{Actor: actor}
	wrapped := make([]*Wrapped, 0, len(actor.Effects))
	for i := range actor.Effects {
		w, err := r.Wrap(parent, EffectRef{Native: &actor.Effects[i]})
		if err != nil {
			continue
		}
		wrapped = append(wrapped, w)
	}
	transferred := passive.Transferred(actor, r.Namespace)
	for i := range transferred {
		w, err := r.Wrap(parent, EffectRef{Passive: &transferred[i]})
		if err != nil {
			continue
		}
		wrapped = append(wrapped, w)
	}
	return wrapped
}
