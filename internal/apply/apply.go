// Package apply decorates the host's derived-state computation. The
// decorated routine filters the actor's native effects, merges in passive
// ones, runs the original computation against the merged set and restores
// the native collection so nothing outside the pass observes the filtered
// view.
package apply

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"effectcraft/internal/effect"
	"effectcraft/internal/passive"
	"effectcraft/internal/rolldata"
	"effectcraft/internal/world"
)

// Applier computes an actor's derived state from its effect collection.
type Applier func(ctx context.Context, actor *world.Actor) error

// Deps carries the collaborators the decorator needs. Reconcile is
// optional; when set it runs after each pass over a canonical actor.
type Deps struct {
	Resolver  *effect.Resolver
	Reconcile func(ctx context.Context, actor *world.Actor) error
	Log       logrus.FieldLogger
}

// Decorate wraps the original applier. The original is always invoked;
// only the effect collection it sees changes.
func Decorate(orig Applier, deps Deps) Applier {
	return func(ctx context.Context, actor *world.Actor) error {
		native := actor.Effects

		// One roll-data snapshot per pass so every filter sees the same
		// values regardless of evaluation order.
		base := rolldata.Flatten(actor.RollData())

		working := make([]world.Effect, 0, len(native))
		for i := range native {
			wrapped, err := deps.Resolver.Wrap(
				effect.ParentRef{Actor: actor},
				effect.EffectRef{Native: &native[i]},
			)
			if err != nil {
				return fmt.Errorf("wrapping effect %s: %w", native[i].ID, err)
			}
			matches := wrapped.MatchesRecord(base)
			if err := wrapped.SetFilterMatches(matches); err != nil {
				return err
			}
			if matches {
				working = append(working, native[i])
			}
		}

		transferred := passive.Transferred(actor, deps.Resolver.Namespace)
		for i := range transferred {
			if transferred[i].Disabled {
				continue
			}
			wrapped, err := deps.Resolver.Wrap(
				effect.ParentRef{Actor: actor},
				effect.EffectRef{Passive: &transferred[i]},
			)
			if err != nil {
				return fmt.Errorf("wrapping passive effect %s: %w", transferred[i].ID, err)
			}
			matches := wrapped.MatchesRecord(base)
			if err := wrapped.SetFilterMatches(matches); err != nil {
				return err
			}
			if matches {
				working = append(working, transferred[i])
			}
		}

		if deps.Log != nil {
			deps.Log.WithFields(logrus.Fields{
				"actor":   actor.ID,
				"native":  len(native),
				"working": len(working),
			}).Debug("applying filtered effects")
		}

		actor.Effects = working
		err := orig(ctx, actor)
		actor.Effects = native
		if err != nil {
			return err
		}

		if !actor.IsClone() && deps.Reconcile != nil {
			return deps.Reconcile(ctx, actor)
		}
		return nil
	}
}

// Service installs the decorator exactly once per process. A second
// install is an error rather than a silent re-wrap.
type Service struct {
	deps      Deps
	installed bool
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

func (s *Service) Install(orig Applier) (Applier, error) {
	if s.installed {
		return nil, fmt.Errorf("effect application override already installed")
	}
	s.installed = true
	return Decorate(orig, s.deps), nil
}

func (s *Service) Uninstall() error {
	if !s.installed {
		return fmt.Errorf("effect application override not installed")
	}
	s.installed = false
	return nil
}
