package reconcile

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"effectcraft/internal/effect"
	"effectcraft/internal/passive"
	"effectcraft/internal/world"
)

// Notifier surfaces user-visible messages, e.g. when a manual edit to a
// managed item is blocked.
type Notifier interface {
	Notify(actorID, message string)
}

type logNotifier struct {
	log logrus.FieldLogger
}

func (n logNotifier) Notify(actorID, message string) {
	n.log.WithField("actor", actorID).Warn(message)
}

// NewLogNotifier routes notifications to the log.
func NewLogNotifier(log logrus.FieldLogger) Notifier {
	return logNotifier{log: log}
}

// Service wires reconciliation into the world's lifecycle hooks: effect
// CRUD, actor updates with change detection, owned-item CRUD with passive
// transfer re-sync, and pre-hooks vetoing manual edits to managed items.
type Service struct {
	hooks      *world.Hooks
	world      world.World
	reconciler *Reconciler
	resolver   *effect.Resolver
	guard      *passive.Guard
	notifier   Notifier
	log        logrus.FieldLogger

	ctx context.Context
	ids map[string]world.HookID
}

func NewService(hooks *world.Hooks, w world.World, reconciler *Reconciler, resolver *effect.Resolver, notifier Notifier, log logrus.FieldLogger) *Service {
	return &Service{
		hooks:      hooks,
		world:      w,
		reconciler: reconciler,
		resolver:   resolver,
		guard:      passive.NewGuard(),
		notifier:   notifier,
		log:        log,
	}
}

// Register attaches every lifecycle handler. Registering twice is an
// error: double registration would run every reconciliation twice.
func (s *Service) Register(ctx context.Context) error {
	if s.ids != nil {
		return fmt.Errorf("lifecycle hooks already registered")
	}
	s.ctx = ctx
	s.ids = make(map[string]world.HookID)

	s.on(world.HookCreateEffect, s.onEffectEvent)
	s.on(world.HookUpdateEffect, s.onEffectEvent)
	s.on(world.HookDeleteEffect, s.onEffectEvent)
	s.on(world.HookUpdateActor, s.onActorUpdate)
	s.on(world.HookCreateItem, s.onItemEvent)
	s.on(world.HookUpdateItem, s.onItemEvent)
	s.on(world.HookDeleteItem, s.onItemEvent)
	s.on(world.HookPreUpdateItem, s.vetoManagedEdit)
	s.on(world.HookPreDeleteItem, s.vetoManagedEdit)
	return nil
}

// Unregister detaches every handler. Unregistering before registering is
// an error.
func (s *Service) Unregister() error {
	if s.ids == nil {
		return fmt.Errorf("lifecycle hooks not registered")
	}
	for name, id := range s.ids {
		s.hooks.Off(name, id)
	}
	s.ids = nil
	return nil
}

func (s *Service) on(name string, fn world.HookFunc) {
	s.ids[name] = s.hooks.On(name, fn)
}

func (s *Service) onEffectEvent(payload any) bool {
	ev, ok := payload.(world.EffectEvent)
	if !ok || ev.Actor == nil {
		return true
	}
	s.reconcile(ev.Actor)
	return true
}

// onActorUpdate recomputes only when effect-relevant fields changed: the
// item list, the passive-effect flag, or anything at all when the host
// supplied no diff. The reconciler's own batched write reports an item
// change and converges on the next pass, so this is a fixed point.
func (s *Service) onActorUpdate(payload any) bool {
	ev, ok := payload.(world.ActorEvent)
	if !ok || ev.Actor == nil {
		return true
	}
	passiveChanged := ev.Flags.Changed(s.resolver.Namespace, passive.FlagKey)
	if ev.HasDiff && !ev.ItemsChanged && !passiveChanged {
		return true
	}
	if !ev.HasDiff || passiveChanged {
		s.syncTransfers(ev.Actor)
	}
	s.reconcile(ev.Actor)
	return true
}

func (s *Service) onItemEvent(payload any) bool {
	ev, ok := payload.(world.ItemEvent)
	if !ok || ev.Actor == nil {
		return true
	}
	if itemPassiveChanged(ev.Diff, s.resolver.Namespace) {
		s.syncTransfers(ev.Actor)
	}
	s.reconcile(ev.Actor)
	return true
}

// vetoManagedEdit blocks manual edits to items the reconciler manages
// while their source effect is still enabled. Allowing the edit would be
// undone by the next pass anyway; blocking it tells the user why.
func (s *Service) vetoManagedEdit(payload any) bool {
	ev, ok := payload.(world.ItemEvent)
	if !ok || ev.Actor == nil {
		return true
	}
	key, ok := provenanceOf(ev.Item, s.resolver.Namespace)
	if !ok {
		return true
	}
	effectID, _, ok := effect.SplitProvenance(key)
	if !ok {
		return true
	}
	for _, wrapped := range s.resolver.ActorEffects(ev.Actor) {
		if wrapped.ID() != effectID || !wrapped.IsEnabled() {
			continue
		}
		message := fmt.Sprintf("%s is managed by an active effect and cannot be changed directly", ev.Item.Name)
		if source := wrapped.SourceItem(); source != nil {
			message = fmt.Sprintf("%s is managed by an effect from %s and cannot be changed directly", ev.Item.Name, source.Name)
		}
		if s.notifier != nil {
			s.notifier.Notify(ev.Actor.ID, message)
		}
		return false
	}
	return true
}

func (s *Service) reconcile(actor *world.Actor) {
	if err := s.reconciler.Reconcile(s.ctx, actor); err != nil && s.log != nil {
		s.log.WithField("actor", actor.ID).WithError(err).Error("reconciliation failed")
	}
}

func (s *Service) syncTransfers(actor *world.Actor) {
	store, err := passive.NewStore(s.world, s.resolver.Namespace, world.KindActor, actor.ID, s.guard)
	if err == nil {
		err = store.SyncTransferred(s.ctx)
	}
	if err != nil && s.log != nil {
		s.log.WithField("actor", actor.ID).WithError(err).Error("transfer sync failed")
	}
}

// itemPassiveChanged reports whether an owned-item diff touches the
// passive-effect flag. A nil diff means no tracking, so assume it did.
func itemPassiveChanged(diff map[string]any, namespace string) bool {
	if diff == nil {
		return true
	}
	flags, ok := diff["flags"].(map[string]any)
	if !ok {
		return false
	}
	scope, ok := flags[namespace].(map[string]any)
	if !ok {
		return false
	}
	if _, ok := scope[passive.FlagKey]; ok {
		return true
	}
	_, ok = scope["-="+passive.FlagKey]
	return ok
}
