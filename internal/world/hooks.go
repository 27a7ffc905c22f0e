package world

// Lifecycle event names, matching the host's hook vocabulary.
const (
	HookCreateEffect  = "createActiveEffect"
	HookUpdateEffect  = "updateActiveEffect"
	HookDeleteEffect  = "deleteActiveEffect"
	HookUpdateActor   = "updateActor"
	HookCreateItem    = "createOwnedItem"
	HookUpdateItem    = "updateOwnedItem"
	HookDeleteItem    = "deleteOwnedItem"
	HookPreUpdateItem = "preUpdateOwnedItem"
	HookPreDeleteItem = "preDeleteOwnedItem"
)

// EffectEvent is the payload of effect lifecycle hooks.
type EffectEvent struct {
	Actor  *Actor
	Effect Effect
}

// ItemEvent is the payload of owned-item lifecycle hooks. Diff carries the
// changed item fields on updates, nil when diff tracking is unavailable.
type ItemEvent struct {
	Actor *Actor
	Item  Item
	Diff  map[string]any
}

// ActorEvent is the payload of actor update hooks. HasDiff=false means the
// host supplied no change tracking and listeners must assume anything
// changed.
type ActorEvent struct {
	Actor        *Actor
	ItemsChanged bool
	Flags        FlagDiff
	HasDiff      bool
}

// HookFunc handles one event. The payload is one of EffectEvent, ItemEvent
// or ActorEvent depending on the hook name. A false return from a pre-hook
// vetoes the triggering operation; non-pre dispatch ignores the result.
type HookFunc func(payload any) bool

// HookID identifies a registration for removal.
type HookID int

type hookEntry struct {
	id HookID
	fn HookFunc
}

// Hooks dispatches lifecycle events to registered handlers in registration
// order. Dispatch is single-threaded: the host runs one callback at a time.
type Hooks struct {
	nextID   HookID
	handlers map[string][]hookEntry
}

func NewHooks() *Hooks {
	return &Hooks{handlers: make(map[string][]hookEntry)}
}

func (h *Hooks) On(name string, fn HookFunc) HookID {
	h.nextID++
	h.handlers[name] = append(h.handlers[name], hookEntry{id: h.nextID, fn: fn})
	return h.nextID
}

func (h *Hooks) Off(name string, id HookID) {
	entries := h.handlers[name]
	for i, entry := range entries {
		if entry.id == id {
			h.handlers[name] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Call dispatches a lifecycle event. Handler results are ignored.
func (h *Hooks) Call(name string, payload any) {
	for _, entry := range h.snapshot(name) {
		entry.fn(payload)
	}
}

// CallPre dispatches a veto-able event; any handler returning false stops
// dispatch and vetoes the operation.
func (h *Hooks) CallPre(name string, payload any) bool {
	for _, entry := range h.snapshot(name) {
		if !entry.fn(payload) {
			return false
		}
	}
	return true
}

// snapshot taken so a handler may unregister itself mid-dispatch.
func (h *Hooks) snapshot(name string) []hookEntry {
	entries := h.handlers[name]
	if len(entries) == 0 {
		return nil
	}
	return append([]hookEntry(nil), entries...)
}
