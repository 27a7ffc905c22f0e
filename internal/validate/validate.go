// Package validate runs consistency checks over a loaded world: filter
// flags that no longer parse, origins pointing at deleted items, granted
// items whose granting effect is gone, and passive-effect counters that
// fell behind their highest id.
package validate

import (
	"context"
	"fmt"

	"effectcraft/internal/config"
	"effectcraft/internal/effect"
	"effectcraft/internal/filter"
	"effectcraft/internal/passive"
	"effectcraft/internal/world"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeMalformedFilter = "malformed_filter"
	codeInvalidOrigin   = "invalid_origin"
	codeDanglingOrigin  = "dangling_origin"
	codeOrphanedGrant   = "orphaned_grant_item"
	codeCounterBehind   = "counter_behind"
	codeUngrantableType = "ungrantable_item_type"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Actor    string
	Entity   string
}

type Report struct {
	Issues []Issue
}

// Errors reports whether any issue is severity error.
func (r *Report) Errors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

func Run(ctx context.Context, rules *config.Rules, namespace string, source WorldSource) (*Report, error) {
	if rules == nil {
		return nil, fmt.Errorf("rules are required")
	}
	if source == nil {
		return nil, fmt.Errorf("world source is required")
	}

	issues := make([]Issue, 0)
	for _, actor := range source.Actors() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues = append(issues, checkActor(actor, rules, namespace, source)...)
	}
	return &Report{Issues: issues}, nil
}

func checkActor(actor *world.Actor, rules *config.Rules, namespace string, source WorldSource) []Issue {
	var issues []Issue

	known := knownEffectIDs(actor, namespace)

	for i := range actor.Effects {
		e := &actor.Effects[i]
		issues = append(issues, checkFilterFlag(actor, e.ID, e.Flags, namespace)...)
		issues = append(issues, checkOrigin(actor, e.ID, e.Origin, source)...)
		issues = append(issues, checkGrantTypes(actor, e, rules, namespace)...)
	}

	flag := passive.DecodeFlag(actor.Flags, namespace)
	issues = append(issues, checkCounter(actor, actor.ID, flag)...)
	for i := range flag.PassiveEffects {
		record := &flag.PassiveEffects[i]
		if len(record.Filter) > 0 {
			if _, err := filter.ParseJSON(record.Filter); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     codeMalformedFilter,
					Message:  fmt.Sprintf("passive effect filter does not parse: %v", err),
					Actor:    actor.ID,
					Entity:   record.ID,
				})
			}
		}
		issues = append(issues, checkOrigin(actor, record.ID, record.Origin, source)...)
	}

	for i := range actor.Items {
		item := &actor.Items[i]
		itemFlag := passive.DecodeFlag(item.Flags, namespace)
		issues = append(issues, checkCounter(actor, item.ID, itemFlag)...)

		key, ok := item.Flags.Get(namespace, effect.FlagItemKey)
		if !ok {
			continue
		}
		keyStr, _ := key.(string)
		effectID, _, ok := effect.SplitProvenance(keyStr)
		if !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeOrphanedGrant,
				Message:  fmt.Sprintf("granted item carries unreadable provenance key %q", keyStr),
				Actor:    actor.ID,
				Entity:   item.ID,
			})
			continue
		}
		if !known[effectID] {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeOrphanedGrant,
				Message:  fmt.Sprintf("granted item's effect %s no longer exists", effectID),
				Actor:    actor.ID,
				Entity:   item.ID,
			})
		}
	}

	return issues
}

// knownEffectIDs collects every effect id reconciliation could have
// stamped on a granted item: natives, the actor's own passive records and
// the composite ids of transferring owned-item records.
func knownEffectIDs(actor *world.Actor, namespace string) map[string]bool {
	known := make(map[string]bool)
	for i := range actor.Effects {
		known[actor.Effects[i].ID] = true
	}
	for _, e := range passive.Transferred(actor, namespace) {
		known[e.ID] = true
	}
	return known
}

func checkFilterFlag(actor *world.Actor, effectID string, flags world.FlagMap, namespace string) []Issue {
	raw, ok := flags.Get(namespace, effect.FlagFilters)
	if !ok || raw == nil {
		return nil
	}
	if _, err := filter.Parse(raw); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Code:     codeMalformedFilter,
			Message:  fmt.Sprintf("effect filter does not parse: %v", err),
			Actor:    actor.ID,
			Entity:   effectID,
		}}
	}
	return nil
}

func checkOrigin(actor *world.Actor, effectID, origin string, source WorldSource) []Issue {
	if origin == "" {
		return nil
	}
	parsed, ok := effect.ParseOrigin(origin)
	if !ok {
		return []Issue{{
			Severity: SeverityWarn,
			Code:     codeInvalidOrigin,
			Message:  fmt.Sprintf("origin %q does not parse", origin),
			Actor:    actor.ID,
			Entity:   effectID,
		}}
	}
	itemID, ok := parsed.ItemID()
	if !ok {
		return nil
	}
	if actor.Item(itemID) != nil || source.Item(itemID) != nil {
		return nil
	}
	return []Issue{{
		Severity: SeverityWarn,
		Code:     codeDanglingOrigin,
		Message:  fmt.Sprintf("origin %q points at a missing item", origin),
		Actor:    actor.ID,
		Entity:   effectID,
	}}
}

func checkGrantTypes(actor *world.Actor, e *world.Effect, rules *config.Rules, namespace string) []Issue {
	raw, ok := e.Flags.Get(namespace, effect.FlagItems)
	if !ok {
		return nil
	}
	var issues []Issue
	for _, grant := range effect.DecodeGrants(raw) {
		if grant.Type == "" || rules.IsGrantable(grant.Type) {
			continue
		}
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeUngrantableType,
			Message:  fmt.Sprintf("grant %d has ungrantable item type %q", grant.ID, grant.Type),
			Actor:    actor.ID,
			Entity:   e.ID,
		})
	}
	return issues
}

func checkCounter(actor *world.Actor, entityID string, flag passive.Flag) []Issue {
	for _, record := range flag.PassiveEffects {
		n, ok := passive.NumericSuffix(record.ID)
		if !ok {
			continue
		}
		if n >= flag.NextID {
			return []Issue{{
				Severity: SeverityError,
				Code:     codeCounterBehind,
				Message:  fmt.Sprintf("passive counter %d is not past highest id %d", flag.NextID, n),
				Actor:    actor.ID,
				Entity:   entityID,
			}}
		}
	}
	return nil
}
